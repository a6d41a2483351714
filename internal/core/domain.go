package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage layout of a calendar date.
const DateLayout = "2006-01-02"

// StatusSuccess is the only status a recorded transaction can have.
const StatusSuccess = "Success"

// MaxDescriptionLength bounds free-form descriptions.
const MaxDescriptionLength = 200

const (
	TxTypeIncome  TxType = "income"
	TxTypeExpense TxType = "expense"
)

type (
	// TxType tells income from expense records.
	TxType string

	// Date is a calendar date with no time component, held at UTC midnight.
	Date struct {
		time.Time
	}

	// TxID identifies a transaction. Numbers are only unique within a type.
	TxID struct {
		Type TxType
		Num  int64
	}

	// Transaction is a recorded income or expense. Amount is signed:
	// positive for income, negative for expense.
	Transaction struct {
		ID          TxID            `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Type        TxType          `json:"type"`
		Status      string          `json:"status"`
	}

	// TransactionInput carries the caller-provided fields for add and update.
	// Amount is the unsigned magnitude; the sign follows Type.
	TransactionInput struct {
		Type        TxType
		Date        Date
		Category    string
		Description string
		Amount      decimal.Decimal
	}
)

// ParseTxType parses "income" or "expense", ignoring case and surrounding space.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == TxTypeIncome || t == TxTypeExpense
}

func (t TxType) String() string { return string(t) }

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. A trailing time component
// ("2025-01-05T00:00:00Z") is tolerated and dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Validate checks that the date is set.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// YearMonth formats the date as YYYY-MM.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

// InMonth reports whether d falls in the given year and 1-indexed month.
func (d Date) InMonth(year, month int) bool {
	return !d.IsZero() && d.Year() == year && int(d.Month()) == month
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD"; an empty string yields the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE and TEXT columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// NewTxID builds a tagged identifier.
func NewTxID(t TxType, num int64) TxID {
	return TxID{Type: t, Num: num}
}

// ParseTxID parses the "<type>-<num>" form, e.g. "income-3".
func ParseTxID(s string) (TxID, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '-')
	if i <= 0 {
		return TxID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	t, err := ParseTxType(s[:i])
	if err != nil {
		return TxID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	n, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || n <= 0 {
		return TxID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return TxID{Type: t, Num: n}, nil
}

// ResolveTxID accepts either the tagged form or a bare number paired with a
// type. When both carry a type they must agree.
func ResolveTxID(raw string, t TxType) (TxID, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if !t.Valid() {
			return TxID{}, ErrInvalidType
		}
		if n <= 0 {
			return TxID{}, fmt.Errorf("%w: %q", ErrInvalidID, raw)
		}
		return TxID{Type: t, Num: n}, nil
	}
	id, err := ParseTxID(raw)
	if err != nil {
		return TxID{}, err
	}
	if t != "" && t != id.Type {
		return TxID{}, fmt.Errorf("%w: id %s with type %s", ErrTypeMismatch, id, t)
	}
	return id, nil
}

// String formats the identifier as "<type>-<num>".
func (id TxID) String() string {
	return string(id.Type) + "-" + strconv.FormatInt(id.Num, 10)
}

// IsZero reports whether the identifier is unset.
func (id TxID) IsZero() bool {
	return id.Num == 0 && id.Type == ""
}

// MarshalJSON encodes the identifier as "<type>-<num>".
func (id TxID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the "<type>-<num>" form.
func (id *TxID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	parsed, err := ParseTxID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// CapitalizeCategory upper-cases the first letter and leaves the rest alone.
func CapitalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Normalize trims text fields, capitalizes the category and drops any sign
// from the amount.
func (in TransactionInput) Normalize() TransactionInput {
	in.Category = CapitalizeCategory(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Type = TxType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	return in
}

// Validate checks every required field and returns a *ValidationError
// naming the first offending one.
func (in TransactionInput) Validate() error {
	if strings.TrimSpace(string(in.Type)) == "" {
		return NewValidationError("type", ErrMissingField)
	}
	if !in.Type.Valid() {
		return NewValidationError("type", ErrInvalidType)
	}
	if err := in.Date.Validate(); err != nil {
		return NewValidationError("date", err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return NewValidationError("category", ErrMissingField)
	}
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", ErrMissingField)
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return NewValidationError("description", ErrDescriptionTooLong)
	}
	if err := CheckAmount(in.Amount); err != nil {
		return NewValidationError("amount", err)
	}
	return nil
}

// SignedAmount returns the amount with the sign implied by the type.
func SignedAmount(t TxType, magnitude decimal.Decimal) decimal.Decimal {
	if t == TxTypeExpense {
		return magnitude.Abs().Neg()
	}
	return magnitude.Abs()
}

// NewTransaction materializes a stored record from its id and input.
func NewTransaction(id TxID, in TransactionInput) Transaction {
	return Transaction{
		ID:          id,
		Amount:      SignedAmount(in.Type, in.Amount),
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Type:        in.Type,
		Status:      StatusSuccess,
	}
}

// Magnitude returns |Amount|.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}
