package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2025-01-05", NewDate(2025, 1, 5), true},
		{" 2025-12-31 ", NewDate(2025, 12, 31), true},
		{"2025-01-05T00:00:00.000Z", NewDate(2025, 1, 5), true},
		{"2025-13-01", Date{}, false},
		{"05/01/2025", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateScan(t *testing.T) {
	want := NewDate(2025, 3, 9)
	sources := []any{
		"2025-03-09",
		[]byte("2025-03-09"),
		time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 9, 15, 4, 5, 0, time.FixedZone("x", 3600)),
	}
	for _, src := range sources {
		var d Date
		if err := d.Scan(src); err != nil {
			t.Fatalf("scan %T: %v", src, err)
		}
		if !d.Equal(want.Time) {
			t.Fatalf("scan %T: got %v", src, d)
		}
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Fatal("expected error for int source")
	}

	v, err := want.Value()
	if err != nil || v != "2025-03-09" {
		t.Fatalf("Value() = %v, %v", v, err)
	}
}

func TestTxIDRoundTrip(t *testing.T) {
	id := NewTxID(TxTypeIncome, 3)
	if id.String() != "income-3" {
		t.Fatalf("String() = %q", id.String())
	}

	b, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"income-3"` {
		t.Fatalf("json = %s", b)
	}

	var back TxID
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back != id {
		t.Fatalf("got %+v want %+v", back, id)
	}
}

func TestParseTxID(t *testing.T) {
	cases := []struct {
		in   string
		want TxID
		ok   bool
	}{
		{"income-3", TxID{TxTypeIncome, 3}, true},
		{"expense-12", TxID{TxTypeExpense, 12}, true},
		{"Expense-1", TxID{TxTypeExpense, 1}, true},
		{"refund-1", TxID{}, false},
		{"income-", TxID{}, false},
		{"income-0", TxID{}, false},
		{"income--2", TxID{}, false},
		{"3", TxID{}, false},
		{"", TxID{}, false},
	}
	for _, tc := range cases {
		got, err := ParseTxID(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %+v, got %+v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %+v", tc.in, got)
		}
	}
}

func TestResolveTxID(t *testing.T) {
	got, err := ResolveTxID("7", TxTypeExpense)
	if err != nil || got != (TxID{TxTypeExpense, 7}) {
		t.Fatalf("bare number: %+v, %v", got, err)
	}

	got, err = ResolveTxID("income-4", "")
	if err != nil || got != (TxID{TxTypeIncome, 4}) {
		t.Fatalf("tagged: %+v, %v", got, err)
	}

	if _, err := ResolveTxID("income-4", TxTypeExpense); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if _, err := ResolveTxID("7", ""); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestCapitalizeCategory(t *testing.T) {
	cases := map[string]string{
		"food":       "Food",
		"  salary ":  "Salary",
		"eATING out": "EATING out",
		"école":      "École",
		"":           "",
	}
	for in, want := range cases {
		if got := CapitalizeCategory(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Type:        TxTypeExpense,
		Date:        NewDate(2025, 1, 1),
		Category:    "Food",
		Description: "groceries",
		Amount:      decimal.RequireFromString("12.50"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, amount := range []string{"0.01", "12.500", "999999999999.99"} {
		in := good
		in.Amount = decimal.RequireFromString(amount)
		if err := in.Validate(); err != nil {
			t.Fatalf("amount %s: expected ok, got %v", amount, err)
		}
	}

	cases := []struct {
		name  string
		mod   func(*TransactionInput)
		field string
	}{
		{"missing type", func(in *TransactionInput) { in.Type = "" }, "type"},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, "type"},
		{"zero date", func(in *TransactionInput) { in.Date = Date{} }, "date"},
		{"empty category", func(in *TransactionInput) { in.Category = "  " }, "category"},
		{"empty description", func(in *TransactionInput) { in.Description = "" }, "description"},
		{"long description", func(in *TransactionInput) { in.Description = strings.Repeat("x", 201) }, "description"},
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(in *TransactionInput) { in.Amount = decimal.NewFromInt(-1) }, "amount"},
		{"sub-cent amount", func(in *TransactionInput) { in.Amount = decimal.RequireFromString("0.004") }, "amount"},
		{"three places", func(in *TransactionInput) { in.Amount = decimal.RequireFromString("12.505") }, "amount"},
		{"amount at max", func(in *TransactionInput) { in.Amount = decimal.New(1, 12) }, "amount"},
		{"huge amount", func(in *TransactionInput) { in.Amount = decimal.RequireFromString("12345678901234567.89") }, "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mod(&in)
			err := in.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
			if !IsValidation(err) {
				t.Fatal("IsValidation should be true")
			}
		})
	}
}

func TestNewTransactionSign(t *testing.T) {
	in := TransactionInput{Type: TxTypeExpense, Date: NewDate(2025, 1, 1), Category: "Rent", Description: "jan", Amount: decimal.NewFromInt(40)}
	tx := NewTransaction(NewTxID(TxTypeExpense, 1), in)
	if !tx.Amount.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("expense amount = %s", tx.Amount)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("status = %q", tx.Status)
	}

	in.Type = TxTypeIncome
	tx = NewTransaction(NewTxID(TxTypeIncome, 1), in)
	if !tx.Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("income amount = %s", tx.Amount)
	}
}

func TestNormalize(t *testing.T) {
	in := TransactionInput{Type: " Income ", Category: " salary", Description: " march "}.Normalize()
	if in.Type != TxTypeIncome || in.Category != "Salary" || in.Description != "march" {
		t.Fatalf("got %+v", in)
	}
}
