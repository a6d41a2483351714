package core

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OptionAll disables a filter.
const OptionAll = "all"

// DateRange selects records relative to the current date.
type DateRange string

const (
	RangeAll   DateRange = "all"
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
)

// FilterOptions configures FilterTransactions. Empty fields and "all" are
// no-ops. Nil bounds are unbounded.
type FilterOptions struct {
	Type      string
	Category  string
	DateRange DateRange
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// ParseFilterOptions builds options from raw query values. Unknown types and
// ranges fall back to "all"; unparseable bounds fall back to unset.
func ParseFilterOptions(txType, category, dateRange, minAmount, maxAmount string) FilterOptions {
	opts := FilterOptions{
		Type:      OptionAll,
		Category:  strings.TrimSpace(category),
		DateRange: RangeAll,
	}
	if t, err := ParseTxType(txType); err == nil {
		opts.Type = string(t)
	}
	switch r := DateRange(strings.ToLower(strings.TrimSpace(dateRange))); r {
	case RangeToday, RangeWeek, RangeMonth:
		opts.DateRange = r
	}
	if d, ok := parseBound(minAmount); ok {
		opts.MinAmount = &d
	}
	if d, ok := parseBound(maxAmount); ok {
		opts.MaxAmount = &d
	}
	return opts
}

// IsZero reports whether no filter is active.
func (o FilterOptions) IsZero() bool {
	return isAll(o.Type) && isAll(o.Category) && isAll(string(o.DateRange)) &&
		o.MinAmount == nil && o.MaxAmount == nil
}

func isAll(s string) bool {
	return s == "" || strings.EqualFold(s, OptionAll)
}

// FilterTransactions applies type, category, date range and amount filters
// in that order and returns a new slice in the input's relative order. The
// input is never modified. Date ranges are evaluated against the calendar
// date of now; records with a zero date never match a bounded range.
func FilterTransactions(txs []Transaction, opts FilterOptions, now time.Time) []Transaction {
	out := make([]Transaction, 0, len(txs))
	out = append(out, txs...)

	if !isAll(opts.Type) {
		want := TxType(strings.ToLower(opts.Type))
		out = keep(out, func(tx Transaction) bool { return tx.Type == want })
	}

	if !isAll(opts.Category) {
		want := strings.ToLower(opts.Category)
		out = keep(out, func(tx Transaction) bool { return strings.ToLower(tx.Category) == want })
	}

	if from, ok := rangeStart(opts.DateRange, now); ok {
		exact := opts.DateRange == RangeToday
		out = keep(out, func(tx Transaction) bool {
			if tx.Date.IsZero() {
				return false
			}
			if exact {
				return tx.Date.Equal(from.Time)
			}
			return !tx.Date.Before(from.Time)
		})
	}

	if opts.MinAmount != nil || opts.MaxAmount != nil {
		lo := decimal.Zero
		if opts.MinAmount != nil {
			lo = *opts.MinAmount
		}
		out = keep(out, func(tx Transaction) bool {
			abs := tx.Amount.Abs()
			if abs.LessThan(lo) {
				return false
			}
			return opts.MaxAmount == nil || abs.LessThanOrEqual(*opts.MaxAmount)
		})
	}

	return out
}

// rangeStart returns the first date included by r.
func rangeStart(r DateRange, now time.Time) (Date, bool) {
	today := DateOf(now)
	switch r {
	case RangeToday:
		return today, true
	case RangeWeek:
		return Date{Time: today.AddDate(0, 0, -int(now.Weekday()))}, true
	case RangeMonth:
		return NewDate(today.Year(), int(today.Month()), 1), true
	default:
		return Date{}, false
	}
}

func keep(txs []Transaction, pred func(Transaction) bool) []Transaction {
	out := txs[:0]
	for _, tx := range txs {
		if pred(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Prepend returns a new slice with tx ahead of txs.
func Prepend(txs []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}

// SortByDateDesc returns a copy ordered by date, newest first. Records on
// the same date order by type then number, both descending, matching the
// SQL stores. The service layer applies it to every read.
func SortByDateDesc(txs []Transaction) []Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		if c := strings.Compare(string(b.Type), string(a.Type)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.Num, a.ID.Num)
	})
	return out
}

// Categories returns the distinct categories in first-seen order.
func Categories(txs []Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for _, tx := range txs {
		key := strings.ToLower(tx.Category)
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}
