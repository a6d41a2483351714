package core

import "github.com/shopspring/decimal"

// DefaultSpendingLimit is the monthly expense budget used when none is configured.
var DefaultSpendingLimit = decimal.NewFromInt(12645)

var hundred = decimal.NewFromInt(100)

// Totals holds income and expense sums for a period. Expenses is a
// non-negative magnitude.
type Totals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Balance returns Income - Expenses.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expenses)
}

// MonthlyTotals sums income and expense magnitudes of the records dated in
// the given year and 1-indexed month. No rounding is applied.
func MonthlyTotals(txs []Transaction, year, month int) Totals {
	totals := Totals{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range txs {
		if !tx.Date.InMonth(year, month) {
			continue
		}
		switch tx.Type {
		case TxTypeIncome:
			totals.Income = totals.Income.Add(tx.Amount)
		case TxTypeExpense:
			totals.Expenses = totals.Expenses.Add(tx.Amount.Abs())
		}
	}
	return totals
}

// PercentageChange returns the relative change from previous to current in
// percent. A zero previous total yields 100 when current is positive and 0
// when it is zero.
func PercentageChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsPositive() {
		return current.Sub(previous).Div(previous).Mul(hundred)
	}
	if current.IsPositive() {
		return hundred
	}
	return decimal.Zero
}

// PreviousMonth returns the year and month preceding the given one.
func PreviousMonth(year, month int) (int, int) {
	if month <= 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// MonthKey formats year and month as YYYY-MM.
func MonthKey(year, month int) string {
	return NewDate(year, month, 1).YearMonth()
}

// MonthRange returns the first day of the month and the first day of the
// following month.
func MonthRange(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	return first, Date{Time: first.AddDate(0, 1, 0)}
}

// Changes holds percentage changes between two periods.
type Changes struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// MonthOverview compares the current month with the previous one.
type MonthOverview struct {
	CurrentMonth  string
	PreviousMonth string
	Current       Totals
	Previous      Totals
	Changes       Changes
	Balance       decimal.Decimal
	Limit         SpendingLimit
}

// NewMonthOverview assembles an overview from the two monthly totals.
func NewMonthOverview(year, month int, current, previous Totals, limit decimal.Decimal) MonthOverview {
	py, pm := PreviousMonth(year, month)
	return MonthOverview{
		CurrentMonth:  MonthKey(year, month),
		PreviousMonth: MonthKey(py, pm),
		Current:       current,
		Previous:      previous,
		Changes: Changes{
			Income:   PercentageChange(current.Income, previous.Income),
			Expenses: PercentageChange(current.Expenses, previous.Expenses),
		},
		Balance: current.Balance(),
		Limit:   NewSpendingLimit(limit, current.Expenses),
	}
}

// SpendingLimit tracks monthly expenses against a budget.
type SpendingLimit struct {
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Progress  decimal.Decimal `json:"progress"`
}

// NewSpendingLimit computes remaining budget and progress capped at 100%.
// A non-positive limit reports zero progress.
func NewSpendingLimit(limit, expenses decimal.Decimal) SpendingLimit {
	sl := SpendingLimit{
		Limit:     limit,
		Spent:     expenses,
		Remaining: limit.Sub(expenses),
		Progress:  decimal.Zero,
	}
	if limit.IsPositive() {
		sl.Progress = decimal.Min(expenses.Div(limit).Mul(hundred), hundred)
	}
	return sl
}

// Exceeded reports whether expenses are above the limit.
func (s SpendingLimit) Exceeded() bool {
	return s.Remaining.IsNegative()
}
