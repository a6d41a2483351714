package core

import (
	"testing"
	"time"
)

func ids(txs []Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID.String()
	}
	return out
}

func sameIDs(t *testing.T, got []Transaction, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

// Wednesday.
var filterNow = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func filterFixture() []Transaction {
	return []Transaction{
		tx(TxTypeIncome, 1, NewDate(2025, 3, 12), "75", "Salary"),
		tx(TxTypeExpense, 1, NewDate(2025, 3, 11), "40", "Food"),
		tx(TxTypeExpense, 2, NewDate(2025, 3, 9), "120", "rent"),
		tx(TxTypeIncome, 2, NewDate(2025, 3, 8), "50", "Gift"),
		tx(TxTypeExpense, 3, NewDate(2025, 2, 28), "100", "food"),
		{ID: NewTxID(TxTypeExpense, 4), Amount: dec("-5"), Category: "Food", Type: TxTypeExpense},
	}
}

func TestFilterTransactions(t *testing.T) {
	txs := filterFixture()
	min50, max100 := dec("50"), dec("100")

	cases := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"no filter", FilterOptions{}, []string{"income-1", "expense-1", "expense-2", "income-2", "expense-3", "expense-4"}},
		{"all is no-op", FilterOptions{Type: "all", Category: "all", DateRange: RangeAll}, []string{"income-1", "expense-1", "expense-2", "income-2", "expense-3", "expense-4"}},
		{"income only", FilterOptions{Type: "income"}, []string{"income-1", "income-2"}},
		{"category case-insensitive", FilterOptions{Category: "FOOD"}, []string{"expense-1", "expense-3", "expense-4"}},
		{"today", FilterOptions{DateRange: RangeToday}, []string{"income-1"}},
		{"week starts sunday", FilterOptions{DateRange: RangeWeek}, []string{"income-1", "expense-1", "expense-2"}},
		{"month", FilterOptions{DateRange: RangeMonth}, []string{"income-1", "expense-1", "expense-2", "income-2"}},
		{"amount range uses abs", FilterOptions{MinAmount: &min50, MaxAmount: &max100}, []string{"income-1", "income-2", "expense-3"}},
		{"min only", FilterOptions{MinAmount: &max100}, []string{"expense-2", "expense-3"}},
		{"combined", FilterOptions{Type: "expense", Category: "food", DateRange: RangeMonth}, []string{"expense-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sameIDs(t, FilterTransactions(txs, tc.opts, filterNow), tc.want...)
		})
	}
}

func TestFilterTransactionsDoesNotMutateInput(t *testing.T) {
	txs := filterFixture()
	before := ids(txs)
	_ = FilterTransactions(txs, FilterOptions{Type: "expense", DateRange: RangeMonth}, filterNow)
	sameIDs(t, txs, before...)
}

func TestFilterTransactionsIdempotent(t *testing.T) {
	opts := FilterOptions{Type: "income"}
	once := FilterTransactions(filterFixture(), opts, filterNow)
	twice := FilterTransactions(once, opts, filterNow)
	sameIDs(t, twice, ids(once)...)
}

func TestFilterTodayExcludesYesterday(t *testing.T) {
	txs := []Transaction{tx(TxTypeExpense, 1, NewDate(2025, 3, 11), "10", "Food")}
	got := FilterTransactions(txs, FilterOptions{DateRange: RangeToday}, filterNow)
	if len(got) != 0 {
		t.Fatalf("expected no transactions, got %v", ids(got))
	}
}

func TestFilterWeekOnSunday(t *testing.T) {
	sunday := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	got := FilterTransactions(filterFixture(), FilterOptions{DateRange: RangeWeek}, sunday)
	// the clock is on Sunday, so only that day and later count
	sameIDs(t, got, "income-1", "expense-1", "expense-2")
}

func TestParseFilterOptions(t *testing.T) {
	opts := ParseFilterOptions("INCOME", " Food ", "Week", "abc", "100")
	if opts.Type != "income" || opts.Category != "Food" || opts.DateRange != RangeWeek {
		t.Fatalf("got %+v", opts)
	}
	if opts.MinAmount != nil {
		t.Fatalf("unparseable min should be unset, got %s", opts.MinAmount)
	}
	if opts.MaxAmount == nil || !opts.MaxAmount.Equal(dec("100")) {
		t.Fatalf("max = %v", opts.MaxAmount)
	}

	fallback := ParseFilterOptions("transfer", "", "yesterday", "", "x")
	if fallback.Type != OptionAll || fallback.DateRange != RangeAll || !fallback.IsZero() {
		t.Fatalf("got %+v", fallback)
	}
}

func TestMalformedDatesOnlyMatchAll(t *testing.T) {
	txs := filterFixture()
	got := FilterTransactions(txs, FilterOptions{Category: "food"}, filterNow)
	sameIDs(t, got, "expense-1", "expense-3", "expense-4")

	got = FilterTransactions(txs, FilterOptions{Category: "food", DateRange: RangeMonth}, filterNow)
	sameIDs(t, got, "expense-1")
}

func TestPrependAndSort(t *testing.T) {
	older := tx(TxTypeExpense, 1, NewDate(2025, 1, 1), "1", "A")
	newer := tx(TxTypeExpense, 2, NewDate(2025, 2, 1), "1", "A")
	past := tx(TxTypeIncome, 1, NewDate(2024, 12, 1), "1", "A")

	list := Prepend(nil, older)
	list = Prepend(list, newer)
	list = Prepend(list, past)
	sameIDs(t, list, "income-1", "expense-2", "expense-1")

	sameIDs(t, SortByDateDesc(list), "expense-2", "expense-1", "income-1")
	sameIDs(t, list, "income-1", "expense-2", "expense-1")
}

func TestSortByDateDescSameDay(t *testing.T) {
	day := NewDate(2025, 3, 5)
	list := []Transaction{
		tx(TxTypeExpense, 2, day, "1", "A"),
		tx(TxTypeIncome, 3, day, "1", "A"),
		tx(TxTypeExpense, 7, day, "1", "A"),
		tx(TxTypeIncome, 10, day, "1", "A"),
		tx(TxTypeExpense, 1, NewDate(2025, 3, 6), "1", "A"),
	}
	sameIDs(t, SortByDateDesc(list), "expense-1", "income-10", "income-3", "expense-7", "expense-2")
}

func TestCategories(t *testing.T) {
	got := Categories(filterFixture())
	want := []string{"Salary", "Food", "rent", "Gift"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v", got)
		}
	}
}
