package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var rowRange = regexp.MustCompile(`!A(\d+):F\d+`)

// fakeSheet serves the subset of the Sheets values API the client uses.
type fakeSheet struct {
	mu    sync.Mutex
	grid  [][]any
	calls []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		writeJSON(w, map[string]any{"range": "Transactions!A:F", "values": f.grid})
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		n := rowNumber(path)
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil || n == 0 || n > len(f.grid) {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		f.grid[n-1] = vr.Values[0]
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, "bad append", http.StatusBadRequest)
			return
		}
		f.grid = append(f.grid, vr.Values...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		n := rowNumber(strings.TrimSuffix(path, ":clear"))
		if n == 0 || n > len(f.grid) {
			http.Error(w, "bad clear", http.StatusBadRequest)
			return
		}
		f.grid[n-1] = []any{}
		writeJSON(w, map[string]any{})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func rowNumber(path string) int {
	m := rowRange.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-id", "Transactions"), fake
}

func income(num int64, amount string) core.Transaction {
	return core.NewTransaction(core.NewTxID(core.TxTypeIncome, num), core.TransactionInput{
		Type:        core.TxTypeIncome,
		Date:        core.NewDate(2025, 4, 1),
		Category:    "Salary",
		Description: "April",
		Amount:      decimal.RequireFromString(amount),
	})
}

func TestClient_UpsertAppendsWithHeader(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.Upsert(ctx, income(1, "2500")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(fake.grid) != 2 {
		t.Fatalf("grid has %d rows, want header plus one", len(fake.grid))
	}
	if fake.grid[0][0] != "ID" {
		t.Errorf("first row = %v, want header", fake.grid[0])
	}

	rows, err := c.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Key != "income-1" || rows[0].Amount != "2500.00" {
		t.Fatalf("Rows() = %+v", rows)
	}
}

func TestClient_UpsertReplacesExistingRow(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{income(1, "100"), income(2, "200"), income(1, "150")} {
		if err := c.Upsert(ctx, tx); err != nil {
			t.Fatalf("Upsert(%s) error = %v", tx.ID, err)
		}
	}

	rows, err := c.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Rows() = %+v, want 2 rows", rows)
	}
	if rows[0].Key != "income-1" || rows[0].Amount != "150.00" {
		t.Errorf("row 1 = %+v, want updated income-1", rows[0])
	}
	if got := fake.calls[len(fake.calls)-2]; got != "update" {
		t.Errorf("second-to-last call = %q, want update", got)
	}
}

func TestClient_Delete(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_ = c.Upsert(ctx, income(1, "100"))
	_ = c.Upsert(ctx, income(2, "200"))

	if err := c.Delete(ctx, core.NewTxID(core.TxTypeIncome, 1)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, core.NewTxID(core.TxTypeExpense, 9)); err != nil {
		t.Fatalf("Delete() of absent row error = %v", err)
	}

	rows, _ := c.Rows(ctx)
	if len(rows) != 1 || rows[0].Key != "income-2" {
		t.Fatalf("Rows() after delete = %+v", rows)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}

	if err := c.Upsert(context.Background(), income(1, "1")); err == nil {
		t.Error("Upsert() should fail without a service")
	}
	if err := c.Delete(context.Background(), core.NewTxID(core.TxTypeIncome, 1)); err == nil {
		t.Error("Delete() should fail without a service")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("New() error = %v, want missing GOOGLE_SPREADSHEET_ID", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := newSheetsService(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("newSheetsService() error = %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), Config{ServiceAccountFile: t.TempDir() + "/missing.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("newSheetsService() error = %v", err)
	}
}

func TestFindRow(t *testing.T) {
	keys := []string{"ID", "income-1", "", "expense-1"}
	tests := []struct {
		key  string
		want int
	}{
		{"income-1", 2},
		{"expense-1", 4},
		{"expense-2", 0},
	}
	for _, tt := range tests {
		if got := findRow(keys, tt.key); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
