package sheets

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// Header is the first row of a mirror sheet.
var Header = []string{"ID", "Date", "Type", "Category", "Description", "Amount"}

// Row is one mirrored transaction. Key is the "<type>-<num>" identifier
// and is unique within a sheet.
type Row struct {
	Key         string
	Date        string
	Type        string
	Category    string
	Description string
	Amount      string
}

// RowFor converts a stored transaction into its sheet row.
func RowFor(tx core.Transaction) Row {
	return Row{
		Key:         tx.ID.String(),
		Date:        tx.Date.String(),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Description: tx.Description,
		Amount:      tx.Amount.StringFixed(2),
	}
}

// Values returns the row as sheet cells in Header order.
func (r Row) Values() []any {
	return []any{r.Key, r.Date, r.Type, r.Category, r.Description, r.Amount}
}

// RowFromValues reads a row of cells. Missing trailing cells are empty.
func RowFromValues(cells []any) Row {
	get := func(i int) string {
		if i >= len(cells) || cells[i] == nil {
			return ""
		}
		if s, ok := cells[i].(string); ok {
			return strings.TrimSpace(s)
		}
		if f, ok := cells[i].(float64); ok {
			return fmt.Sprintf("%.2f", f)
		}
		return strings.TrimSpace(fmt.Sprint(cells[i]))
	}
	return Row{
		Key:         get(0),
		Date:        get(1),
		Type:        get(2),
		Category:    get(3),
		Description: get(4),
		Amount:      get(5),
	}
}

// Ports for outbound adapters.
type (
	// TransactionMirror keeps a sheet in step with the transaction store.
	TransactionMirror interface {
		// Upsert replaces the row keyed by tx.ID or appends a new one.
		Upsert(ctx context.Context, tx core.Transaction) error
		// Delete removes the row keyed by id. Missing rows are not an error.
		Delete(ctx context.Context, id core.TxID) error
	}

	// RowLister reads back every mirrored row in sheet order.
	RowLister interface {
		Rows(ctx context.Context) ([]Row, error)
	}
)
