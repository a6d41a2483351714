package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Mirror is an in-memory sheet used when no spreadsheet is configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows []sheets.Row
}

var (
	_ sheets.TransactionMirror = (*Mirror)(nil)
	_ sheets.RowLister         = (*Mirror)(nil)
)

func New() *Mirror {
	return &Mirror{}
}

// Upsert replaces the row in place or appends it.
func (m *Mirror) Upsert(_ context.Context, tx core.Transaction) error {
	row := sheets.RowFor(tx)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Key == row.Key {
			m.rows[i] = row
			return nil
		}
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *Mirror) Delete(_ context.Context, id core.TxID) error {
	key := id.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Key == key {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Mirror) Rows(_ context.Context) ([]sheets.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sheets.Row(nil), m.rows...), nil
}
