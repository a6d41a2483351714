// Package memory is an in-process transaction store. Its read order is
// insertion order, newest first.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"fintrack/internal/core"
)

type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
	next  map[core.TxType]int64
}

func New() *Store {
	return &Store{next: map[core.TxType]int64{
		core.TxTypeIncome:  0,
		core.TxTypeExpense: 0,
	}}
}

// NewFromFile seeds a store from a JSON array of transaction inputs
// ({type, date, category, description, amount}). A missing file yields an
// empty store. Seeds are inserted in file order, so the last entry lists first.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []struct {
		Type        core.TxType `json:"type"`
		Date        core.Date   `json:"date"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
	}
	if err := json.Unmarshal(b, &seeds); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	for i, sd := range seeds {
		amount, err := core.ParseAmount(sd.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		in := core.TransactionInput{
			Type:        sd.Type,
			Date:        sd.Date,
			Category:    sd.Category,
			Description: sd.Description,
			Amount:      amount,
		}.Normalize()
		if _, err := s.Create(context.Background(), in); err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
	}
	return s, nil
}

// Create stores the transaction ahead of all existing ones.
func (s *Store) Create(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[in.Type]++
	tx := core.NewTransaction(core.NewTxID(in.Type, s.next[in.Type]), in)
	s.items = core.Prepend(s.items, tx)
	return tx, nil
}

// Update replaces a transaction in place, keeping its position.
func (s *Store) Update(_ context.Context, id core.TxID, in core.TransactionInput) (core.Transaction, error) {
	if in.Type != id.Type {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, core.ErrTypeMismatch)
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	tx := core.NewTransaction(id, in)
	s.items[i] = tx
	return tx, nil
}

// Delete removes a transaction.
func (s *Store) Delete(_ context.Context, id core.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// List returns a snapshot copy, newest inserted first.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items), nil
}

// MonthlyTotals aggregates the current snapshot.
func (s *Store) MonthlyTotals(ctx context.Context, year, month int) (core.Totals, error) {
	txs, _ := s.List(ctx)
	return core.MonthlyTotals(txs, year, month), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id core.TxID) int {
	return slices.IndexFunc(s.items, func(tx core.Transaction) bool { return tx.ID == id })
}
