// Package store defines the persistence ports for transactions.
package store

import (
	"context"

	"fintrack/internal/core"
)

// Ports implemented by the memory and SQL stores.
type (
	TransactionWriter interface {
		// Create assigns the next id of the input's type and stores the record.
		Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
		// Update replaces the record with the given id. The input type must
		// match id.Type. Unknown ids yield core.ErrNotFound.
		Update(ctx context.Context, id core.TxID, in core.TransactionInput) (core.Transaction, error)
		// Delete removes the record permanently. Unknown ids yield core.ErrNotFound.
		Delete(ctx context.Context, id core.TxID) error
	}

	TransactionReader interface {
		// List returns every transaction in the store's read order.
		List(ctx context.Context) ([]core.Transaction, error)
	}

	MonthlySummer interface {
		// MonthlyTotals sums income and expense magnitudes for a calendar month.
		MonthlyTotals(ctx context.Context, year, month int) (core.Totals, error)
	}

	// TransactionStore is the full store contract.
	TransactionStore interface {
		TransactionWriter
		TransactionReader
		MonthlySummer
		Close() error
	}

	// Pinger is implemented by stores backed by a remote connection.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
