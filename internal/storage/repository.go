package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// PoolConfig tunes the connection pool of network databases.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns sensible pool defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Repository stores transactions in the income and expense tables as
// integer cents. Expenses are stored unsigned and negated on read. Reads are ordered by date, newest
// first.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection. Queries are rebound to the
// connection's placeholder style.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open(DialectSQLite.DriverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db), nil
}

func NewPostgresRepository(ctx context.Context, dsn string, pool PoolConfig) (*Repository, error) {
	db, err := sqlx.Open(DialectPostgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db), nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create implements store.TransactionWriter
func (r *Repository) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	table, err := tableFor(in.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	query := r.db.Rebind(fmt.Sprintf(insertQuery, table))
	var id int64
	if err := r.db.QueryRowxContext(ctx, query, core.ToCents(in.Amount.Abs()), in.Category, in.Description, in.Date).Scan(&id); err != nil {
		return core.Transaction{}, fmt.Errorf("insert %s: %w", in.Type, err)
	}

	tx := core.NewTransaction(core.NewTxID(in.Type, id), in)
	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID.String(),
		"amount", tx.Amount.String(),
		"category", tx.Category,
		"date", tx.Date.String())

	return tx, nil
}

// Update implements store.TransactionWriter
func (r *Repository) Update(ctx context.Context, id core.TxID, in core.TransactionInput) (core.Transaction, error) {
	if in.Type != id.Type {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, core.ErrTypeMismatch)
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	table, err := tableFor(id.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	query := r.db.Rebind(fmt.Sprintf(updateQuery, table))
	res, err := r.db.ExecContext(ctx, query, core.ToCents(in.Amount.Abs()), in.Category, in.Description, in.Date, id.Num)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id.String())
	return core.NewTransaction(id, in), nil
}

// Delete implements store.TransactionWriter
func (r *Repository) Delete(ctx context.Context, id core.TxID) error {
	table, err := tableFor(id.Type)
	if err != nil {
		return err
	}

	query := r.db.Rebind(fmt.Sprintf(deleteQuery, table))
	res, err := r.db.ExecContext(ctx, query, id.Num)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id.String())
	return nil
}

type txRow struct {
	ID          int64           `db:"id"`
	AmountCents int64           `db:"amount_cents"`
	Category    string          `db:"category"`
	Description string          `db:"description"`
	Date        core.Date       `db:"date"`
	Type        string          `db:"type"`
}

// List implements store.TransactionReader
func (r *Repository) List(ctx context.Context) ([]core.Transaction, error) {
	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, listQuery); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := core.ParseTxType(row.Type)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		out = append(out, core.Transaction{
			ID:          core.NewTxID(t, row.ID),
			Amount:      core.FromCents(row.AmountCents),
			Category:    row.Category,
			Description: row.Description,
			Date:        row.Date,
			Type:        t,
			Status:      core.StatusSuccess,
		})
	}
	return out, nil
}

// MonthlyTotals implements store.MonthlySummer
func (r *Repository) MonthlyTotals(ctx context.Context, year, month int) (core.Totals, error) {
	from, to := core.MonthRange(year, month)

	var totals struct {
		IncomeCents  int64 `db:"income_cents"`
		ExpenseCents int64 `db:"expense_cents"`
	}
	query := r.db.Rebind(monthlyTotalsQuery)
	if err := r.db.GetContext(ctx, &totals, query, from, to, from, to); err != nil {
		return core.Totals{}, fmt.Errorf("monthly totals %d-%02d: %w", year, month, err)
	}

	return core.Totals{Income: core.FromCents(totals.IncomeCents), Expenses: core.FromCents(totals.ExpenseCents)}, nil
}

func tableFor(t core.TxType) (string, error) {
	switch t {
	case core.TxTypeIncome:
		return "income", nil
	case core.TxTypeExpense:
		return "expense", nil
	default:
		return "", core.NewValidationError("type", core.ErrInvalidType)
	}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
