package storage

// Table names are substituted from a fixed set; values always go through
// placeholders written as ? and rebound per driver. Amounts are integer
// cents so sums stay exact on every backend.
const (
	insertQuery = `INSERT INTO %s (amount_cents, category, description, date) VALUES (?, ?, ?, ?) RETURNING id`

	updateQuery = `UPDATE %s SET amount_cents = ?, category = ?, description = ?, date = ? WHERE id = ?`

	deleteQuery = `DELETE FROM %s WHERE id = ?`

	listQuery = `
SELECT id, amount_cents, category, description, date, 'income' AS type FROM income
UNION ALL
SELECT id, -amount_cents AS amount_cents, category, description, date, 'expense' AS type FROM expense
ORDER BY date DESC, type DESC, id DESC`

	monthlyTotalsQuery = `
SELECT
    (SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM income  WHERE date >= ? AND date < ?) AS income_cents,
    (SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM expense WHERE date >= ? AND date < ?) AS expense_cents`
)
