package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// classifyError maps a service error to a status, a client message and the
// log error type.
func classifyError(err error) (status int, msg, details, errType string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Transaction not found", err.Error(), log.ErrorTypeNotFound
	case core.IsValidation(err):
		return http.StatusBadRequest, "Invalid request", err.Error(), log.ErrorTypeValidation
	default:
		return http.StatusInternalServerError, "Internal server error", "the transaction store is unavailable", log.ErrorTypeDatabase
	}
}

// writeServiceError logs err and answers with the classified JSON error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, msg, details, errType := classifyError(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithErrorType(errType)
	if status >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Request failed", err, op, fields)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithError(err).WithOperation(op).ToSlice()...)
	}
	writeAPIError(w, status, msg, details)
}

// num renders a decimal as a bare JSON number.
func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// pct renders a percentage rounded to two places.
func pct(d decimal.Decimal) json.Number {
	return json.Number(d.Round(2).String())
}

// formatMoney renders an amount with thousands separators and two decimals,
// e.g. "$1,234.50" or "-$45.00".
func formatMoney(d decimal.Decimal) string {
	f, _ := d.Abs().Round(2).Float64()
	s := "$" + humanize.FormatFloat("#,###.##", f)
	if d.Round(2).IsNegative() {
		return "-" + s
	}
	return s
}

// formatPercent renders a signed percentage such as "+12.5%".
func formatPercent(d decimal.Decimal) string {
	s := d.Round(1).String() + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request came from an htmx element.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// formatTxAmount renders a transaction amount with an explicit sign,
// "+$1,200.00" for income and "-$45.00" for expense.
func formatTxAmount(tx core.Transaction) string {
	s := formatMoney(tx.Magnitude())
	if tx.Type == core.TxTypeIncome {
		return "+" + s
	}
	return "-" + s
}
