package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type transactionDTO struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Status      string      `json:"status"`
}

func toTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          tx.ID.String(),
		Amount:      num(tx.Amount),
		Category:    tx.Category,
		Description: tx.Description,
		Date:        tx.Date.String(),
		Type:        string(tx.Type),
		Status:      tx.Status,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx))
	}
	return out
}

type totalsDTO struct {
	Income   json.Number `json:"income"`
	Expenses json.Number `json:"expenses"`
}

type spendingLimitDTO struct {
	Limit     json.Number `json:"limit"`
	Remaining json.Number `json:"remaining"`
	Progress  json.Number `json:"progress"`
}

type summaryDTO struct {
	Current       totalsDTO        `json:"current"`
	Previous      totalsDTO        `json:"previous"`
	CurrentMonth  string           `json:"currentMonth"`
	PreviousMonth string           `json:"previousMonth"`
	Changes       totalsDTO        `json:"changes"`
	Balance       json.Number      `json:"balance"`
	SpendingLimit spendingLimitDTO `json:"spendingLimit"`
}

func toSummaryDTO(ov core.MonthOverview) summaryDTO {
	return summaryDTO{
		Current:       totalsDTO{Income: num(ov.Current.Income), Expenses: num(ov.Current.Expenses)},
		Previous:      totalsDTO{Income: num(ov.Previous.Income), Expenses: num(ov.Previous.Expenses)},
		CurrentMonth:  ov.CurrentMonth,
		PreviousMonth: ov.PreviousMonth,
		Changes:       totalsDTO{Income: pct(ov.Changes.Income), Expenses: pct(ov.Changes.Expenses)},
		Balance:       num(ov.Balance),
		SpendingLimit: spendingLimitDTO{
			Limit:     num(ov.Limit.Limit),
			Remaining: num(ov.Limit.Remaining),
			Progress:  pct(ov.Limit.Progress),
		},
	}
}

type mutationResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *transactionDTO `json:"data,omitempty"`
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	opts := FilterOptionsFromQuery(r.URL.Query())
	txs, err := s.transactions.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	ov, err := s.summaries.Overview(r.Context(), s.now())
	if err != nil {
		writeServiceError(w, r, err, log.OpSummary)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(ov))
}

// parseBody reads a JSON or form body. Bodiless requests fall back to the
// query string.
func parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(p.body)) == 0 {
		p.formData = r.URL.Query()
	}
	return p, nil
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	in, err := p.TransactionInput()
	if err != nil {
		writeServiceError(w, r, err, log.OpCreate)
		return
	}

	tx, err := s.transactions.Add(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, log.OpCreate)
		return
	}
	atomic.AddInt64(&s.appMetrics.created, 1)
	s.logTransaction(r.Context(), "Transaction created", tx, log.OpCreate)

	dto := toTransactionDTO(tx)
	writeJSON(w, http.StatusCreated, mutationResponse{Success: true, Message: "Transaction added", Data: &dto})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	id, err := p.TxID()
	if err != nil {
		writeServiceError(w, r, err, log.OpUpdate)
		return
	}
	in, err := p.TransactionInput()
	if err != nil {
		writeServiceError(w, r, err, log.OpUpdate)
		return
	}

	tx, err := s.transactions.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err, log.OpUpdate)
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)
	s.logTransaction(r.Context(), "Transaction updated", tx, log.OpUpdate)

	dto := toTransactionDTO(tx)
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: "Transaction updated", Data: &dto})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	id, err := p.TxID()
	if err != nil {
		writeServiceError(w, r, err, log.OpDelete)
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, log.OpDelete)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldTxID, id.String(),
		log.FieldOperation, log.OpDelete)

	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: "Transaction deleted"})
}

func (s *Server) logTransaction(ctx context.Context, msg string, tx core.Transaction, op string) {
	fields := log.NewFields().
		WithTransaction(tx.ID.String(), string(tx.Type), tx.Amount.String(), tx.Category, tx.Date.String()).
		WithOperation(op)
	log.FromContext(ctx).InfoContext(ctx, msg, fields.ToSlice()...)
}

// appMetrics counts mutations since startup.
type appMetrics struct {
	uptime  time.Time
	created int64
	updated int64
	deleted int64
	exports int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports 503 when the store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok", "store": "ok"}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("transactions_created_total", "Transactions created", "counter", atomic.LoadInt64(&s.appMetrics.created))
	metric("transactions_updated_total", "Transactions updated", "counter", atomic.LoadInt64(&s.appMetrics.updated))
	metric("transactions_deleted_total", "Transactions deleted", "counter", atomic.LoadInt64(&s.appMetrics.deleted))
	metric("exports_total", "Reports exported", "counter", atomic.LoadInt64(&s.appMetrics.exports))
	metric("rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds()))
}
