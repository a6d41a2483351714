package http

import (
	"bytes"
	"net/http"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// summaryView is the dashboard card data, preformatted for the templates.
type summaryView struct {
	Available     bool
	Month         string
	PreviousMonth string
	Income        string
	Expenses      string
	Balance       string
	Negative      bool
	IncomeChange  string
	ExpenseChange string
	Limit         string
	Remaining     string
	Progress      int64
	Exceeded      bool
}

func newSummaryView(ov core.MonthOverview) summaryView {
	return summaryView{
		Available:     true,
		Month:         ov.CurrentMonth,
		PreviousMonth: ov.PreviousMonth,
		Income:        formatMoney(ov.Current.Income),
		Expenses:      formatMoney(ov.Current.Expenses),
		Balance:       formatMoney(ov.Balance),
		Negative:      ov.Balance.IsNegative(),
		IncomeChange:  formatPercent(ov.Changes.Income),
		ExpenseChange: formatPercent(ov.Changes.Expenses),
		Limit:         formatMoney(ov.Limit.Limit),
		Remaining:     formatMoney(ov.Limit.Remaining),
		Progress:      ov.Limit.Progress.Round(0).IntPart(),
		Exceeded:      ov.Limit.Exceeded(),
	}
}

type filterView struct {
	Type      string
	Category  string
	DateRange string
	MinAmount string
	MaxAmount string
}

type transactionsView struct {
	Transactions []core.Transaction
	Filtered     bool
}

type dashboardData struct {
	Today        string
	Summary      summaryView
	Transactions transactionsView
	Categories   []string
	Filters      filterView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	q := r.URL.Query()
	opts := FilterOptionsFromQuery(q)

	data := dashboardData{
		Today:   core.DateOf(s.now()).String(),
		Summary: s.summaryView(r),
		Filters: filterView{
			Type:      opts.Type,
			Category:  opts.Category,
			DateRange: string(opts.DateRange),
			MinAmount: q.Get("minAmount"),
			MaxAmount: q.Get("maxAmount"),
		},
	}

	txs, err := s.transactions.List(ctx, opts)
	if err != nil {
		logger.LogError(ctx, "List transactions failed", err, log.OpList, nil)
	}
	data.Transactions = transactionsView{Transactions: txs, Filtered: !opts.IsZero()}

	cats, err := s.transactions.Categories(ctx)
	if err != nil {
		logger.LogError(ctx, "List categories failed", err, log.OpList, nil)
	}
	data.Categories = cats

	s.render(w, r, "index.html", data)
}

// summaryView loads the overview; failures render the unavailable card.
func (s *Server) summaryView(r *http.Request) summaryView {
	ov, err := s.summaries.Overview(r.Context(), s.now())
	if err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Monthly summary failed", err, log.OpSummary, nil)
		return summaryView{}
	}
	return newSummaryView(ov)
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "summary", s.summaryView(r))
}

func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request) {
	opts := FilterOptionsFromQuery(r.URL.Query())
	txs, err := s.transactions.List(r.Context(), opts)
	if err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "List transactions failed", err, log.OpList, nil)
		InternalServerError("Failed to load transactions").Write(w)
		return
	}
	s.render(w, r, "transactions", transactionsView{Transactions: txs, Filtered: !opts.IsZero()})
}

// handleCreateTransactionForm adds a transaction, or updates one when the
// form carries an id.
func (s *Server) handleCreateTransactionForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}

	editing := p.Get("id") != ""
	op, action := log.OpCreate, "created"
	if editing {
		op, action = log.OpUpdate, "updated"
	}

	in, err := p.TransactionInput()
	if err != nil {
		s.writeUIError(w, r, err, op, saveFailure(in.Type, editing))
		return
	}

	var tx core.Transaction
	if editing {
		var id core.TxID
		if id, err = p.TxID(); err == nil {
			tx, err = s.transactions.Update(ctx, id, in)
		}
	} else {
		tx, err = s.transactions.Add(ctx, in)
	}
	if err != nil {
		s.writeUIError(w, r, err, op, saveFailure(in.Type, editing))
		return
	}

	if editing {
		atomic.AddInt64(&s.appMetrics.updated, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.created, 1)
	}
	s.logTransaction(ctx, "Transaction saved from dashboard", tx, op)

	NewHTMXResponse().
		TriggerTransactionChanged(action, tx.ID, tx.Date).
		TriggerFormReset().
		TriggerSuccessNotification(saveSuccess(tx.Type, editing)).
		Write(w)
}

func (s *Server) handleDeleteTransactionForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := core.ParseTxID(r.PathValue("id"))
	if err != nil {
		s.writeUIError(w, r, core.NewValidationError("id", err), log.OpDelete, "Failed to delete transaction")
		return
	}

	if err := s.transactions.Delete(ctx, id); err != nil {
		s.writeUIError(w, r, err, log.OpDelete, "Failed to delete transaction")
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	log.FromContext(ctx).InfoContext(ctx, "Transaction deleted from dashboard",
		log.FieldTxID, id.String(),
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerTransactionChanged("deleted", id, core.DateOf(s.now())).
		TriggerSuccessNotification("Transaction deleted successfully").
		Write(w)
}

// writeUIError logs err and answers with an error fragment and toast.
func (s *Server) writeUIError(w http.ResponseWriter, r *http.Request, err error, op, toast string) {
	status, _, details, errType := classifyError(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithErrorType(errType)
	if status >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Dashboard request failed", err, op, fields)
		details = toast
	} else {
		logger.WarnContext(r.Context(), "Dashboard request rejected", fields.WithError(err).WithOperation(op).ToSlice()...)
		details = toast + ": " + details
	}
	ErrorResponse(status, details).Write(w)
}

func saveSuccess(t core.TxType, editing bool) string {
	switch {
	case t == core.TxTypeIncome && editing:
		return "Income updated"
	case t == core.TxTypeIncome:
		return "Income added successfully"
	case editing:
		return "Expense updated"
	default:
		return "Expense added successfully"
	}
}

func saveFailure(t core.TxType, editing bool) string {
	switch {
	case editing && t == core.TxTypeIncome:
		return "Error saving income"
	case editing:
		return "Error saving expense"
	case t == core.TxTypeIncome:
		return "Failed to add income"
	default:
		return "Failed to add expense"
	}
}

// render executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Template execution failed", err, log.OpRender,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(buf.Bytes()).Write(w)
}
