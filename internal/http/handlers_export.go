package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-pdf/fpdf"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// reportRows is how many transactions the reports list.
const reportRows = 20

// handleExport writes a PDF report with the current month totals followed by
// the newest transactions. format=txt renders the same report as text and
// format=csv dumps every transaction.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "csv" && format != "txt" {
		writeAPIError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("unsupported format %q", format))
		return
	}

	txs, err := s.transactions.List(r.Context(), FilterOptionsFromQuery(r.URL.Query()))
	if err != nil {
		writeServiceError(w, r, err, log.OpExport)
		return
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := writeCSV(&buf, txs); err != nil {
			writeServiceError(w, r, err, log.OpExport)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	default:
		ov, err := s.summaries.Overview(r.Context(), s.now())
		if err != nil {
			writeServiceError(w, r, err, log.OpExport)
			return
		}
		if format == "txt" {
			writeReport(&buf, ov, txs)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			break
		}
		if err := writePDFReport(&buf, ov, txs); err != nil {
			writeServiceError(w, r, err, log.OpExport)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
	}

	atomic.AddInt64(&s.appMetrics.exports, 1)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="financial-report.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "date", "type", "category", "description", "amount"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		rec := []string{
			tx.ID.String(),
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			tx.Amount.StringFixed(2),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// report is the content shared by the text and PDF exports.
type report struct {
	title   string
	summary []string
	rows    []string
}

func newReport(ov core.MonthOverview, txs []core.Transaction) report {
	if len(txs) > reportRows {
		txs = txs[:reportRows]
	}
	rep := report{
		title: fmt.Sprintf("Financial Report (%s)", ov.CurrentMonth),
		summary: []string{
			"Income: " + formatMoney(ov.Current.Income),
			"Expenses: " + formatMoney(ov.Current.Expenses),
			"Balance: " + formatMoney(ov.Balance),
		},
		rows: make([]string, 0, len(txs)),
	}
	for _, tx := range txs {
		rep.rows = append(rep.rows, fmt.Sprintf("%s | %s | %s | %s", tx.Date, tx.Category, formatTxAmount(tx), tx.Description))
	}
	return rep
}

func writeReport(w io.Writer, ov core.MonthOverview, txs []core.Transaction) {
	rep := newReport(ov, txs)
	fmt.Fprintf(w, "%s\n\n", rep.title)
	for _, line := range rep.summary {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Transactions:")
	for _, line := range rep.rows {
		fmt.Fprintln(w, line)
	}
}

func writePDFReport(w io.Writer, ov core.MonthOverview, txs []core.Transaction) error {
	rep := newReport(ov, txs)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(rep.title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(rep.title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range rep.summary {
		pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Transactions:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range rep.rows {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf report: %w", err)
	}
	return nil
}
