package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Header("X-Custom", "1").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("X-Custom") != "1" {
		t.Error("custom header not set")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should be absent without triggers")
	}
}

func TestHTMXResponseBuilder_TransactionTriggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerTransactionChanged("created", core.NewTxID(core.TxTypeIncome, 3), core.NewDate(2025, 2, 14)).
		TriggerFormReset().
		TriggerSuccessNotification("Income added").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{"transaction:created", "summary:refresh", "form:reset", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("missing trigger %q", name)
		}
	}

	created := string(triggers["transaction:created"])
	for _, part := range []string{`"id":"income-3"`, `"month":"2025-02"`} {
		if !strings.Contains(created, part) {
			t.Errorf("transaction:created missing %s: %s", part, created)
		}
	}

	var note struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal(triggers["show-notification"], &note); err != nil {
		t.Fatal(err)
	}
	if note.Type != "success" || note.Message != "Income added" || note.Duration != 3000 {
		t.Errorf("notification = %+v", note)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
	}{
		{"bad request", BadRequestError("amount: invalid amount"), http.StatusBadRequest},
		{"not found", NotFoundError("Transaction not found"), http.StatusNotFound},
		{"internal", InternalServerError("Error saving expense"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
			if !strings.Contains(w.Header().Get("HX-Trigger"), `"duration":5000`) {
				t.Errorf("error toast should last 5000ms: %s", w.Header().Get("HX-Trigger"))
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	BadRequestError(`<script>alert("x")</script>`).Write(w)

	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
}
