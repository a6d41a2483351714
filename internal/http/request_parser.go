// Package http provides the JSON API, the htmx dashboard and the export
// endpoints.
//
// This file holds the request decoding shared by the JSON and form handlers.
package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and keeps it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("decode form body: %w", p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// TransactionInput builds the add/update input from the parsed body. Field
// problems come back as *core.ValidationError.
func (p *RequestBodyParser) TransactionInput() (core.TransactionInput, error) {
	in := core.TransactionInput{
		Type:        core.TxType(strings.ToLower(p.Get("type"))),
		Category:    p.Get("category"),
		Description: p.Get("description"),
	}

	if raw := p.Get("date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return in, core.NewValidationError("date", err)
		}
		in.Date = d
	}

	raw := p.Get("amount")
	if raw == "" {
		return in, core.NewValidationError("amount", core.ErrMissingField)
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return in, core.NewValidationError("amount", err)
	}
	in.Amount = amount
	return in, nil
}

// TxID resolves the "id" field, which may be "income-3" or a bare number
// paired with the "type" field.
func (p *RequestBodyParser) TxID() (core.TxID, error) {
	raw := p.Get("id")
	if raw == "" {
		return core.TxID{}, core.NewValidationError("id", core.ErrMissingField)
	}
	id, err := core.ResolveTxID(raw, core.TxType(strings.ToLower(p.Get("type"))))
	if err != nil {
		return core.TxID{}, core.NewValidationError("id", err)
	}
	return id, nil
}

// FilterOptionsFromQuery reads the list filters from the query string.
func FilterOptionsFromQuery(q url.Values) core.FilterOptions {
	return core.ParseFilterOptions(
		q.Get("type"),
		q.Get("category"),
		q.Get("dateRange"),
		q.Get("minAmount"),
		q.Get("maxAmount"),
	)
}
