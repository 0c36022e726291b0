package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ricorrenze/internal/core"
)

// amountString accepts either a JSON string ("12,34") or a bare number
// (12.34) for the amount field. Parsing stays tolerant either way.
type amountString string

func (a *amountString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = amountString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	*a = amountString(n.String())
	return nil
}

// ruleRequest is the wire shape for creating and updating rules.
type ruleRequest struct {
	Title              string       `json:"title"`
	Amount             amountString `json:"amount"`
	Kind               string       `json:"kind"`
	Category           string       `json:"category"`
	Frequency          string       `json:"frequency"`
	StartDate          string       `json:"start_date"` // YYYY-MM-DD
	ReminderEnabled    bool         `json:"reminder_enabled"`
	ReminderDaysBefore int          `json:"reminder_days_before"`
}

// decodeRuleRequest reads and decodes the request body.
func decodeRuleRequest(r *http.Request) (*ruleRequest, error) {
	var req ruleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return &req, nil
}

// toRule maps the request onto a domain rule. Frequency and kind fold
// case-insensitively with their usual defaults; the amount is parsed
// tolerantly, so a malformed amount surfaces later as a validation
// error rather than a parse failure. Only the start date is strict.
func (req *ruleRequest) toRule() (core.Rule, error) {
	startDate, err := time.Parse("2006-01-02", strings.TrimSpace(req.StartDate))
	if err != nil {
		return core.Rule{}, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", req.StartDate)
	}

	return core.Rule{
		Title:              sanitizeInput(req.Title),
		Amount:             core.ParseAmount(string(req.Amount)),
		Kind:               core.ParseKind(req.Kind),
		Category:           sanitizeInput(req.Category),
		Frequency:          core.ParseFrequency(req.Frequency),
		StartDate:          startDate,
		Active:             true,
		ReminderEnabled:    req.ReminderEnabled,
		ReminderDaysBefore: req.ReminderDaysBefore,
	}, nil
}

// pathID extracts the {id} path parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid rule id %q", r.PathValue("id"))
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
