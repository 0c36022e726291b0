package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ricorrenze/internal/core"
)

// ruleResponse is the wire shape of a rule. Monetary values carry both
// raw cents and a display string; timestamps are RFC3339, dates are
// plain YYYY-MM-DD.
type ruleResponse struct {
	ID                    int64  `json:"id"`
	Title                 string `json:"title"`
	AmountCents           int64  `json:"amount_cents"`
	Amount                string `json:"amount"`
	Kind                  string `json:"kind"`
	Category              string `json:"category,omitempty"`
	Frequency             string `json:"frequency"`
	StartDate             string `json:"start_date"`
	NextOccurrence        string `json:"next_occurrence"`
	EstimatedMonthlyCents int64  `json:"estimated_monthly_cents"`
	EstimatedMonthly      string `json:"estimated_monthly"`
	Active                bool   `json:"active"`
	ReminderEnabled       bool   `json:"reminder_enabled"`
	ReminderDaysBefore    int    `json:"reminder_days_before"`
	CreatedAt             string `json:"created_at"`
	UpdatedAt             string `json:"updated_at"`
}

func toRuleResponse(r core.Rule) ruleResponse {
	return ruleResponse{
		ID:                    r.ID,
		Title:                 r.Title,
		AmountCents:           r.Amount.Cents,
		Amount:                r.Amount.Format(),
		Kind:                  string(r.Kind),
		Category:              r.Category,
		Frequency:             string(r.Frequency),
		StartDate:             r.StartDate.Format("2006-01-02"),
		NextOccurrence:        r.NextOccurrence.Format(time.RFC3339),
		EstimatedMonthlyCents: r.EstimatedMonthly.Cents,
		EstimatedMonthly:      r.EstimatedMonthly.Format(),
		Active:                r.Active,
		ReminderEnabled:       r.ReminderEnabled,
		ReminderDaysBefore:    r.ReminderDaysBefore,
		CreatedAt:             r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             r.UpdatedAt.Format(time.RFC3339),
	}
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	RuleID      int64  `json:"rule_id"`
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurred_at"`
	CreatedAt   string `json:"created_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		RuleID:      t.RuleID,
		Kind:        string(t.Kind),
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.Format(),
		Category:    t.Category,
		Description: t.Description,
		OccurredAt:  t.OccurredAt.Format(time.RFC3339),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
