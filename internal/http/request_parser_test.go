package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"ricorrenze/internal/core"
)

func TestAmountString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string amount", `{"amount": "12,34"}`, "12,34"},
		{"numeric amount", `{"amount": 12.34}`, "12.34"},
		{"integer amount", `{"amount": 15}`, "15"},
		{"empty string", `{"amount": ""}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			parsed, err := decodeRuleRequest(req)
			if err != nil {
				t.Fatalf("decodeRuleRequest() error = %v", err)
			}
			if string(parsed.Amount) != tt.want {
				t.Errorf("amount = %q, want %q", parsed.Amount, tt.want)
			}
		})
	}

	t.Run("boolean amount is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount": true}`))
		if _, err := decodeRuleRequest(req); err == nil {
			t.Error("decodeRuleRequest() should reject a boolean amount")
		}
	})
}

func TestRuleRequest_ToRule(t *testing.T) {
	req := &ruleRequest{
		Title:              "  Affitto\x00 ",
		Amount:             "850",
		Kind:               "EXPENSE",
		Category:           "Casa",
		Frequency:          "Monthly",
		StartDate:          "2024-03-15",
		ReminderEnabled:    true,
		ReminderDaysBefore: 2,
	}

	rule, err := req.toRule()
	if err != nil {
		t.Fatalf("toRule() error = %v", err)
	}
	if rule.Title != "Affitto" {
		t.Errorf("title = %q, want control characters stripped and trimmed", rule.Title)
	}
	if rule.Amount.Cents != 85000 {
		t.Errorf("amount cents = %d, want 85000", rule.Amount.Cents)
	}
	if rule.Kind != core.Expense {
		t.Errorf("kind = %q, want expense", rule.Kind)
	}
	if rule.Frequency != core.Monthly {
		t.Errorf("frequency = %q, want monthly", rule.Frequency)
	}
	if !rule.Active {
		t.Error("new rules should default to active")
	}
	if got := rule.StartDate.Format("2006-01-02"); got != "2024-03-15" {
		t.Errorf("start date = %q, want 2024-03-15", got)
	}
}

func TestRuleRequest_ToRule_BadStartDate(t *testing.T) {
	for _, date := range []string{"", "15/03/2024", "2024-13-01", "yesterday"} {
		req := &ruleRequest{Title: "x", Amount: "1", StartDate: date}
		if _, err := req.toRule(); err == nil {
			t.Errorf("toRule() with start_date %q should fail", date)
		}
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		id      string
		want    int64
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.SetPathValue("id", tt.id)
		got, err := pathID(req)
		if (err != nil) != tt.wantErr {
			t.Errorf("pathID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("pathID(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}
