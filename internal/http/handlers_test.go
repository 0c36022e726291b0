package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ricorrenze/internal/services"
	"ricorrenze/internal/storage/memory"
)

// stubNotifier records raised and retracted reminders.
type stubNotifier struct {
	mu        sync.Mutex
	raised    []int64
	retracted []int64
}

func (n *stubNotifier) Enabled() bool { return true }

func (n *stubNotifier) RaiseReminder(_ context.Context, ruleID int64, _, _ string, _ int, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.raised = append(n.raised, ruleID)
	return nil
}

func (n *stubNotifier) RetractReminder(_ context.Context, ruleID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retracted = append(n.retracted, ruleID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	scanner := services.NewReminderScanner(store, store, &stubNotifier{}, nil)
	rules := services.NewRuleService(store, scanner, nil)
	processor := services.NewProcessor(store, store, scanner, nil)
	s := NewServer(":0", rules, processor, scanner, store, nil)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s, store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return v
}

func validRulePayload() map[string]any {
	return map[string]any{
		"title":      "Netflix",
		"amount":     "15,99",
		"kind":       "expense",
		"category":   "Abbonamenti",
		"frequency":  "monthly",
		"start_date": "2024-01-01",
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateRule(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[ruleResponse](t, rec)
	if got.ID == 0 {
		t.Error("created rule should have an ID")
	}
	if got.AmountCents != 1599 {
		t.Errorf("amount_cents = %d, want 1599", got.AmountCents)
	}
	if got.Frequency != "monthly" {
		t.Errorf("frequency = %q, want monthly", got.Frequency)
	}
	if got.NextOccurrence != "2024-02-01T00:00:00Z" {
		t.Errorf("next_occurrence = %q, want one month after start", got.NextOccurrence)
	}
	if got.EstimatedMonthlyCents != 1599 {
		t.Errorf("estimated_monthly_cents = %d, want 1599", got.EstimatedMonthlyCents)
	}
	if !got.Active {
		t.Error("new rules should start active")
	}
}

func TestCreateRule_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]any)
		wantStatus int
	}{
		{
			name:       "malformed amount degrades to zero and fails validation",
			mutate:     func(p map[string]any) { p["amount"] = "abc" },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty title",
			mutate:     func(p map[string]any) { p["title"] = "  " },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad start date",
			mutate:     func(p map[string]any) { p["start_date"] = "01/01/2024" },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "negative reminder days",
			mutate:     func(p map[string]any) { p["reminder_days_before"] = -1 },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown field",
			mutate:     func(p map[string]any) { p["surprise"] = true },
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			payload := validRulePayload()
			tt.mutate(payload)

			rec := doJSON(t, s, http.MethodPost, "/api/v1/rules", payload)
			if rec.Code != tt.wantStatus {
				t.Errorf("create = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestCreateRule_NumericAmount(t *testing.T) {
	s, _ := newTestServer(t)

	payload := validRulePayload()
	payload["amount"] = 12.5

	rec := doJSON(t, s, http.MethodPost, "/api/v1/rules", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[ruleResponse](t, rec)
	if got.AmountCents != 1250 {
		t.Errorf("amount_cents = %d, want 1250", got.AmountCents)
	}
}

func TestGetRule(t *testing.T) {
	s, _ := newTestServer(t)

	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload()))

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/rules/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d, want 200", rec.Code)
	}
	got := decodeBody[ruleResponse](t, rec)
	if got.Title != "Netflix" {
		t.Errorf("title = %q, want Netflix", got.Title)
	}

	t.Run("unknown id is 404", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/rules/999", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("get = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/rules/abc", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("get = %d, want 400", rec.Code)
		}
	})
}

func TestListRules_CacheInvalidatedOnWrite(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload())

	first := decodeBody[[]ruleResponse](t, doJSON(t, s, http.MethodGet, "/api/v1/rules", nil))
	if len(first) != 1 {
		t.Fatalf("list = %d rules, want 1", len(first))
	}

	// Second create must invalidate the cached listing.
	payload := validRulePayload()
	payload["title"] = "Palestra"
	doJSON(t, s, http.MethodPost, "/api/v1/rules", payload)

	second := decodeBody[[]ruleResponse](t, doJSON(t, s, http.MethodGet, "/api/v1/rules", nil))
	if len(second) != 2 {
		t.Fatalf("list after second create = %d rules, want 2", len(second))
	}
}

func TestUpdateRule(t *testing.T) {
	s, _ := newTestServer(t)

	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload()))

	payload := validRulePayload()
	payload["amount"] = "19,99"
	rec := doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/rules/%d", created.ID), payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[ruleResponse](t, rec)
	if got.AmountCents != 1999 {
		t.Errorf("amount_cents = %d, want 1999", got.AmountCents)
	}
	if got.EstimatedMonthlyCents != 1999 {
		t.Errorf("estimated_monthly_cents = %d, want 1999", got.EstimatedMonthlyCents)
	}
	// Start date and frequency unchanged: the schedule must not move.
	if got.NextOccurrence != created.NextOccurrence {
		t.Errorf("next_occurrence changed from %q to %q on amount-only update",
			created.NextOccurrence, got.NextOccurrence)
	}
}

func TestActivationToggle(t *testing.T) {
	s, _ := newTestServer(t)

	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload()))

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/rules/%d/deactivate", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate = %d, want 200", rec.Code)
	}
	if got := decodeBody[ruleResponse](t, rec); got.Active {
		t.Error("rule should be inactive after deactivate")
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/rules/%d/activate", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate = %d, want 200", rec.Code)
	}
	if got := decodeBody[ruleResponse](t, rec); !got.Active {
		t.Error("rule should be active after activate")
	}
}

func TestDeleteRule(t *testing.T) {
	s, _ := newTestServer(t)

	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload()))

	rec := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/rules/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestProcessEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// Start date in the past: the seeded occurrence is long overdue.
	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", validRulePayload()))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/process", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("process = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[batchResponse](t, rec)
	if report.Due != 1 {
		t.Errorf("due = %d, want 1", report.Due)
	}
	if len(report.Executed) != 1 || report.Executed[0] != created.ID {
		t.Errorf("executed = %v, want [%d]", report.Executed, created.ID)
	}

	txs := decodeBody[[]transactionResponse](t, doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/rules/%d/transactions", created.ID), nil))
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].AmountCents != 1599 {
		t.Errorf("transaction amount_cents = %d, want 1599", txs[0].AmountCents)
	}
	if txs[0].OccurredAt != created.NextOccurrence {
		t.Errorf("transaction occurred_at = %q, want the pre-advancement occurrence %q",
			txs[0].OccurredAt, created.NextOccurrence)
	}
}

func TestReminderScanEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// Daily rule started today: the seeded occurrence lands tomorrow,
	// inside the 3-day lead window.
	payload := validRulePayload()
	payload["frequency"] = "daily"
	payload["start_date"] = time.Now().UTC().Format("2006-01-02")
	payload["reminder_enabled"] = true
	payload["reminder_days_before"] = 3
	created := decodeBody[ruleResponse](t, doJSON(t, s, http.MethodPost, "/api/v1/rules", payload))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/reminders/scan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[scanResponse](t, rec)
	if report.Candidates != 1 {
		t.Errorf("candidates = %d, want 1", report.Candidates)
	}
	if len(report.Raised) != 1 || report.Raised[0] != created.ID {
		t.Errorf("raised = %v, want [%d]", report.Raised, created.ID)
	}

	t.Run("second scan raises nothing new", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/reminders/scan", nil)
		report := decodeBody[scanResponse](t, rec)
		if len(report.Raised) != 0 {
			t.Errorf("raised = %v, want none on repeat scan", report.Raised)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodGet, "/api/v1/rules", nil)

	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{
		"http_requests_total",
		"rate_limit_hits_total",
		"suspicious_requests_total",
		"rule_cache_entries",
		"uptime_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/rules", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
