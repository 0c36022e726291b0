package http

import (
	"net/http"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
)

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRuleRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.rules.Create(r.Context(), time.Now(), rule)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "rule creation failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	s.invalidateRuleListing()
	writeJSON(w, http.StatusCreated, toRuleResponse(*created))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if rules, found := s.listCache.Get(rulesCacheKey); found {
		writeJSON(w, http.StatusOK, toRuleResponses(rules))
		return
	}

	rules, err := s.rules.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "rule listing failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	s.listCache.Set(rulesCacheKey, rules)
	writeJSON(w, http.StatusOK, toRuleResponses(rules))
}

func toRuleResponses(rules []core.Rule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleResponse(r))
	}
	return out
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeRuleRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rule.ID = id

	updated, err := s.rules.Update(r.Context(), time.Now(), rule)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "rule update failed",
			log.FieldRuleID, id, log.FieldError, err)
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}

	s.invalidateRuleListing()
	writeJSON(w, http.StatusOK, toRuleResponse(*updated))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.rules.Delete(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "rule deletion failed",
			log.FieldRuleID, id, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	s.invalidateRuleListing()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleActive(w, r, true)
}

func (s *Server) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleActive(w, r, false)
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.rules.SetActive(r.Context(), time.Now(), id, active); err != nil {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}

	s.invalidateRuleListing()
	rule, err := s.rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (s *Server) handleRuleTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.transactions == nil {
		writeError(w, http.StatusNotImplemented, "transaction history not available")
		return
	}

	txs, err := s.transactions.ListTransactionsByRule(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction listing failed",
			log.FieldRuleID, id, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

// batchResponse is the wire shape of one batch execution.
type batchResponse struct {
	Checked  int             `json:"checked"`
	Due      int             `json:"due"`
	Executed []int64         `json:"executed"`
	Failures []failureDetail `json:"failures"`
}

type failureDetail struct {
	RuleID int64  `json:"rule_id"`
	Error  string `json:"error"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	report, err := s.processor.ExecuteDueBatch(r.Context(), time.Now())
	if err != nil {
		// Batch-level failures are retryable by the caller.
		s.logger.ErrorContext(r.Context(), "batch execution failed", log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "batch execution failed, retry later")
		return
	}

	resp := batchResponse{
		Checked:  report.Checked,
		Due:      report.Due,
		Executed: report.Executed,
		Failures: make([]failureDetail, 0, len(report.Failures)),
	}
	if resp.Executed == nil {
		resp.Executed = []int64{}
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, failureDetail{RuleID: f.RuleID, Error: f.Err.Error()})
	}

	s.invalidateRuleListing()
	writeJSON(w, http.StatusOK, resp)
}

type scanResponse struct {
	Candidates int             `json:"candidates"`
	Raised     []int64         `json:"raised"`
	Failures   []failureDetail `json:"failures"`
}

func (s *Server) handleReminderScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.scanner.Scan(r.Context(), time.Now())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "reminder scan failed", log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "reminder scan failed, retry later")
		return
	}

	resp := scanResponse{
		Candidates: report.Candidates,
		Raised:     report.Raised,
		Failures:   make([]failureDetail, 0, len(report.Failures)),
	}
	if resp.Raised == nil {
		resp.Raised = []int64{}
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, failureDetail{RuleID: f.RuleID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}
