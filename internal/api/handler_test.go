package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
)

type fakeOps struct {
	err         error
	lastUser    string
	lastReason  string
	lastCat     string
	suggestions []model.RuleSuggestion
}

func (f *fakeOps) TriggerImport(_ context.Context, accountID string) (model.RunResult, error) {
	return model.RunResult{AccountID: accountID, Parsed: 3}, f.err
}

func (f *fakeOps) Reprocess(_ context.Context, id string) (*model.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Transaction{ID: id, Category: "Groceries", CategorySource: model.SourceRule}, nil
}

func (f *fakeOps) ApplyCorrection(_ context.Context, id, category string) (*pattern.CorrectionResult, error) {
	f.lastCat = category
	if f.err != nil {
		return nil, f.err
	}
	return &pattern.CorrectionResult{
		Correction: &model.Correction{TransactionID: id, NewCategory: category},
		Suggestion: &model.RuleSuggestion{ID: 7, Merchant: "netflix com", Category: category, Evidence: 2},
	}, nil
}

func (f *fakeOps) AcceptSuggestion(_ context.Context, id int64) (*model.CategoryRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.CategoryRule{ID: id * 10, Priority: 150, Origin: model.OriginSuggested}, nil
}

func (f *fakeOps) RejectSuggestion(_ context.Context, _ int64, reason string) error {
	f.lastReason = reason
	return f.err
}

func (f *fakeOps) ListSuggestions(_ context.Context, userID string, _ model.SuggestionStatus) ([]model.RuleSuggestion, error) {
	f.lastUser = userID
	return f.suggestions, f.err
}

func newTestRouter(ops *fakeOps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(ops, "user-1", nil))
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(&fakeOps{}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestImport(t *testing.T) {
	w := do(t, newTestRouter(&fakeOps{}), http.MethodPost, "/api/accounts/acct-1/import", "")
	require.Equal(t, http.StatusOK, w.Code)

	result := decode(t, w)["result"].(map[string]any)
	assert.Equal(t, "acct-1", result["account_id"])
	assert.InDelta(t, 3, result["parsed"], 0)
}

func TestCorrect(t *testing.T) {
	ops := &fakeOps{}
	r := newTestRouter(ops)

	w := do(t, r, http.MethodPost, "/api/transactions/tx-1/correction", `{"category":"Entertainment"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Entertainment", ops.lastCat)

	suggestion := decode(t, w)["suggestion"].(map[string]any)
	assert.InDelta(t, 2, suggestion["evidence"], 0)

	w = do(t, r, http.MethodPost, "/api/transactions/tx-1/correction", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestions(t *testing.T) {
	ops := &fakeOps{suggestions: []model.RuleSuggestion{{ID: 1, Merchant: "uber", Category: "Transport", Status: model.SuggestionPending}}}
	r := newTestRouter(ops)

	w := do(t, r, http.MethodGet, "/api/suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1, decode(t, w)["total"], 0)
	assert.Equal(t, "user-1", ops.lastUser)

	w = do(t, r, http.MethodGet, "/api/suggestions?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/suggestions/4/accept", "")
	require.Equal(t, http.StatusOK, w.Code)
	rule := decode(t, w)["rule"].(map[string]any)
	assert.InDelta(t, 40, rule["id"], 0)

	w = do(t, r, http.MethodPost, "/api/suggestions/4/reject", `{"reason":"too broad"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "too broad", ops.lastReason)

	w = do(t, r, http.MethodPost, "/api/suggestions/abc/accept", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "not found", err: fmt.Errorf("failed to get transaction: %w", common.ErrNotFound), want: http.StatusNotFound},
		{name: "already decided", err: model.ErrInvalidTransition, want: http.StatusConflict},
		{name: "lease held", err: common.ErrLeaseHeld, want: http.StatusConflict},
		{name: "incomplete", err: &common.ExtractionIncompleteError{Template: "bac", Missing: []string{"amount"}}, want: http.StatusUnprocessableEntity},
		{name: "transient", err: common.NewTransientProviderError("gmail", "history.list", errors.New("503")), want: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(&fakeOps{err: tt.err}), http.MethodPost, "/api/transactions/tx-1/reprocess", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.err.Error())
		})
	}
}
