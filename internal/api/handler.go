// Package api exposes the pipeline operations over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
	"github.com/lrocampoa/ExpenseTracker/internal/pattern"
)

// Operations is the pipeline surface the handlers call.
type Operations interface {
	TriggerImport(ctx context.Context, accountID string) (model.RunResult, error)
	Reprocess(ctx context.Context, transactionID string) (*model.Transaction, error)
	ApplyCorrection(ctx context.Context, transactionID, category string) (*pattern.CorrectionResult, error)
	AcceptSuggestion(ctx context.Context, id int64) (*model.CategoryRule, error)
	RejectSuggestion(ctx context.Context, id int64, reason string) error
	ListSuggestions(ctx context.Context, userID string, status model.SuggestionStatus) ([]model.RuleSuggestion, error)
}

// Handler serves the pipeline operations.
type Handler struct {
	ops           Operations
	logger        *slog.Logger
	defaultUserID string
}

// NewHandler creates a new Handler. Requests without a user parameter act for defaultUserID.
func NewHandler(ops Operations, defaultUserID string, logger *slog.Logger) *Handler {
	return &Handler{
		ops:           ops,
		defaultUserID: defaultUserID,
		logger:        common.LoggerOrDefault(logger),
	}
}

// CorrectionRequest is the body of a manual category change.
type CorrectionRequest struct {
	Category string `json:"category" binding:"required"`
}

// RejectRequest is the body of a suggestion rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Import syncs and processes one account.
// POST /api/accounts/:id/import
func (h *Handler) Import(c *gin.Context) {
	result, err := h.ops.TriggerImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		// A failed sync still reports what was processed.
		h.fail(c, err, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Reprocess re-derives one transaction from its source message.
// POST /api/transactions/:id/reprocess
func (h *Handler) Reprocess(c *gin.Context) {
	txn, err := h.ops.Reprocess(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// Correct sets a transaction's category by hand.
// POST /api/transactions/:id/correction
func (h *Handler) Correct(c *gin.Context) {
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ops.ApplyCorrection(c.Request.Context(), c.Param("id"), req.Category)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correction": result.Correction,
		"suggestion": result.Suggestion,
		"conflict":   result.Conflict,
		"suppressed": result.Suppressed,
	})
}

// ListSuggestions returns suggestions for the user.
// GET /api/suggestions?status=pending&user=user-1
func (h *Handler) ListSuggestions(c *gin.Context) {
	status := model.SuggestionStatus(c.DefaultQuery("status", string(model.SuggestionPending)))
	switch status {
	case model.SuggestionPending, model.SuggestionAccepted, model.SuggestionRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	suggestions, err := h.ops.ListSuggestions(c.Request.Context(), c.DefaultQuery("user", h.defaultUserID), status)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	if suggestions == nil {
		suggestions = []model.RuleSuggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "total": len(suggestions)})
}

// AcceptSuggestion promotes a suggestion to a rule.
// POST /api/suggestions/:id/accept
func (h *Handler) AcceptSuggestion(c *gin.Context) {
	id, ok := suggestionID(c)
	if !ok {
		return
	}
	rule, err := h.ops.AcceptSuggestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// RejectSuggestion rejects a suggestion.
// POST /api/suggestions/:id/reject
func (h *Handler) RejectSuggestion(c *gin.Context) {
	id, ok := suggestionID(c)
	if !ok {
		return
	}
	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.ops.RejectSuggestion(c.Request.Context(), id, req.Reason); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.SuggestionRejected})
}

func suggestionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid suggestion id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error, extra gin.H) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var incomplete *common.ExtractionIncompleteError
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, common.ErrLeaseHeld),
		errors.Is(err, common.ErrAccountDisabled):
		return http.StatusConflict
	case errors.Is(err, common.ErrTemplateUnrecognized), errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case common.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
