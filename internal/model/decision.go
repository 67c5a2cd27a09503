package model

import "time"

// DecisionKind distinguishes extraction from categorization inference calls.
type DecisionKind string

// Decision kinds.
const (
	DecisionExtraction     DecisionKind = "extraction"
	DecisionCategorization DecisionKind = "categorization"
)

// InferenceDecision caches one fallback inference result and its cost.
type InferenceDecision struct {
	CreatedAt        time.Time    `json:"created_at"`
	UserID           string       `json:"user_id"`
	Kind             DecisionKind `json:"kind"`
	Fingerprint      string       `json:"fingerprint"`
	Model            string       `json:"model"`
	Prompt           string       `json:"prompt"`
	Response         string       `json:"response"`
	Category         string       `json:"category,omitempty"`
	ID               int64        `json:"id"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	Confidence       float64      `json:"confidence"`
	CostUnits        float64      `json:"cost_units"`
}

// ExtractionRequest asks the inference fallback to read an alert a template could not.
type ExtractionRequest struct {
	UserID   string
	Template string
	Text     string
	Fields   []string
}

// ExtractedFields is the fallback's reading of an alert. Values are raw text and are
// normalized by the parser like template output.
type ExtractedFields struct {
	Amount     string  `json:"amount"`
	Currency   string  `json:"currency"`
	Merchant   string  `json:"merchant"`
	CardLast4  string  `json:"card_last4"`
	Date       string  `json:"date"`
	Reference  string  `json:"reference"`
	Confidence float64 `json:"confidence"`
}

// CategorizationRequest asks the inference fallback to pick one of Categories.
type CategorizationRequest struct {
	UserID      string
	Merchant    string
	Description string
	Amount      string
	Currency    string
	Categories  []string
}

// CategoryGuess is the fallback's answer to a CategorizationRequest.
type CategoryGuess struct {
	Category   string  `json:"category"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}
