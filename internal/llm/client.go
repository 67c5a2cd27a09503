package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Client defines the interface for inference providers.
type Client interface {
	Extract(ctx context.Context, req model.ExtractionRequest) (ExtractionResponse, error)
	Categorize(ctx context.Context, req model.CategorizationRequest) (CategorizationResponse, error)
}

// Usage describes one completed provider call.
type Usage struct {
	Model            string
	Prompt           string
	Raw              string
	PromptTokens     int
	CompletionTokens int
}

// ExtractionResponse contains the provider's reading of an alert.
type ExtractionResponse struct {
	Usage
	Fields model.ExtractedFields
}

// CategorizationResponse contains the provider's category choice.
type CategorizationResponse struct {
	Usage
	Guess model.CategoryGuess
}

// completion is the provider-neutral result of one chat call.
type completion struct {
	model            string
	content          string
	promptTokens     int
	completionTokens int
}

// completer sends one system and user prompt pair to a provider.
type completer interface {
	complete(ctx context.Context, system, prompt string) (completion, error)
}

// promptClient implements Client over any completer.
type promptClient struct {
	completer completer
}

const jsonOnly = "You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

func (c *promptClient) Extract(ctx context.Context, req model.ExtractionRequest) (ExtractionResponse, error) {
	prompt := buildExtractionPrompt(req)
	out, err := c.completer.complete(ctx, "You read bank transaction alerts. "+jsonOnly, prompt)
	if err != nil {
		return ExtractionResponse{}, err
	}

	var fields model.ExtractedFields
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(out.content)), &fields); err != nil {
		return ExtractionResponse{}, common.Permanent(fmt.Errorf("failed to parse JSON response: %w", err))
	}

	return ExtractionResponse{Usage: out.usage(prompt), Fields: fields}, nil
}

func (c *promptClient) Categorize(ctx context.Context, req model.CategorizationRequest) (CategorizationResponse, error) {
	prompt := buildCategorizationPrompt(req)
	out, err := c.completer.complete(ctx, "You are a financial transaction classifier. "+jsonOnly, prompt)
	if err != nil {
		return CategorizationResponse{}, err
	}

	var guess model.CategoryGuess
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(out.content)), &guess); err != nil {
		return CategorizationResponse{}, common.Permanent(fmt.Errorf("failed to parse JSON response: %w", err))
	}
	if guess.Category == "" {
		return CategorizationResponse{}, common.Permanent(fmt.Errorf("no category found in response"))
	}

	return CategorizationResponse{Usage: out.usage(prompt), Guess: guess}, nil
}

func (c completion) usage(prompt string) Usage {
	return Usage{
		Model:            c.model,
		Prompt:           prompt,
		Raw:              c.content,
		PromptTokens:     c.promptTokens,
		CompletionTokens: c.completionTokens,
	}
}

func buildExtractionPrompt(req model.ExtractionRequest) string {
	var b strings.Builder
	b.WriteString("Extract the transaction from this bank notification.\n")
	b.WriteString("Reply as JSON with keys amount, currency (ISO 4217), merchant, card_last4, date (YYYY-MM-DD), reference and confidence (0-1).\n")
	b.WriteString("Leave a key empty when the alert does not state it. Do not guess.\n")
	fmt.Fprintf(&b, "Fields needed: %s\n", strings.Join(req.Fields, ", "))
	fmt.Fprintf(&b, "Bank template: %s\n\n", req.Template)
	b.WriteString("Notification:\n")
	b.WriteString(req.Text)
	return b.String()
}

func buildCategorizationPrompt(req model.CategorizationRequest) string {
	var b strings.Builder
	b.WriteString("Classify this personal finance transaction.\n")
	b.WriteString("Reply as JSON with keys category, confidence (0-1) and reasoning.\n")
	b.WriteString("Use exactly one of the categories listed. If nothing fits, pick the closest match and lower the confidence.\n\n")
	b.WriteString("Categories:\n")
	for _, name := range req.Categories {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nTransaction:\n")
	fmt.Fprintf(&b, "Merchant: %s\n", orNA(req.Merchant))
	fmt.Fprintf(&b, "Description: %s\n", orNA(req.Description))
	fmt.Fprintf(&b, "Amount: %s %s\n", req.Amount, req.Currency)
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// cleanMarkdownWrapper strips the ```json fences some models wrap JSON in.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
