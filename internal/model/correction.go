package model

import "time"

// Correction is an append-only snapshot of a manual category change.
type Correction struct {
	CreatedAt     time.Time `json:"created_at"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	OldCategory   string    `json:"old_category"`
	NewCategory   string    `json:"new_category"`
	Merchant      string    `json:"merchant"`
	CardLast4     string    `json:"card_last4,omitempty"`
	ID            int64     `json:"id"`
}
