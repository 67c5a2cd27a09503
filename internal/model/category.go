package model

import "time"

// Category is a spending category available to one user.
type Category struct {
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
}
