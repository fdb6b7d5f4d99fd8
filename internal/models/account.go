package models

import "time"

// Account is a virtual account holding a non-negative balance. Each user
// owns at most one; a project's funds live in its creator's account.
type Account struct {
	ID             int       `json:"id" db:"id"`
	UserID         int       `json:"user_id" db:"user_id"`
	Balance        int64     `json:"balance" db:"balance"` // in cents
	FundingBlocked bool      `json:"funding_blocked" db:"funding_blocked"`
	Version        int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
