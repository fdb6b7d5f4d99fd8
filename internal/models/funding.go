package models

import "time"

// Funding records one sponsor's contribution to one project. Cancelled
// fundings are soft-deleted: IsDeleted flips to true, the row stays.
type Funding struct {
	ID        int       `json:"id" db:"id"`
	ProjectID int       `json:"project_id" db:"project_id"`
	SponsorID int       `json:"sponsor_id" db:"sponsor_id"`
	RewardID  *int      `json:"reward_id,omitempty" db:"reward_id"`
	Amount    int64     `json:"amount" db:"amount"` // in cents
	FundedAt  time.Time `json:"funded_at" db:"funded_at"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`
}
