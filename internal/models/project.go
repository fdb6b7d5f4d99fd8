package models

import "time"

type Project struct {
	ID                int       `json:"id" db:"id"`
	CreatorID         int       `json:"creator_id" db:"creator_id"`
	Title             string    `json:"title" db:"title"`
	SimpleDescription string    `json:"simple_description" db:"simple_description"`
	BannerURL         string    `json:"banner_url" db:"banner_url"`
	Description       string    `json:"description" db:"description"`
	FundingGoal       int64     `json:"funding_goal" db:"funding_goal"`       // in cents
	CurrentFunding    int64     `json:"current_funding" db:"current_funding"` // in cents
	StartDate         time.Time `json:"start_date" db:"start_date"`
	EndDate           time.Time `json:"end_date" db:"end_date"`
	Status            string    `json:"status" db:"status"`
	ApprovalStatus    string    `json:"approval_status" db:"approval_status"`
	IsDeleted         bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Project lifecycle status
const (
	ProjectStatusOngoing = "ONGOING"
	ProjectStatusSuccess = "SUCCESS"
	ProjectStatusFailed  = "FAILED"
)

// Project approval status
const (
	ApprovalAwaiting = "AWAITING_APPROVAL"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)
