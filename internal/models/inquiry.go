package models

import "time"

// Inquiry is a support question from a beneficiary. An admin resolves
// it by attaching a response.
type Inquiry struct {
	ID            int       `json:"id" db:"id"`
	UserID        int       `json:"user_id" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	Status        string    `json:"status" db:"status"`
	AdminResponse *string   `json:"admin_response,omitempty" db:"admin_response"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

const (
	InquiryStatusPending  = "PENDING"
	InquiryStatusResolved = "RESOLVED"
)
