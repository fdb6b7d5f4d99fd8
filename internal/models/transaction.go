package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Transaction is an immutable audit record of one balance movement
// between two virtual accounts. Rows are append-only.
type Transaction struct {
	ID                int       `json:"id" db:"id"`
	TransactionID     string    `json:"transaction_id" db:"transaction_id"`
	FundingID         *int      `json:"funding_id,omitempty" db:"funding_id"`
	AdminID           *int      `json:"admin_id,omitempty" db:"admin_id"`
	SenderAccountID   int       `json:"sender_account_id" db:"sender_account_id"`
	ReceiverAccountID int       `json:"receiver_account_id" db:"receiver_account_id"`
	Amount            int64     `json:"amount" db:"amount"` // in cents
	Type              string    `json:"type" db:"type"`
	Metadata          Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Transaction types
const (
	TxTypeRemittance = "REMITTANCE"
	TxTypeRefund     = "REFUND"
	TxTypePayout     = "PAYOUT"
)

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
