package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TransactionService appends and reads the immutable movement log. One
// row per balance movement; rows are never updated or deleted.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

// RecordTx appends one movement record within the caller's transaction.
// The acting admin, when present, is passed explicitly rather than
// resolved by name lookup.
func (s *TransactionService) RecordTx(tx *sql.Tx, fundingID, adminID *int, senderAccountID, receiverAccountID int, amount int64, txType string, metadata models.Metadata) (*models.Transaction, error) {
	record := &models.Transaction{
		TransactionID:     uuid.New().String(),
		FundingID:         fundingID,
		AdminID:           adminID,
		SenderAccountID:   senderAccountID,
		ReceiverAccountID: receiverAccountID,
		Amount:            amount,
		Type:              txType,
		Metadata:          metadata,
		CreatedAt:         time.Now(),
	}

	err := tx.QueryRow(`
		INSERT INTO transactions
		(transaction_id, funding_id, admin_id, sender_account_id, receiver_account_id, amount, type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		record.TransactionID, record.FundingID, record.AdminID,
		record.SenderAccountID, record.ReceiverAccountID,
		record.Amount, record.Type, record.Metadata, record.CreatedAt).Scan(&record.ID)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetByID fetches one transaction by primary key.
func (s *TransactionService) GetByID(id int) (*models.Transaction, error) {
	return s.scanTransaction(s.db.QueryRow(`
		SELECT id, transaction_id, funding_id, admin_id, sender_account_id, receiver_account_id, amount, type, created_at
		FROM transactions
		WHERE id = $1`, id))
}

// GetByFundingID fetches the original payment transaction for a funding.
func (s *TransactionService) GetByFundingID(fundingID int, txType string) (*models.Transaction, error) {
	return s.scanTransaction(s.db.QueryRow(`
		SELECT id, transaction_id, funding_id, admin_id, sender_account_id, receiver_account_id, amount, type, created_at
		FROM transactions
		WHERE funding_id = $1 AND type = $2
		ORDER BY created_at ASC
		LIMIT 1`, fundingID, txType))
}

// ListByAccountID returns movements where the account was either side.
func (s *TransactionService) ListByAccountID(accountID, limit int) ([]models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, transaction_id, funding_id, admin_id, sender_account_id, receiver_account_id, amount, type, created_at
		FROM transactions
		WHERE sender_account_id = $1 OR receiver_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		err := rows.Scan(&record.ID, &record.TransactionID, &record.FundingID, &record.AdminID,
			&record.SenderAccountID, &record.ReceiverAccountID, &record.Amount, &record.Type, &record.CreatedAt)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, record)
	}

	return transactions, rows.Err()
}

// GetTransaction retrieves a specific transaction
// @Summary Get transaction by ID
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path int true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "txId"))
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	record, err := s.GetByID(id)
	if err == ErrTransactionNotFound {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[TRANSACTION] Failed to fetch transaction %d: %v", id, err)
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Transaction retrieved", record)
}

// ListMyTransactions returns the authenticated user's account history
// @Summary List own transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of transactions to return (default: 20, max: 100)"
// @Success 200 {array} models.Transaction
// @Router /transactions [get]
func (s *TransactionService) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	var accountID int
	err := s.db.QueryRow(`SELECT id FROM accounts WHERE user_id = $1`, userID).Scan(&accountID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[TRANSACTION] Failed to resolve account for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	transactions, err := s.ListByAccountID(accountID, limit)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to list transactions for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Transactions retrieved", transactions)
}

func (s *TransactionService) scanTransaction(row *sql.Row) (*models.Transaction, error) {
	var record models.Transaction
	err := row.Scan(&record.ID, &record.TransactionID, &record.FundingID, &record.AdminID,
		&record.SenderAccountID, &record.ReceiverAccountID, &record.Amount, &record.Type, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
