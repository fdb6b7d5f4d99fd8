package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/fundbridge/backend/internal/models"
)

// RefundService reverses a payment: funds move from the project
// beneficiary's account back to the payer, the funding record is
// cancelled, and the project's running total is decremented. The whole
// flow is one database transaction.
//
// A transaction can be refunded once: the funding cancellation fails
// with ErrFundingAlreadyCancelled on a second attempt, before any
// balance moves are committed.
type RefundService struct {
	db          *sql.DB
	ledger      *LedgerService
	accounts    *AccountService
	fundings    *FundingService
	transaction *TransactionService
	validator   *ValidationHelper
}

// RefundRequest represents a sponsor-initiated refund
type RefundRequest struct {
	TransactionID int `json:"transactionId" validate:"required,gt=0"`
}

// RefundResult is the payer-side outcome of a refund.
type RefundResult struct {
	AccountSnapshot
	OriginalTransactionID int `json:"originalTransactionId"`
}

func NewRefundService(db *sql.DB) *RefundService {
	return &RefundService{
		db:          db,
		ledger:      NewLedgerService(db),
		accounts:    NewAccountService(db),
		fundings:    NewFundingService(db),
		transaction: NewTransactionService(db),
		validator:   NewValidationHelper(),
	}
}

// Refund processes a refund for the authenticated sponsor
// @Summary Refund a payment
// @Description Return the funds of an earlier payment from the project account to the payer
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RefundRequest true "Original transaction"
// @Success 200 {object} RefundResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /accounts/refund [post]
func (s *RefundService) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RefundRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payerAccount, err := s.accounts.GetAccountByUserID(userID)
	if err == ErrAccountNotFound {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[REFUND] Failed to resolve account for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process refund", http.StatusInternalServerError, nil)
		return
	}

	result, err := s.ProcessRefund(payerAccount.ID, req.TransactionID, nil)
	switch err {
	case nil:
	case ErrTransactionNotFound:
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	case ErrFundingNotFound:
		SendErrorResponse(w, "Funding not found", http.StatusNotFound, nil)
		return
	case ErrFundingAlreadyCancelled:
		SendErrorResponse(w, "Payment already refunded", http.StatusConflict, nil)
		return
	case ErrInsufficientBalance:
		SendErrorResponse(w, "Project account cannot cover the refund", http.StatusUnprocessableEntity, nil)
		return
	default:
		log.Printf("[REFUND] Refund failed for user %d, transaction %d: %v", userID, req.TransactionID, err)
		SendErrorResponse(w, "Failed to process refund", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REFUND] Transaction %d refunded to account %d (tx %s)", req.TransactionID, result.AccountID, result.TransactionID)
	SendSuccessResponse(w, http.StatusOK, "Refund successful", result)
}

// ProcessRefund reverses the original transaction into the payer's
// account. adminID tags the refund record when an admin cascade drives
// it; sponsor-initiated refunds pass nil.
func (s *RefundService) ProcessRefund(payerAccountID, originalTransactionID int, adminID *int) (*RefundResult, error) {
	// 1) Original movement.
	original, err := s.transaction.GetByID(originalTransactionID)
	if err != nil {
		return nil, err
	}
	if original.FundingID == nil {
		return nil, ErrFundingNotFound
	}

	// 2) Both sides of the reverse move.
	payerAccount, err := s.accounts.GetAccountByID(payerAccountID)
	if err != nil {
		return nil, err
	}

	projectAccount, err := s.accounts.GetReceiverAccountByTransactionID(originalTransactionID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	beforeBalance := payerAccount.Balance
	refundAmount := original.Amount

	// 3) Cancel the funding first so a double refund dies before any
	// balance is touched.
	funding, err := s.fundings.CancelTx(tx, *original.FundingID)
	if err != nil {
		return nil, err
	}

	// 4) Reverse transfer; the project account may legitimately be short
	// if the beneficiary already withdrew funds.
	if err := s.ledger.TransferTx(tx, projectAccount.ID, payerAccount.ID, refundAmount); err != nil {
		return nil, err
	}

	// 5) REFUND movement record.
	record, err := s.transaction.RecordTx(tx, &funding.ID, adminID, projectAccount.ID, payerAccount.ID, refundAmount, models.TxTypeRefund, nil)
	if err != nil {
		return nil, err
	}

	// 6) Decrement the project's running total.
	if _, err := tx.Exec(`
		UPDATE projects SET current_funding = current_funding - $1, updated_at = NOW()
		WHERE id = $2`, refundAmount, funding.ProjectID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 7) Payer-side snapshot.
	return &RefundResult{
		AccountSnapshot: AccountSnapshot{
			TransactionID: record.TransactionID,
			AccountID:     payerAccount.ID,
			BeforeBalance: beforeBalance,
			Amount:        refundAmount,
			AfterBalance:  beforeBalance + refundAmount,
			OccurredAt:    record.CreatedAt,
		},
		OriginalTransactionID: originalTransactionID,
	}, nil
}

// RefundFunding reverses the payment behind one funding record. The
// admin FAILED cascade calls this per active funding, each call in its
// own transaction, so a rerun resumes at the first unrefunded record.
func (s *RefundService) RefundFunding(funding *models.Funding, adminID *int) (*RefundResult, error) {
	original, err := s.transaction.GetByFundingID(funding.ID, models.TxTypeRemittance)
	if err != nil {
		return nil, err
	}

	sponsorAccount, err := s.accounts.GetAccountByUserID(funding.SponsorID)
	if err != nil {
		return nil, err
	}

	return s.ProcessRefund(sponsorAccount.ID, original.ID, adminID)
}
