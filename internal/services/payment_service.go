package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/fundbridge/backend/internal/models"
)

// PaymentService orchestrates a sponsor-to-project payment: ledger
// transfer, running-total bump, funding record, movement record. All of
// it lives in one database transaction; a failed transfer leaves no
// funding row and no total increment behind.
type PaymentService struct {
	db          *sql.DB
	ledger      *LedgerService
	accounts    *AccountService
	fundings    *FundingService
	transaction *TransactionService
	projects    *ProjectService
	validator   *ValidationHelper
}

// PaymentRequest represents a sponsor payment into a project
type PaymentRequest struct {
	ProjectID int   `json:"projectId" validate:"required,gt=0"`
	Amount    int64 `json:"amount" validate:"required,gt=0"`
}

func NewPaymentService(db *sql.DB) *PaymentService {
	return &PaymentService{
		db:          db,
		ledger:      NewLedgerService(db),
		accounts:    NewAccountService(db),
		fundings:    NewFundingService(db),
		transaction: NewTransactionService(db),
		projects:    NewProjectService(db),
		validator:   NewValidationHelper(),
	}
}

// Pay processes a payment from the authenticated sponsor
// @Summary Pay into a project
// @Description Transfer funds from the sponsor's account to the project beneficiary's account
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PaymentRequest true "Payment details"
// @Success 200 {object} AccountSnapshot
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /accounts/payment [post]
func (s *PaymentService) Pay(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value("username").(string)
	if username == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PaymentRequest
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

	snapshot, err := s.ProcessPayment(req.ProjectID, username, req.Amount)
	switch err {
	case nil:
	case ErrProjectNotFound:
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	case ErrProjectNotFundable:
		SendErrorResponse(w, "Project is not open for funding", http.StatusUnprocessableEntity, nil)
		return
	case ErrAccountNotFound:
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	case ErrInsufficientBalance:
		SendErrorResponse(w, "Insufficient balance", http.StatusUnprocessableEntity, nil)
		return
	default:
		log.Printf("[PAYMENT] Payment failed for %s on project %d: %v", username, req.ProjectID, err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PAYMENT] %s paid %d into project %d (tx %s)", username, req.Amount, req.ProjectID, snapshot.TransactionID)
	SendSuccessResponse(w, http.StatusOK, "Payment successful", snapshot)
}

// ProcessPayment runs the five payment steps atomically and returns the
// payer-side snapshot.
func (s *PaymentService) ProcessPayment(projectID int, payerUsername string, amount int64) (*AccountSnapshot, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	project, err := s.projects.GetByID(projectID)
	if err != nil {
		return nil, err
	}

	// Only approved campaigns still running accept money.
	if project.ApprovalStatus != models.ApprovalApproved || project.Status != models.ProjectStatusOngoing {
		return nil, ErrProjectNotFundable
	}

	payerAccount, err := s.accounts.GetAccountByUsername(payerUsername)
	if err != nil {
		return nil, err
	}

	projectAccount, err := s.accounts.GetBeneficiaryAccountByProjectID(project.ID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	beforeBalance := payerAccount.Balance

	// 1) Move the funds; fails first on a short payer balance.
	if err := s.ledger.TransferTx(tx, payerAccount.ID, projectAccount.ID, amount); err != nil {
		return nil, err
	}

	// 2) Bump the project's running total.
	if _, err := tx.Exec(`
		UPDATE projects SET current_funding = current_funding + $1, updated_at = NOW()
		WHERE id = $2`, amount, project.ID); err != nil {
		return nil, err
	}

	// 3) Funding record for the sponsor.
	funding, err := s.fundings.CreateTx(tx, project.ID, payerUsername, amount)
	if err != nil {
		return nil, err
	}

	// 4) Immutable movement record.
	record, err := s.transaction.RecordTx(tx, &funding.ID, nil, payerAccount.ID, projectAccount.ID, amount, models.TxTypeRemittance, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// 5) Payer-side snapshot.
	return &AccountSnapshot{
		TransactionID: record.TransactionID,
		AccountID:     payerAccount.ID,
		BeforeBalance: beforeBalance,
		Amount:        amount,
		AfterBalance:  beforeBalance - amount,
		OccurredAt:    record.CreatedAt,
	}, nil
}
