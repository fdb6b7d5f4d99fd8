package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// AccountService exposes virtual-account queries and the charge flow.
type AccountService struct {
	db          *sql.DB
	ledger      *LedgerService
	transaction *TransactionService
	validator   *ValidationHelper
}

// ChargeRequest represents an account top-up
type ChargeRequest struct {
	Amount int64 `json:"amount" validate:"required"`
}

// AccountSnapshot is the response shape for charge/payment/refund flows:
// the acting account with its balance captured before and after the move.
type AccountSnapshot struct {
	TransactionID string    `json:"transactionId"`
	AccountID     int       `json:"accountId"`
	BeforeBalance int64     `json:"beforeBalance"`
	Amount        int64     `json:"amount"`
	AfterBalance  int64     `json:"afterBalance"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:          db,
		ledger:      NewLedgerService(db),
		transaction: NewTransactionService(db),
		validator:   NewValidationHelper(),
	}
}

// CreateAccount opens a virtual account for the authenticated user
// @Summary Create virtual account
// @Description Open a zero-balance virtual account for the authenticated user
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Account
// @Failure 409 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.ledger.CreateAccount(userID)
	if err == ErrAccountExists {
		log.Printf("[ACCOUNT] Duplicate account creation attempt by user %d", userID)
		SendErrorResponse(w, "Account already exists", http.StatusConflict, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Account creation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account %d created for user %d", account.ID, userID)
	SendSuccessResponse(w, http.StatusCreated, "Account created", account)
}

// GetMyAccount returns the authenticated user's account
// @Summary Get own virtual account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/me [get]
func (s *AccountService) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.GetAccountByUserID(userID)
	if err == ErrAccountNotFound {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Failed to fetch account for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Account retrieved", account)
}

// GetAccount returns an account by ID (owner or admin only)
// @Summary Get virtual account by ID
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountId} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.Atoi(chi.URLParam(r, "accountId"))
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	account, err := s.GetAccountByID(accountID)
	if err == ErrAccountNotFound {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Failed to fetch account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	userID, _ := userIDFromContext(r)
	role, _ := r.Context().Value("role").(string)
	if account.UserID != userID && role != models.RoleAdmin {
		SendErrorResponse(w, "Access denied", http.StatusForbidden, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Account retrieved", account)
}

// Charge tops up the authenticated user's account
// @Summary Charge virtual account
// @Description Credit the authenticated user's account and record a self-referential transaction
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChargeRequest true "Charge amount"
// @Success 200 {object} AccountSnapshot
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/charge [post]
func (s *AccountService) Charge(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ChargeRequest
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

	snapshot, err := s.ChargeAccount(userID, req.Amount)
	switch err {
	case nil:
	case ErrInvalidAmount:
		SendErrorResponse(w, "Charge amount must be positive", http.StatusBadRequest, nil)
		return
	case ErrAccountNotFound:
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	default:
		log.Printf("[ACCOUNT] Charge failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to charge account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account %d charged %d by user %d", snapshot.AccountID, req.Amount, userID)
	SendSuccessResponse(w, http.StatusOK, "Account charged", snapshot)
}

// ChargeAccount credits the user's account and records a self-referential
// REMITTANCE transaction for audit. Fails with ErrInvalidAmount on
// non-positive amounts before anything is written.
func (s *AccountService) ChargeAccount(userID int, amount int64) (*AccountSnapshot, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	beforeBalance := account.Balance
	if err := s.ledger.CreditTx(tx, account.ID, amount); err != nil {
		return nil, err
	}

	// Self-referential record: sender == receiver marks a top-up.
	record, err := s.transaction.RecordTx(tx, nil, nil, account.ID, account.ID, amount, models.TxTypeRemittance, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AccountSnapshot{
		TransactionID: record.TransactionID,
		AccountID:     account.ID,
		BeforeBalance: beforeBalance,
		Amount:        amount,
		AfterBalance:  beforeBalance + amount,
		OccurredAt:    record.CreatedAt,
	}, nil
}

// GetAccountByID looks an account up by primary key.
func (s *AccountService) GetAccountByID(accountID int) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT id, user_id, balance, funding_blocked, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`, accountID))
}

// GetAccountByUserID looks an account up by its owner.
func (s *AccountService) GetAccountByUserID(userID int) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT id, user_id, balance, funding_blocked, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1`, userID))
}

// GetAccountByUsername resolves a user by name and returns their account.
func (s *AccountService) GetAccountByUsername(username string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT a.id, a.user_id, a.balance, a.funding_blocked, a.version, a.created_at, a.updated_at
		FROM accounts a
		INNER JOIN users u ON a.user_id = u.id
		WHERE u.name = $1`, username))
}

// GetBeneficiaryAccountByProjectID returns the project creator's account,
// which is where the project's collected funds live.
func (s *AccountService) GetBeneficiaryAccountByProjectID(projectID int) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT a.id, a.user_id, a.balance, a.funding_blocked, a.version, a.created_at, a.updated_at
		FROM accounts a
		INNER JOIN projects p ON a.user_id = p.creator_id
		WHERE p.id = $1`, projectID))
}

// GetReceiverAccountByTransactionID returns the account that received
// the funds of the given transaction.
func (s *AccountService) GetReceiverAccountByTransactionID(transactionID int) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRow(`
		SELECT a.id, a.user_id, a.balance, a.funding_blocked, a.version, a.created_at, a.updated_at
		FROM accounts a
		INNER JOIN transactions t ON a.id = t.receiver_account_id
		WHERE t.id = $1`, transactionID))
}

func (s *AccountService) scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.UserID, &account.Balance,
		&account.FundingBlocked, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// userIDFromContext extracts the authenticated user's ID set by the auth
// middleware. The middleware stores it as a string claim value.
func userIDFromContext(r *http.Request) (int, bool) {
	raw, ok := r.Context().Value("userID").(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
