package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fundbridge/backend/internal/models"
)

// LedgerService owns the balance-movement primitive for virtual accounts.
// All mutations happen inside a caller-supplied sql.Tx so that an
// orchestrator's funding/transaction writes commit or roll back together
// with the balance updates.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// CreateAccount opens a zero-balance virtual account for a user. Fails
// with ErrAccountExists when the user already has one.
func (s *LedgerService) CreateAccount(userID int) (*models.Account, error) {
	var existing int
	err := s.db.QueryRow(`SELECT id FROM accounts WHERE user_id = $1`, userID).Scan(&existing)
	if err == nil {
		return nil, ErrAccountExists
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	account := &models.Account{UserID: userID, Version: 1}
	err = s.db.QueryRow(`
		INSERT INTO accounts (user_id, balance, funding_blocked, version, created_at, updated_at)
		VALUES ($1, 0, false, 1, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		userID).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return account, nil
}

// TransferTx moves amount from one account to the other within tx.
// Both sides update or neither does; a short source balance fails with
// ErrInsufficientBalance before anything is written.
func (s *LedgerService) TransferTx(tx *sql.Tx, fromAccountID, toAccountID int, amount int64) error {
	// Lock accounts in consistent order to prevent deadlocks
	firstLock, secondLock := fromAccountID, toAccountID
	if fromAccountID > toAccountID {
		firstLock, secondLock = toAccountID, fromAccountID
	}

	fromAccount, err := s.lockAccount(tx, firstLock)
	if err != nil {
		return err
	}

	toAccount, err := s.lockAccount(tx, secondLock)
	if err != nil {
		return err
	}

	// Determine which locked account is sender/receiver
	if firstLock != fromAccountID {
		fromAccount, toAccount = toAccount, fromAccount
	}

	if fromAccount.Balance < amount {
		return ErrInsufficientBalance
	}

	if err := s.updateAccountBalance(tx, fromAccount.ID, fromAccount.Balance-amount, fromAccount.Version); err != nil {
		return err
	}

	if err := s.updateAccountBalance(tx, toAccount.ID, toAccount.Balance+amount, toAccount.Version); err != nil {
		return err
	}

	return nil
}

// CreditTx adds amount to a single account within tx (charge path).
func (s *LedgerService) CreditTx(tx *sql.Tx, accountID int, amount int64) error {
	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return err
	}
	return s.updateAccountBalance(tx, account.ID, account.Balance+amount, account.Version)
}

// DebitTx removes amount from a single account within tx (payout path).
// Fails with ErrInsufficientBalance when the balance cannot cover it.
func (s *LedgerService) DebitTx(tx *sql.Tx, accountID int, amount int64) error {
	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return err
	}
	if account.Balance < amount {
		return ErrInsufficientBalance
	}
	return s.updateAccountBalance(tx, account.ID, account.Balance-amount, account.Version)
}

func (s *LedgerService) lockAccount(tx *sql.Tx, accountID int) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, user_id, balance, funding_blocked, version, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.FundingBlocked, &account.Version, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (s *LedgerService) updateAccountBalance(tx *sql.Tx, accountID int, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %d", accountID)
	}

	return nil
}
