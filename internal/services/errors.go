package services

import "errors"

// Domain errors surfaced by the money-movement services. Every failure
// unwinds the enclosing sql.Tx; nothing here is retried internally.
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountExists           = errors.New("account already exists")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrFundingNotFound         = errors.New("funding not found")
	ErrFundingAlreadyCancelled = errors.New("funding already cancelled")
	ErrProjectNotFound         = errors.New("project not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrProjectNotFundable      = errors.New("project is not open for funding")
	ErrShareCodesUnavailable   = errors.New("share codes are temporarily unavailable")
)
