package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func lockRows(id, userID int, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "funding_blocked", "version", "updated_at"}).
		AddRow(id, userID, balance, false, version, time.Now())
}

func TestLedgerService_TransferTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful transfer", func(t *testing.T) {
		amount := int64(1000)

		mock.ExpectBegin()

		// Lower account ID locks first
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 10, 5000, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 2000, 3))

		// Debit sender
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(4000), sqlmock.AnyArg(), 1, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Credit receiver
		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(3000), sqlmock.AnyArg(), 2, 3).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.TransferTx(tx, 1, 2, amount)
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locks in ascending ID order when sender ID is higher", func(t *testing.T) {
		mock.ExpectBegin()

		// Account 3 locks before account 7 even though 7 is the sender
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(3).
			WillReturnRows(lockRows(3, 30, 500, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(7).
			WillReturnRows(lockRows(7, 70, 9000, 2))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(8800), sqlmock.AnyArg(), 7, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(700), sqlmock.AnyArg(), 3, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.TransferTx(tx, 7, 3, 200)
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance writes nothing", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 10, 100, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 2000, 1))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.TransferTx(tx, 1, 2, 6000)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "funding_blocked", "version", "updated_at"}))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.TransferTx(tx, 1, 2, 100)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version fails the move", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 10, 5000, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 2000, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(4000), sqlmock.AnyArg(), 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.TransferTx(tx, 1, 2, 1000)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "optimistic lock failed")
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_CreditTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	mock.ExpectBegin()

	mock.ExpectQuery("FOR UPDATE").
		WithArgs(5).
		WillReturnRows(lockRows(5, 50, 1000, 2))

	mock.ExpectExec("UPDATE accounts").
		WithArgs(int64(1500), sqlmock.AnyArg(), 5, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	tx, err := db.Begin()
	assert.NoError(t, err)

	err = service.CreditTx(tx, 5, 500)
	assert.NoError(t, err)
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_DebitTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful debit", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(5).
			WillReturnRows(lockRows(5, 50, 1000, 2))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(400), sqlmock.AnyArg(), 5, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.DebitTx(tx, 5, 600)
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(5).
			WillReturnRows(lockRows(5, 50, 100, 2))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = service.DebitTx(tx, 5, 600)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("creates account for new user", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM accounts WHERE user_id").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(9, time.Now(), time.Now()))

		account, err := service.CreateAccount(42)
		assert.NoError(t, err)
		assert.Equal(t, 9, account.ID)
		assert.Equal(t, 42, account.UserID)
		assert.Equal(t, int64(0), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM accounts WHERE user_id").
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

		_, err := service.CreateAccount(42)
		assert.ErrorIs(t, err, ErrAccountExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
