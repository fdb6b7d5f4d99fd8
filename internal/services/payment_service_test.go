package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fundbridge/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func accountRows(id, userID int, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "funding_blocked", "version", "created_at", "updated_at"}).
		AddRow(id, userID, balance, false, version, time.Now(), time.Now())
}

func projectRows(id, creatorID int, goal, current int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "creator_id", "title", "simple_description", "banner_url", "description",
		"funding_goal", "current_funding", "start_date", "end_date", "status", "approval_status",
		"is_deleted", "created_at", "updated_at"}).
		AddRow(id, creatorID, "Solar Lantern Kits", "Off-grid lighting", "", "Long description",
			goal, current, now, now.Add(30*24*time.Hour), models.ProjectStatusOngoing,
			models.ApprovalApproved, false, now, now)
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPaymentService(db)

	t.Run("successful payment", func(t *testing.T) {
		amount := int64(5000)

		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 0))

		mock.ExpectQuery("INNER JOIN users").
			WithArgs("alice").
			WillReturnRows(accountRows(1, 30, 8000, 1))

		mock.ExpectQuery("INNER JOIN projects").
			WithArgs(10).
			WillReturnRows(accountRows(2, 20, 0, 1))

		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 30, 8000, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 0, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(3000), sqlmock.AnyArg(), 1, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(5000), sqlmock.AnyArg(), 2, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE projects SET current_funding").
			WithArgs(amount, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT id FROM users WHERE name").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))

		mock.ExpectQuery("SELECT id FROM rewards").
			WithArgs(10, amount).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

		mock.ExpectQuery("INSERT INTO fundings").
			WithArgs(10, 30, 4, amount, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))

		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), 77, nil, 1, 2, amount, models.TxTypeRemittance, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(501))

		mock.ExpectCommit()

		snapshot, err := service.ProcessPayment(10, "alice", amount)
		assert.NoError(t, err)
		assert.Equal(t, 1, snapshot.AccountID)
		assert.Equal(t, int64(8000), snapshot.BeforeBalance)
		assert.Equal(t, int64(3000), snapshot.AfterBalance)
		assert.NotEmpty(t, snapshot.TransactionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves no funding behind", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 0))

		mock.ExpectQuery("INNER JOIN users").
			WithArgs("alice").
			WillReturnRows(accountRows(1, 30, 100, 1))

		mock.ExpectQuery("INNER JOIN projects").
			WithArgs(10).
			WillReturnRows(accountRows(2, 20, 0, 1))

		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 30, 100, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 0, 1))

		mock.ExpectRollback()

		_, err := service.ProcessPayment(10, "alice", 5000)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing project", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.ProcessPayment(99, "alice", 100)
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount rejected before any query", func(t *testing.T) {
		_, err := service.ProcessPayment(10, "alice", 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = service.ProcessPayment(10, "alice", -50)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestPaymentService_ProjectNotFundable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPaymentService(db)

	closedProject := func(status, approval string) *sqlmock.Rows {
		now := time.Now()
		return sqlmock.NewRows([]string{
			"id", "creator_id", "title", "simple_description", "banner_url", "description",
			"funding_goal", "current_funding", "start_date", "end_date", "status", "approval_status",
			"is_deleted", "created_at", "updated_at"}).
			AddRow(10, 20, "Solar Lantern Kits", "Off-grid lighting", "", "Long description",
				int64(100000), int64(0), now, now.Add(30*24*time.Hour), status, approval, false, now, now)
	}

	t.Run("awaiting approval", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(closedProject(models.ProjectStatusOngoing, models.ApprovalAwaiting))

		_, err := service.ProcessPayment(10, "alice", 5000)
		assert.ErrorIs(t, err, ErrProjectNotFundable)
	})

	t.Run("campaign already failed", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(closedProject(models.ProjectStatusFailed, models.ApprovalApproved))

		_, err := service.ProcessPayment(10, "alice", 5000)
		assert.ErrorIs(t, err, ErrProjectNotFundable)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
