package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestFundingService_CreateTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db)

	t.Run("assigns the highest tier the amount covers", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id FROM users WHERE name").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))

		mock.ExpectQuery("SELECT id FROM rewards").
			WithArgs(10, int64(5000)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

		mock.ExpectQuery("INSERT INTO fundings").
			WithArgs(10, 30, 4, int64(5000), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		funding, err := service.CreateTx(tx, 10, "alice", 5000)
		assert.NoError(t, err)
		assert.Equal(t, 77, funding.ID)
		assert.NotNil(t, funding.RewardID)
		assert.Equal(t, 4, *funding.RewardID)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no reward tier below the amount", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id FROM users WHERE name").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))

		mock.ExpectQuery("SELECT id FROM rewards").
			WithArgs(10, int64(50)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectQuery("INSERT INTO fundings").
			WithArgs(10, 30, nil, int64(50), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(78))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		funding, err := service.CreateTx(tx, 10, "alice", 50)
		assert.NoError(t, err)
		assert.Nil(t, funding.RewardID)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown sponsor", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id FROM users WHERE name").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		_, err = service.CreateTx(tx, 10, "ghost", 5000)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundingService_CancelTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db)

	t.Run("cancels an active funding", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM fundings").
			WithArgs(77).
			WillReturnRows(fundingLockRows(77, 10, 30, 5000, false))

		mock.ExpectExec("UPDATE fundings SET is_deleted").
			WithArgs(77).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		funding, err := service.CancelTx(tx, 77)
		assert.NoError(t, err)
		assert.True(t, funding.IsDeleted)
		assert.Equal(t, int64(5000), funding.Amount)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second cancellation fails", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM fundings").
			WithArgs(77).
			WillReturnRows(fundingLockRows(77, 10, 30, 5000, true))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		_, err = service.CancelTx(tx, 77)
		assert.ErrorIs(t, err, ErrFundingAlreadyCancelled)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing funding", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM fundings").
			WithArgs(404).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		_, err = service.CancelTx(tx, 404)
		assert.ErrorIs(t, err, ErrFundingNotFound)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundingService_ListActiveByProjectID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db)

	mock.ExpectQuery("FROM fundings").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "sponsor_id", "reward_id", "amount", "funded_at", "is_deleted"}).
			AddRow(77, 10, 30, nil, int64(5000), time.Now().Add(-2*time.Hour), false).
			AddRow(78, 10, 31, 4, int64(2000), time.Now().Add(-time.Hour), false))

	fundings, err := service.ListActiveByProjectID(10)
	assert.NoError(t, err)
	assert.Len(t, fundings, 2)
	assert.Equal(t, 77, fundings[0].ID)
	assert.Equal(t, 78, fundings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
