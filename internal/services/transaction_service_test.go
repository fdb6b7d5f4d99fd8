package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func historyRows(rows ...[]driverValue) *sqlmock.Rows {
	result := sqlmock.NewRows([]string{"id", "transaction_id", "funding_id", "admin_id", "sender_account_id", "receiver_account_id", "amount", "type", "created_at"})
	for _, r := range rows {
		vals := make([]driver.Value, len(r))
		for i, v := range r {
			vals[i] = v
		}
		result.AddRow(vals...)
	}
	return result
}

type driverValue = interface{}

func TestRecordTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), 77, nil, 1, 2, int64(5000), models.TxTypeRemittance, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(501))

	tx, err := db.Begin()
	assert.NoError(t, err)

	fundingID := 77
	record, err := service.RecordTx(tx, &fundingID, nil, 1, 2, 5000, models.TxTypeRemittance, nil)
	assert.NoError(t, err)
	assert.Equal(t, 501, record.ID)
	assert.NotEmpty(t, record.TransactionID)
	assert.Equal(t, 77, *record.FundingID)
	assert.Nil(t, record.AdminID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByFundingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	t.Run("original payment found", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(77, models.TxTypeRemittance).
			WillReturnRows(historyRows([]driverValue{501, "uuid-501", 77, nil, 1, 2, int64(5000), models.TxTypeRemittance, time.Now()}))

		record, err := service.GetByFundingID(77, models.TxTypeRemittance)
		assert.NoError(t, err)
		assert.Equal(t, 501, record.ID)
		assert.Equal(t, int64(5000), record.Amount)
	})

	t.Run("no matching record", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(99, models.TxTypeRemittance).
			WillReturnRows(historyRows())

		_, err := service.GetByFundingID(99, models.TxTypeRemittance)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMyTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	t.Run("returns account history newest first", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM accounts").
			WithArgs(30).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("FROM transactions").
			WithArgs(1, 20).
			WillReturnRows(historyRows(
				[]driverValue{502, "uuid-502", nil, nil, 2, 1, int64(5000), models.TxTypeRefund, time.Now()},
				[]driverValue{501, "uuid-501", 77, nil, 1, 2, int64(5000), models.TxTypeRemittance, time.Now().Add(-time.Hour)},
			))

		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", "30"))
		w := httptest.NewRecorder()

		service.ListMyTransactions(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp SuccessResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		var transactions []models.Transaction
		raw, _ := json.Marshal(resp.Data)
		assert.NoError(t, json.Unmarshal(raw, &transactions))
		assert.Len(t, transactions, 2)
		assert.Equal(t, models.TxTypeRefund, transactions[0].Type)
	})

	t.Run("no account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM accounts").
			WithArgs(31).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", "31"))
		w := httptest.NewRecorder()

		service.ListMyTransactions(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionHandler(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(999).
			WillReturnRows(historyRows())

		r := httptest.NewRequest("GET", "/api/v1/transactions/999", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("txId", "999")
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		service.GetTransaction(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/transactions/abc", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("txId", "abc")
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		service.GetTransaction(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
