package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestSettlementService_ProcessPayout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	req := &PayoutRequest{
		Amount:            50000,
		BankCode:          "044",
		BankAccountNumber: "0123456789",
		AccountHolderName: "Jane Doe",
	}

	t.Run("successful payout debits and records", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts").
			WithArgs(20).
			WillReturnRows(accountRows(2, 20, 120000, 4))

		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 120000, 4))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(70000), sqlmock.AnyArg(), 2, 4).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), nil, nil, 2, 2, req.Amount, models.TxTypePayout, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(701))

		mock.ExpectCommit()

		result, err := service.ProcessPayout(20, req)
		assert.NoError(t, err)
		assert.Equal(t, int64(120000), result.BeforeBalance)
		assert.Equal(t, int64(70000), result.AfterBalance)
		assert.Equal(t, "pacs.008.001.08", result.MessageType)
		assert.NotEmpty(t, result.MessageID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts").
			WithArgs(20).
			WillReturnRows(accountRows(2, 20, 100, 4))

		mock.ExpectBegin()

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 100, 4))

		mock.ExpectRollback()

		_, err := service.ProcessPayout(20, req)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.ProcessPayout(99, req)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlementService_CreatePacs008(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	record := &models.Transaction{
		ID:                701,
		TransactionID:     "f3b9d1a0",
		SenderAccountID:   2,
		ReceiverAccountID: 2,
		Amount:            50000,
		Type:              models.TxTypePayout,
		CreatedAt:         time.Now(),
	}
	req := &PayoutRequest{
		Amount:            50000,
		BankCode:          "044",
		BankAccountNumber: "0123456789",
		AccountHolderName: "Jane Doe",
	}

	doc := service.CreatePacs008(record, req, "USD")

	assert.NotEmpty(t, doc.GrpHdr.MsgId)
	assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
	assert.Len(t, doc.CdtTrfTxInf, 1)

	tx := doc.CdtTrfTxInf[0]
	assert.Equal(t, "f3b9d1a0", string(tx.PmtId.EndToEndId))
	assert.Equal(t, "USD", string(tx.IntrBkSttlmAmt.Ccy))
	assert.InDelta(t, 500.0, tx.IntrBkSttlmAmt.Value, 0.001)
	assert.Equal(t, "044", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	assert.Equal(t, "Jane Doe", string(*tx.Cdtr.Nm))

	xmlOut, err := service.ConvertToXML(doc)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlOut, "<?xml"))
	assert.Contains(t, xmlOut, "Jane Doe")
}

func TestSettlementService_CreatePacs002(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	record := &models.Transaction{TransactionID: "f3b9d1a0"}
	doc := service.CreatePacs002(record, "ACCP")

	assert.NotEmpty(t, doc.GrpHdr.MsgId)
	assert.Len(t, doc.TxInfAndSts, 1)
	assert.Equal(t, "ACCP", string(*doc.TxInfAndSts[0].TxSts))
	assert.Equal(t, "f3b9d1a0", string(*doc.TxInfAndSts[0].OrgnlTxId))
}

func payoutStatusRequest(t *testing.T, txID, userID, role string) *http.Request {
	t.Helper()

	r := httptest.NewRequest("GET", "/api/v1/accounts/payout/"+txID+"/status", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("txId", txID)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, "userID", userID)
	ctx = context.WithValue(ctx, "role", role)
	return r.WithContext(ctx)
}

func TestSettlementService_PayoutStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSettlementService(db)

	t.Run("owner gets the status report", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(701).
			WillReturnRows(transactionRows(701, nil, 2, 2, 50000, models.TxTypePayout))
		mock.ExpectQuery("FROM accounts").
			WithArgs(20).
			WillReturnRows(accountRows(2, 20, 70000, 5))

		w := httptest.NewRecorder()
		service.PayoutStatus(w, payoutStatusRequest(t, "701", "20", models.RoleBeneficiary))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "ACSC")
		assert.Contains(t, w.Body.String(), "c1a2b3")
	})

	t.Run("remittance record is not a payout", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(501).
			WillReturnRows(transactionRows(501, 77, 1, 2, 5000, models.TxTypeRemittance))

		w := httptest.NewRecorder()
		service.PayoutStatus(w, payoutStatusRequest(t, "501", "20", models.RoleBeneficiary))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("someone else's payout forbidden", func(t *testing.T) {
		mock.ExpectQuery("FROM transactions").
			WithArgs(701).
			WillReturnRows(transactionRows(701, nil, 2, 2, 50000, models.TxTypePayout))
		mock.ExpectQuery("FROM accounts").
			WithArgs(31).
			WillReturnRows(accountRows(9, 31, 1000, 1))

		w := httptest.NewRecorder()
		service.PayoutStatus(w, payoutStatusRequest(t, "701", "31", models.RoleBeneficiary))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
