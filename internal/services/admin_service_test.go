package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func adminRequest(t *testing.T, method, target string, body any, projectID string) *http.Request {
	t.Helper()

	raw, err := json.Marshal(body)
	assert.NoError(t, err)

	r := httptest.NewRequest(method, target, bytes.NewBuffer(raw))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("projectId", projectID)

	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, "userID", "5")
	ctx = context.WithValue(ctx, "username", "admin")
	ctx = context.WithValue(ctx, "role", models.RoleAdmin)
	return r.WithContext(ctx)
}

func TestAdminService_UpdateApprovalStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db)

	t.Run("approval commits without touching fundings", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 0))

		mock.ExpectExec("UPDATE projects SET approval_status").
			WithArgs(models.ApprovalApproved, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		r := adminRequest(t, "PUT", "/admin/projects/10/approval",
			ApprovalDecisionRequest{ApprovalStatus: models.ApprovalApproved}, "10")
		w := httptest.NewRecorder()

		service.UpdateApprovalStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection cancels all active fundings", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 7000))

		mock.ExpectExec("UPDATE projects SET approval_status").
			WithArgs(models.ApprovalRejected, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE fundings SET is_deleted").
			WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		r := adminRequest(t, "PUT", "/admin/projects/10/approval",
			ApprovalDecisionRequest{ApprovalStatus: models.ApprovalRejected}, "10")
		w := httptest.NewRecorder()

		service.UpdateApprovalStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp SuccessResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var result CascadeResult
		assert.NoError(t, json.Unmarshal(data, &result))
		assert.Equal(t, int64(3), result.CancelledCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid decision rejected", func(t *testing.T) {
		r := adminRequest(t, "PUT", "/admin/projects/10/approval",
			ApprovalDecisionRequest{ApprovalStatus: "MAYBE"}, "10")
		w := httptest.NewRecorder()

		service.UpdateApprovalStatus(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminService_UpdateProjectStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db)

	t.Run("success cascade bulk-cancels fundings", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 120000))

		mock.ExpectExec("UPDATE projects SET status").
			WithArgs(models.ProjectStatusSuccess, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE fundings SET is_deleted").
			WithArgs(10).
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectCommit()

		r := adminRequest(t, "PUT", "/admin/projects/10/status",
			StatusChangeRequest{Status: models.ProjectStatusSuccess}, "10")
		w := httptest.NewRecorder()

		service.UpdateProjectStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed cascade refunds pending sponsors and skips cancelled ones", func(t *testing.T) {
		amount77 := int64(5000)
		amount78 := int64(2000)

		mock.ExpectQuery("FROM projects").
			WithArgs(10).
			WillReturnRows(projectRows(10, 20, 100000, 7000))

		mock.ExpectExec("UPDATE projects SET status").
			WithArgs(models.ProjectStatusFailed, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Two fundings still active, oldest first
		mock.ExpectQuery("FROM fundings").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "sponsor_id", "reward_id", "amount", "funded_at", "is_deleted"}).
				AddRow(77, 10, 30, nil, amount77, time.Now().Add(-2*time.Hour), false).
				AddRow(78, 10, 31, nil, amount78, time.Now().Add(-time.Hour), false))

		// Funding 77: full refund, its own transaction
		mock.ExpectQuery("FROM transactions").
			WithArgs(77, models.TxTypeRemittance).
			WillReturnRows(transactionRows(501, 77, 1, 2, amount77, models.TxTypeRemittance))

		mock.ExpectQuery("FROM accounts").
			WithArgs(30).
			WillReturnRows(accountRows(1, 30, 0, 2))

		mock.ExpectQuery("FROM transactions").
			WithArgs(501).
			WillReturnRows(transactionRows(501, 77, 1, 2, amount77, models.TxTypeRemittance))

		mock.ExpectQuery("FROM accounts").
			WithArgs(1).
			WillReturnRows(accountRows(1, 30, 0, 2))

		mock.ExpectQuery("INNER JOIN transactions").
			WithArgs(501).
			WillReturnRows(accountRows(2, 20, 7000, 2))

		mock.ExpectBegin()

		mock.ExpectQuery("FROM fundings").
			WithArgs(77).
			WillReturnRows(fundingLockRows(77, 10, 30, amount77, false))

		mock.ExpectExec("UPDATE fundings SET is_deleted").
			WithArgs(77).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(1).
			WillReturnRows(lockRows(1, 30, 0, 2))

		mock.ExpectQuery("FOR UPDATE").
			WithArgs(2).
			WillReturnRows(lockRows(2, 20, 7000, 2))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(2000), sqlmock.AnyArg(), 2, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(int64(5000), sqlmock.AnyArg(), 1, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), 77, 5, 2, 1, amount77, models.TxTypeRefund, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(601))

		mock.ExpectExec("UPDATE projects SET current_funding").
			WithArgs(amount77, 10).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		// Funding 78: concurrently cancelled between listing and refund
		mock.ExpectQuery("FROM transactions").
			WithArgs(78, models.TxTypeRemittance).
			WillReturnRows(transactionRows(503, 78, 3, 2, amount78, models.TxTypeRemittance))

		mock.ExpectQuery("FROM accounts").
			WithArgs(31).
			WillReturnRows(accountRows(3, 31, 0, 1))

		mock.ExpectQuery("FROM transactions").
			WithArgs(503).
			WillReturnRows(transactionRows(503, 78, 3, 2, amount78, models.TxTypeRemittance))

		mock.ExpectQuery("FROM accounts").
			WithArgs(3).
			WillReturnRows(accountRows(3, 31, 0, 1))

		mock.ExpectQuery("INNER JOIN transactions").
			WithArgs(503).
			WillReturnRows(accountRows(2, 20, 2000, 3))

		mock.ExpectBegin()

		mock.ExpectQuery("FROM fundings").
			WithArgs(78).
			WillReturnRows(fundingLockRows(78, 10, 31, amount78, true))

		mock.ExpectRollback()

		r := adminRequest(t, "PUT", "/admin/projects/10/status",
			StatusChangeRequest{Status: models.ProjectStatusFailed}, "10")
		w := httptest.NewRecorder()

		service.UpdateProjectStatus(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp SuccessResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var result CascadeResult
		assert.NoError(t, json.Unmarshal(data, &result))
		assert.Equal(t, int64(1), result.RefundedCount)
		assert.Equal(t, amount77, result.RefundedAmount)
		assert.Empty(t, result.FailedRefundIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing project", func(t *testing.T) {
		mock.ExpectQuery("FROM projects").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		r := adminRequest(t, "PUT", "/admin/projects/99/status",
			StatusChangeRequest{Status: models.ProjectStatusFailed}, "99")
		w := httptest.NewRecorder()

		service.UpdateProjectStatus(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdminService_UpdateProjectStatus_RefundScanFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAdminService(db)

	mock.ExpectQuery("FROM projects").
		WithArgs(10).
		WillReturnRows(projectRows(10, 20, 100000, 7000))
	mock.ExpectExec("UPDATE projects").
		WithArgs(models.ProjectStatusFailed, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM fundings").
		WithArgs(10).
		WillReturnError(errors.New("connection reset by peer"))

	r := adminRequest(t, "PUT", "/api/v1/admin/projects/10/status",
		StatusChangeRequest{Status: models.ProjectStatusFailed}, "10")
	w := httptest.NewRecorder()

	service.UpdateProjectStatus(w, r)

	// The status write committed but the sweep never ran; a clean 200
	// here would be indistinguishable from a project with no fundings.
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}
