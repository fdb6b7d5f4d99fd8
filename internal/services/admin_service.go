package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/fundbridge/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// AdminService handles admin review of projects. Status changes
// cascade onto the project's fundings: rejection and success cancel
// them in bulk, failure refunds each sponsor.
//
// The status update commits before the cascade starts, and FAILED
// refunds each run in their own transaction. A cascade interrupted
// mid-way resumes on the next identical request because refunded
// fundings are already soft-deleted and no longer selected.
type AdminService struct {
	db        *sql.DB
	projects  *ProjectService
	fundings  *FundingService
	refunds   *RefundService
	validator *ValidationHelper
}

type ApprovalDecisionRequest struct {
	ApprovalStatus string `json:"approvalStatus" validate:"required,oneof=APPROVED REJECTED"`
}

type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=ONGOING SUCCESS FAILED"`
}

// CascadeResult reports what a status change did to the project's
// fundings.
type CascadeResult struct {
	ProjectID       int    `json:"projectId"`
	Status          string `json:"status,omitempty"`
	ApprovalStatus  string `json:"approvalStatus,omitempty"`
	CancelledCount  int64  `json:"cancelledCount"`
	RefundedCount   int64  `json:"refundedCount"`
	RefundedAmount  int64  `json:"refundedAmount"`
	FailedRefundIDs []int  `json:"failedRefundIds,omitempty"`
}

func NewAdminService(db *sql.DB) *AdminService {
	return &AdminService{
		db:        db,
		projects:  NewProjectService(db),
		fundings:  NewFundingService(db),
		refunds:   NewRefundService(db),
		validator: NewValidationHelper(),
	}
}

// UpdateApprovalStatus decides an admin approval review
// @Summary Approve or reject a project
// @Description Set a project's approval status; rejection cancels all active fundings
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param request body ApprovalDecisionRequest true "Decision"
// @Success 200 {object} CascadeResult
// @Failure 404 {object} ErrorResponse
// @Router /admin/projects/{projectId}/approval [put]
func (s *AdminService) UpdateApprovalStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	var req ApprovalDecisionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if _, err := s.projects.GetByID(projectID); err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	} else if err != nil {
		log.Printf("[ADMIN] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to update approval status", http.StatusInternalServerError, nil)
		return
	}

	// Decision commits first; the cascade can rerun without repeating it.
	if _, err := s.db.Exec(`
		UPDATE projects SET approval_status = $1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = false`,
		req.ApprovalStatus, projectID); err != nil {
		log.Printf("[ADMIN] Failed to set approval status for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to update approval status", http.StatusInternalServerError, nil)
		return
	}

	result := &CascadeResult{ProjectID: projectID, ApprovalStatus: req.ApprovalStatus}

	if req.ApprovalStatus == models.ApprovalRejected {
		cancelled, err := s.cancelAllFundings(projectID)
		if err != nil {
			log.Printf("[ADMIN] Funding cancellation failed for rejected project %d: %v", projectID, err)
			SendErrorResponse(w, "Approval updated but funding cancellation failed", http.StatusInternalServerError, nil)
			return
		}
		result.CancelledCount = cancelled
	}

	log.Printf("[ADMIN] Project %d approval set to %s by admin %d (%d fundings cancelled)",
		projectID, req.ApprovalStatus, adminID, result.CancelledCount)
	SendSuccessResponse(w, http.StatusOK, "Approval status updated", result)
}

// UpdateProjectStatus changes a project's lifecycle status
// @Summary Change project status
// @Description Set a project's status; SUCCESS cancels fundings, FAILED refunds every sponsor
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param request body StatusChangeRequest true "New status"
// @Success 200 {object} CascadeResult
// @Failure 404 {object} ErrorResponse
// @Router /admin/projects/{projectId}/status [put]
func (s *AdminService) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	var req StatusChangeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if _, err := s.projects.GetByID(projectID); err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	} else if err != nil {
		log.Printf("[ADMIN] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to update project status", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec(`
		UPDATE projects SET status = $1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = false`,
		req.Status, projectID); err != nil {
		log.Printf("[ADMIN] Failed to set status for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to update project status", http.StatusInternalServerError, nil)
		return
	}

	result := &CascadeResult{ProjectID: projectID, Status: req.Status}

	switch req.Status {
	case models.ProjectStatusSuccess:
		cancelled, err := s.cancelAllFundings(projectID)
		if err != nil {
			log.Printf("[ADMIN] Funding cancellation failed for successful project %d: %v", projectID, err)
			SendErrorResponse(w, "Status updated but funding cancellation failed", http.StatusInternalServerError, nil)
			return
		}
		result.CancelledCount = cancelled
	case models.ProjectStatusFailed:
		if err := s.refundAllFundings(projectID, adminID, result); err != nil {
			log.Printf("[ADMIN] Failed to list fundings for failed project %d: %v", projectID, err)
			SendErrorResponse(w, "Status updated but refund processing failed; retry the status change", http.StatusInternalServerError, nil)
			return
		}
	}

	log.Printf("[ADMIN] Project %d status set to %s by admin %d (cancelled=%d refunded=%d)",
		projectID, req.Status, adminID, result.CancelledCount, result.RefundedCount)
	SendSuccessResponse(w, http.StatusOK, "Project status updated", result)
}

// ListProjects returns projects for the admin review queue
// @Summary List projects for review
// @Description List projects, optionally filtered by approval status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param approvalStatus query string false "AWAITING_APPROVAL, APPROVED or REJECTED"
// @Success 200 {array} models.Project
// @Router /admin/projects [get]
func (s *AdminService) ListProjects(w http.ResponseWriter, r *http.Request) {
	approvalStatus := r.URL.Query().Get("approvalStatus")

	query := `
		SELECT id, creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at
		FROM projects
		WHERE is_deleted = false`
	args := []any{}
	if approvalStatus != "" {
		query += ` AND approval_status = $1`
		args = append(args, approvalStatus)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[ADMIN] Failed to list projects: %v", err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	projects, err := scanProjects(rows)
	if err != nil {
		log.Printf("[ADMIN] Failed to scan projects: %v", err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Projects found", projects)
}

// cancelAllFundings soft-deletes every active funding in one
// transaction; no money moves.
func (s *AdminService) cancelAllFundings(projectID int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cancelled, err := s.fundings.BulkCancelByProjectIDTx(tx, projectID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return cancelled, nil
}

// refundAllFundings refunds every active funding, oldest first, each
// in its own transaction. Per-funding failures are collected rather
// than aborting the sweep; an already-cancelled funding is skipped
// silently. A failure to list the fundings at all is returned so the
// caller never reports a clean sweep it did not run.
func (s *AdminService) refundAllFundings(projectID, adminID int, result *CascadeResult) error {
	fundings, err := s.fundings.ListActiveByProjectID(projectID)
	if err != nil {
		return err
	}

	for i := range fundings {
		funding := &fundings[i]
		refund, err := s.refunds.RefundFunding(funding, &adminID)
		if err == ErrFundingAlreadyCancelled {
			continue
		}
		if err != nil {
			log.Printf("[ADMIN] Refund failed for funding %d on project %d: %v", funding.ID, projectID, err)
			result.FailedRefundIDs = append(result.FailedRefundIDs, funding.ID)
			continue
		}
		result.RefundedCount++
		result.RefundedAmount += refund.Amount
	}
	return nil
}

func (s *AdminService) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := s.validator.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
