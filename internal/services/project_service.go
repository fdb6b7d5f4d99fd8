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

// ProjectService manages the project lifecycle: beneficiaries create
// and edit projects, admins approve them, sponsors browse the approved
// catalogue. New projects start ONGOING and AWAITING_APPROVAL and are
// invisible to the public listing until approved.
type ProjectService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type CreateProjectRequest struct {
	Title             string  `json:"title" validate:"required,min=1,max=200"`
	SimpleDescription string  `json:"simpleDescription" validate:"required,max=300"`
	BannerURL         string  `json:"bannerUrl" validate:"omitempty,url"`
	Description       string  `json:"description" validate:"required"`
	FundingGoal       int64   `json:"fundingGoal" validate:"required,gt=0"`
	StartDate         string  `json:"startDate" validate:"required"`
	EndDate           string  `json:"endDate" validate:"required"`
	RewardAmounts     []int64 `json:"rewardAmounts" validate:"omitempty,dive,gt=0"`
}

// ModifyProjectRequest carries only the fields being changed; nil
// pointers leave the stored value alone.
type ModifyProjectRequest struct {
	Title             *string `json:"title" validate:"omitempty,min=1,max=200"`
	SimpleDescription *string `json:"simpleDescription" validate:"omitempty,max=300"`
	BannerURL         *string `json:"bannerUrl" validate:"omitempty,url"`
	Description       *string `json:"description"`
	FundingGoal       *int64  `json:"fundingGoal" validate:"omitempty,gt=0"`
	StartDate         *string `json:"startDate"`
	EndDate           *string `json:"endDate"`
}

func NewProjectService(db *sql.DB) *ProjectService {
	return &ProjectService{db: db, validator: NewValidationHelper()}
}

// Create registers a new project for the authenticated beneficiary
// @Summary Create a project
// @Description Create a crowdfunding project awaiting admin approval
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project details"
// @Success 201 {object} models.Project
// @Failure 400 {object} ErrorResponse
// @Router /projects [post]
func (s *ProjectService) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if role != models.RoleBeneficiary && role != models.RoleAdmin {
		SendErrorResponse(w, "Only beneficiaries can create projects", http.StatusForbidden, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateProjectRequest
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

	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		SendErrorResponse(w, "Invalid start date", http.StatusBadRequest, nil)
		return
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		SendErrorResponse(w, "Invalid end date", http.StatusBadRequest, nil)
		return
	}
	if !endDate.After(startDate) {
		SendErrorResponse(w, "End date must be after start date", http.StatusBadRequest, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[PROJECT] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to create project", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var project models.Project
	err = tx.QueryRow(`
		INSERT INTO projects (creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, false, NOW(), NOW())
		RETURNING id, creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at`,
		userID, req.Title, req.SimpleDescription, req.BannerURL, req.Description,
		req.FundingGoal, startDate, endDate,
		models.ProjectStatusOngoing, models.ApprovalAwaiting,
	).Scan(
		&project.ID, &project.CreatorID, &project.Title, &project.SimpleDescription,
		&project.BannerURL, &project.Description, &project.FundingGoal, &project.CurrentFunding,
		&project.StartDate, &project.EndDate, &project.Status, &project.ApprovalStatus,
		&project.IsDeleted, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		log.Printf("[PROJECT] Failed to insert project for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create project", http.StatusInternalServerError, nil)
		return
	}

	// Every project carries at least one reward tier so payments always
	// have something to assign; default tier matches the funding goal.
	rewardAmounts := req.RewardAmounts
	if len(rewardAmounts) == 0 {
		rewardAmounts = []int64{req.FundingGoal}
	}
	for _, amount := range rewardAmounts {
		if _, err := tx.Exec(`
			INSERT INTO rewards (project_id, description, amount, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())`,
			project.ID, "Support tier", amount); err != nil {
			log.Printf("[PROJECT] Failed to insert reward for project %d: %v", project.ID, err)
			SendErrorResponse(w, "Failed to create project", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[PROJECT] Failed to commit project for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create project", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PROJECT] Project %d created by user %d", project.ID, userID)
	SendSuccessResponse(w, http.StatusCreated, "Project created", project)
}

// Modify updates a project owned by the authenticated beneficiary
// @Summary Modify a project
// @Description Partially update a project; only the creator may modify it
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param request body ModifyProjectRequest true "Fields to change"
// @Success 200 {object} models.Project
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId} [put]
func (s *ProjectService) Modify(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ModifyProjectRequest
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

	project, err := s.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PROJECT] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to modify project", http.StatusInternalServerError, nil)
		return
	}

	if project.CreatorID != userID {
		SendErrorResponse(w, "Only the project creator can modify it", http.StatusForbidden, nil)
		return
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.SimpleDescription != nil {
		project.SimpleDescription = *req.SimpleDescription
	}
	if req.BannerURL != nil {
		project.BannerURL = *req.BannerURL
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.FundingGoal != nil {
		project.FundingGoal = *req.FundingGoal
	}
	if req.StartDate != nil {
		startDate, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			SendErrorResponse(w, "Invalid start date", http.StatusBadRequest, nil)
			return
		}
		project.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			SendErrorResponse(w, "Invalid end date", http.StatusBadRequest, nil)
			return
		}
		project.EndDate = endDate
	}
	if !project.EndDate.After(project.StartDate) {
		SendErrorResponse(w, "End date must be after start date", http.StatusBadRequest, nil)
		return
	}

	_, err = s.db.Exec(`
		UPDATE projects SET title = $1, simple_description = $2, banner_url = $3,
			description = $4, funding_goal = $5, start_date = $6, end_date = $7,
			updated_at = NOW()
		WHERE id = $8 AND is_deleted = false`,
		project.Title, project.SimpleDescription, project.BannerURL, project.Description,
		project.FundingGoal, project.StartDate, project.EndDate, project.ID)
	if err != nil {
		log.Printf("[PROJECT] Failed to update project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to modify project", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PROJECT] Project %d modified by user %d", projectID, userID)
	SendSuccessResponse(w, http.StatusOK, "Project updated", project)
}

// Delete soft-deletes a project owned by the authenticated beneficiary
// @Summary Delete a project
// @Description Soft-delete a project; only the creator may delete it
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId} [delete]
func (s *ProjectService) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	project, err := s.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PROJECT] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to delete project", http.StatusInternalServerError, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if project.CreatorID != userID && role != models.RoleAdmin {
		SendErrorResponse(w, "Only the project creator can delete it", http.StatusForbidden, nil)
		return
	}

	if _, err := s.db.Exec(`
		UPDATE projects SET is_deleted = true, updated_at = NOW()
		WHERE id = $1`, projectID); err != nil {
		log.Printf("[PROJECT] Failed to delete project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to delete project", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PROJECT] Project %d deleted by user %d", projectID, userID)
	SendSuccessResponse(w, http.StatusOK, "Project deleted", nil)
}

// RequestApproval resets a project back into the admin review queue
// @Summary Request approval
// @Description Put the project back into AWAITING_APPROVAL for admin review
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/approval [post]
func (s *ProjectService) RequestApproval(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	project, err := s.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PROJECT] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to request approval", http.StatusInternalServerError, nil)
		return
	}

	if project.CreatorID != userID {
		SendErrorResponse(w, "Only the project creator can request approval", http.StatusForbidden, nil)
		return
	}

	if _, err := s.db.Exec(`
		UPDATE projects SET approval_status = $1, updated_at = NOW()
		WHERE id = $2 AND is_deleted = false`,
		models.ApprovalAwaiting, projectID); err != nil {
		log.Printf("[PROJECT] Failed to reset approval for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to request approval", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PROJECT] Project %d approval requested by user %d", projectID, userID)
	SendSuccessResponse(w, http.StatusOK, "Approval requested", nil)
}

// Get returns a single project
// @Summary Get a project
// @Description Fetch one project by ID
// @Tags projects
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId} [get]
func (s *ProjectService) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	project, err := s.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PROJECT] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to fetch project", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Project found", project)
}

// List returns the public catalogue of approved projects
// @Summary List projects
// @Description List approved, non-deleted projects, newest first
// @Tags projects
// @Produce json
// @Param limit query int false "Maximum results (default 20, max 100)"
// @Success 200 {array} models.Project
// @Router /projects [get]
func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := s.db.Query(`
		SELECT id, creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at
		FROM projects
		WHERE approval_status = $1 AND is_deleted = false
		ORDER BY created_at DESC
		LIMIT $2`, models.ApprovalApproved, limit)
	if err != nil {
		log.Printf("[PROJECT] Failed to list projects: %v", err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	projects, err := scanProjects(rows)
	if err != nil {
		log.Printf("[PROJECT] Failed to scan projects: %v", err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Projects found", projects)
}

// ListMine returns the authenticated creator's own projects
// @Summary List own projects
// @Description List the caller's projects regardless of approval status, newest first
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Project
// @Router /projects/mine [get]
func (s *ProjectService) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at
		FROM projects
		WHERE creator_id = $1 AND is_deleted = false
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[PROJECT] Failed to list projects for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	projects, err := scanProjects(rows)
	if err != nil {
		log.Printf("[PROJECT] Failed to scan projects: %v", err)
		SendErrorResponse(w, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Projects found", projects)
}

// GetByID fetches one non-deleted project.
func (s *ProjectService) GetByID(projectID int) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRow(`
		SELECT id, creator_id, title, simple_description, banner_url, description,
			funding_goal, current_funding, start_date, end_date, status, approval_status,
			is_deleted, created_at, updated_at
		FROM projects
		WHERE id = $1 AND is_deleted = false`, projectID).Scan(
		&p.ID, &p.CreatorID, &p.Title, &p.SimpleDescription, &p.BannerURL, &p.Description,
		&p.FundingGoal, &p.CurrentFunding, &p.StartDate, &p.EndDate, &p.Status,
		&p.ApprovalStatus, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProjects(rows *sql.Rows) ([]models.Project, error) {
	projects := make([]models.Project, 0)
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(
			&p.ID, &p.CreatorID, &p.Title, &p.SimpleDescription, &p.BannerURL, &p.Description,
			&p.FundingGoal, &p.CurrentFunding, &p.StartDate, &p.EndDate, &p.Status,
			&p.ApprovalStatus, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
