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

// RewardService manages a project's reward tiers. Tiers are owned by
// the project creator; payments pick the highest tier at or below the
// paid amount.
type RewardService struct {
	db        *sql.DB
	projects  *ProjectService
	validator *ValidationHelper
}

type RewardRequest struct {
	Description string `json:"description" validate:"required,max=300"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

func NewRewardService(db *sql.DB) *RewardService {
	return &RewardService{db: db, projects: NewProjectService(db), validator: NewValidationHelper()}
}

// Create adds a reward tier to a project
// @Summary Create a reward tier
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param request body RewardRequest true "Reward tier"
// @Success 201 {object} models.Reward
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/rewards [post]
func (s *RewardService) Create(w http.ResponseWriter, r *http.Request) {
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

	var req RewardRequest
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

	project, err := s.projects.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[REWARD] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to create reward", http.StatusInternalServerError, nil)
		return
	}

	if project.CreatorID != userID {
		SendErrorResponse(w, "Only the project creator can manage rewards", http.StatusForbidden, nil)
		return
	}

	var reward models.Reward
	err = s.db.QueryRow(`
		INSERT INTO rewards (project_id, description, amount, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, project_id, description, amount, created_at, updated_at`,
		projectID, req.Description, req.Amount).Scan(
		&reward.ID, &reward.ProjectID, &reward.Description, &reward.Amount,
		&reward.CreatedAt, &reward.UpdatedAt)
	if err != nil {
		log.Printf("[REWARD] Failed to insert reward for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to create reward", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REWARD] Reward %d created on project %d by user %d", reward.ID, projectID, userID)
	SendSuccessResponse(w, http.StatusCreated, "Reward created", reward)
}

// List returns a project's reward tiers
// @Summary List reward tiers
// @Tags rewards
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} models.Reward
// @Router /projects/{projectId}/rewards [get]
func (s *RewardService) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, project_id, description, amount, created_at, updated_at
		FROM rewards
		WHERE project_id = $1
		ORDER BY amount ASC`, projectID)
	if err != nil {
		log.Printf("[REWARD] Failed to list rewards for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to list rewards", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	rewards := make([]models.Reward, 0)
	for rows.Next() {
		var reward models.Reward
		if err := rows.Scan(&reward.ID, &reward.ProjectID, &reward.Description,
			&reward.Amount, &reward.CreatedAt, &reward.UpdatedAt); err != nil {
			log.Printf("[REWARD] Failed to scan reward: %v", err)
			SendErrorResponse(w, "Failed to list rewards", http.StatusInternalServerError, nil)
			return
		}
		rewards = append(rewards, reward)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[REWARD] Row iteration failed: %v", err)
		SendErrorResponse(w, "Failed to list rewards", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Rewards found", rewards)
}

// Delete removes a reward tier
// @Summary Delete a reward tier
// @Tags rewards
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param rewardId path int true "Reward ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/rewards/{rewardId} [delete]
func (s *RewardService) Delete(w http.ResponseWriter, r *http.Request) {
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
	rewardID, err := strconv.Atoi(chi.URLParam(r, "rewardId"))
	if err != nil || rewardID <= 0 {
		SendErrorResponse(w, "Invalid reward ID", http.StatusBadRequest, nil)
		return
	}

	project, err := s.projects.GetByID(projectID)
	if err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[REWARD] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to delete reward", http.StatusInternalServerError, nil)
		return
	}

	if project.CreatorID != userID {
		SendErrorResponse(w, "Only the project creator can manage rewards", http.StatusForbidden, nil)
		return
	}

	res, err := s.db.Exec("DELETE FROM rewards WHERE id = $1 AND project_id = $2", rewardID, projectID)
	if err != nil {
		log.Printf("[REWARD] Failed to delete reward %d: %v", rewardID, err)
		SendErrorResponse(w, "Failed to delete reward", http.StatusInternalServerError, nil)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Reward not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[REWARD] Reward %d deleted from project %d by user %d", rewardID, projectID, userID)
	SendSuccessResponse(w, http.StatusOK, "Reward deleted", nil)
}
