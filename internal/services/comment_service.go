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

// CommentService manages discussion threads under projects.
type CommentService struct {
	db        *sql.DB
	projects  *ProjectService
	validator *ValidationHelper
}

type CommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func NewCommentService(db *sql.DB) *CommentService {
	return &CommentService{db: db, projects: NewProjectService(db), validator: NewValidationHelper()}
}

// Create posts a comment on a project
// @Summary Post a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/comments [post]
func (s *CommentService) Create(w http.ResponseWriter, r *http.Request) {
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

	var req CommentRequest
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

	if _, err := s.projects.GetByID(projectID); err == ErrProjectNotFound {
		SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	} else if err != nil {
		log.Printf("[COMMENT] Failed to load project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to post comment", http.StatusInternalServerError, nil)
		return
	}

	var comment models.Comment
	err = s.db.QueryRow(`
		INSERT INTO comments (project_id, user_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, project_id, user_id, content, created_at, updated_at`,
		projectID, userID, req.Content).Scan(
		&comment.ID, &comment.ProjectID, &comment.UserID, &comment.Content,
		&comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		log.Printf("[COMMENT] Failed to insert comment on project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to post comment", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[COMMENT] Comment %d posted on project %d by user %d", comment.ID, projectID, userID)
	SendSuccessResponse(w, http.StatusCreated, "Comment posted", comment)
}

// List returns a project's comments, oldest first
// @Summary List comments
// @Tags comments
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} models.Comment
// @Router /projects/{projectId}/comments [get]
func (s *CommentService) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectId"))
	if err != nil || projectID <= 0 {
		SendErrorResponse(w, "Invalid project ID", http.StatusBadRequest, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, project_id, user_id, content, created_at, updated_at
		FROM comments
		WHERE project_id = $1
		ORDER BY created_at ASC`, projectID)
	if err != nil {
		log.Printf("[COMMENT] Failed to list comments for project %d: %v", projectID, err)
		SendErrorResponse(w, "Failed to list comments", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(&comment.ID, &comment.ProjectID, &comment.UserID,
			&comment.Content, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			log.Printf("[COMMENT] Failed to scan comment: %v", err)
			SendErrorResponse(w, "Failed to list comments", http.StatusInternalServerError, nil)
			return
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[COMMENT] Row iteration failed: %v", err)
		SendErrorResponse(w, "Failed to list comments", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Comments found", comments)
}

// Modify updates the author's own comment
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param commentId path int true "Comment ID"
// @Param request body CommentRequest true "New content"
// @Success 200 {object} models.Comment
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/comments/{commentId} [put]
func (s *CommentService) Modify(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	commentID, err := strconv.Atoi(chi.URLParam(r, "commentId"))
	if err != nil || commentID <= 0 {
		SendErrorResponse(w, "Invalid comment ID", http.StatusBadRequest, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CommentRequest
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

	var authorID int
	err = s.db.QueryRow("SELECT user_id FROM comments WHERE id = $1", commentID).Scan(&authorID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Comment not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[COMMENT] Failed to load comment %d: %v", commentID, err)
		SendErrorResponse(w, "Failed to edit comment", http.StatusInternalServerError, nil)
		return
	}

	if authorID != userID {
		SendErrorResponse(w, "Only the author can edit this comment", http.StatusForbidden, nil)
		return
	}

	var comment models.Comment
	err = s.db.QueryRow(`
		UPDATE comments
		SET content = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, project_id, user_id, content, created_at, updated_at`,
		req.Content, commentID).Scan(
		&comment.ID, &comment.ProjectID, &comment.UserID, &comment.Content,
		&comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		log.Printf("[COMMENT] Failed to update comment %d: %v", commentID, err)
		SendErrorResponse(w, "Failed to edit comment", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Comment updated", comment)
}

// Delete removes the author's own comment
// @Summary Delete a comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param projectId path int true "Project ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId}/comments/{commentId} [delete]
func (s *CommentService) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	commentID, err := strconv.Atoi(chi.URLParam(r, "commentId"))
	if err != nil || commentID <= 0 {
		SendErrorResponse(w, "Invalid comment ID", http.StatusBadRequest, nil)
		return
	}

	var authorID int
	err = s.db.QueryRow("SELECT user_id FROM comments WHERE id = $1", commentID).Scan(&authorID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Comment not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[COMMENT] Failed to load comment %d: %v", commentID, err)
		SendErrorResponse(w, "Failed to delete comment", http.StatusInternalServerError, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if authorID != userID && role != models.RoleAdmin {
		SendErrorResponse(w, "Only the author can delete this comment", http.StatusForbidden, nil)
		return
	}

	if _, err := s.db.Exec("DELETE FROM comments WHERE id = $1", commentID); err != nil {
		log.Printf("[COMMENT] Failed to delete comment %d: %v", commentID, err)
		SendErrorResponse(w, "Failed to delete comment", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[COMMENT] Comment %d deleted by user %d", commentID, userID)
	SendSuccessResponse(w, http.StatusOK, "Comment deleted", nil)
}
