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

// InquiryService handles beneficiary support inquiries. Inquiries open
// PENDING and flip to RESOLVED when an admin attaches a response.
type InquiryService struct {
	db        *sql.DB
	validator *ValidationHelper
}

type InquiryRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required,max=5000"`
}

type InquiryResponseRequest struct {
	AdminResponse string `json:"adminResponse" validate:"required,max=5000"`
}

func NewInquiryService(db *sql.DB) *InquiryService {
	return &InquiryService{db: db, validator: NewValidationHelper()}
}

// Create opens a support inquiry
// @Summary Submit an inquiry
// @Tags inquiries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InquiryRequest true "Inquiry"
// @Success 201 {object} models.Inquiry
// @Failure 403 {object} ErrorResponse
// @Router /inquiries [post]
func (s *InquiryService) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	role, _ := r.Context().Value("role").(string)
	if role != models.RoleBeneficiary && role != models.RoleAdmin {
		SendErrorResponse(w, "Only beneficiaries can submit inquiries", http.StatusForbidden, nil)
		return
	}

	var req InquiryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var inquiry models.Inquiry
	err := s.db.QueryRow(`
		INSERT INTO inquiries (user_id, title, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, user_id, title, content, status, admin_response, created_at, updated_at`,
		userID, req.Title, req.Content, models.InquiryStatusPending).Scan(
		&inquiry.ID, &inquiry.UserID, &inquiry.Title, &inquiry.Content,
		&inquiry.Status, &inquiry.AdminResponse, &inquiry.CreatedAt, &inquiry.UpdatedAt)
	if err != nil {
		log.Printf("[INQUIRY] Failed to create inquiry for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to submit inquiry", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[INQUIRY] Inquiry %d opened by user %d", inquiry.ID, userID)
	SendSuccessResponse(w, http.StatusCreated, "Inquiry submitted", inquiry)
}

// ListMine returns the authenticated user's inquiries
// @Summary List own inquiries
// @Tags inquiries
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Inquiry
// @Router /inquiries [get]
func (s *InquiryService) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, title, content, status, admin_response, created_at, updated_at
		FROM inquiries
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[INQUIRY] Failed to list inquiries for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to list inquiries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	inquiries, err := scanInquiries(rows)
	if err != nil {
		log.Printf("[INQUIRY] Failed to scan inquiries: %v", err)
		SendErrorResponse(w, "Failed to list inquiries", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Inquiries found", inquiries)
}

// ListAll returns inquiries for the admin queue
// @Summary List inquiries for review
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING or RESOLVED"
// @Success 200 {array} models.Inquiry
// @Router /admin/inquiries [get]
func (s *InquiryService) ListAll(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	query := `
		SELECT id, user_id, title, content, status, admin_response, created_at, updated_at
		FROM inquiries`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[INQUIRY] Failed to list inquiries: %v", err)
		SendErrorResponse(w, "Failed to list inquiries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	inquiries, err := scanInquiries(rows)
	if err != nil {
		log.Printf("[INQUIRY] Failed to scan inquiries: %v", err)
		SendErrorResponse(w, "Failed to list inquiries", http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, "Inquiries found", inquiries)
}

// Respond attaches an admin response and resolves the inquiry
// @Summary Respond to an inquiry
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param inquiryId path int true "Inquiry ID"
// @Param request body InquiryResponseRequest true "Response"
// @Success 200 {object} models.Inquiry
// @Failure 404 {object} ErrorResponse
// @Router /admin/inquiries/{inquiryId}/response [put]
func (s *InquiryService) Respond(w http.ResponseWriter, r *http.Request) {
	adminID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	inquiryID, err := strconv.Atoi(chi.URLParam(r, "inquiryId"))
	if err != nil || inquiryID <= 0 {
		SendErrorResponse(w, "Invalid inquiry ID", http.StatusBadRequest, nil)
		return
	}

	var req InquiryResponseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var inquiry models.Inquiry
	err = s.db.QueryRow(`
		UPDATE inquiries
		SET admin_response = $1, status = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING id, user_id, title, content, status, admin_response, created_at, updated_at`,
		req.AdminResponse, models.InquiryStatusResolved, inquiryID).Scan(
		&inquiry.ID, &inquiry.UserID, &inquiry.Title, &inquiry.Content,
		&inquiry.Status, &inquiry.AdminResponse, &inquiry.CreatedAt, &inquiry.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Inquiry not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[INQUIRY] Failed to resolve inquiry %d: %v", inquiryID, err)
		SendErrorResponse(w, "Failed to respond to inquiry", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[INQUIRY] Inquiry %d resolved by admin %d", inquiryID, adminID)
	SendSuccessResponse(w, http.StatusOK, "Inquiry resolved", inquiry)
}

func scanInquiries(rows *sql.Rows) ([]models.Inquiry, error) {
	inquiries := []models.Inquiry{}
	for rows.Next() {
		var inquiry models.Inquiry
		if err := rows.Scan(&inquiry.ID, &inquiry.UserID, &inquiry.Title, &inquiry.Content,
			&inquiry.Status, &inquiry.AdminResponse, &inquiry.CreatedAt, &inquiry.UpdatedAt); err != nil {
			return nil, err
		}
		inquiries = append(inquiries, inquiry)
	}
	return inquiries, rows.Err()
}

func (s *InquiryService) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
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
