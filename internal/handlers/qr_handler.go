package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fundbridge/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR issues a shareable QR code for a project
// @Summary Generate project share QR
// @Description Generate a QR code linking to a project with a suggested pledge amount
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{projectId=int,suggestedAmount=int64} true "Share code request"
// @Success 200 {object} object{shareCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ProjectID       int   `json:"projectId" validate:"required,gt=0"`
		SuggestedAmount int64 `json:"suggestedAmount" validate:"omitempty,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	shareCode, qrImage, err := h.service.GenerateShareCode(r.Context(), req.ProjectID, req.SuggestedAmount)
	if err == services.ErrProjectNotFound {
		services.SendErrorResponse(w, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err == services.ErrShareCodesUnavailable {
		services.SendErrorResponse(w, "Share codes are temporarily unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"shareCode": shareCode,
		"qrImage":   qrImage,
	})
}

// ResolveQR resolves a scanned share code
// @Summary Resolve project share QR
// @Description Resolve a scanned share code to its project and suggested amount
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{shareCode=string} true "Share code"
// @Success 200 {object} object{projectId=int,suggestedAmount=int64}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/resolve [post]
func (h *QRHandler) ResolveQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShareCode string `json:"shareCode" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ResolveShareCode(r.Context(), req.ShareCode)
	if err == services.ErrShareCodesUnavailable {
		services.SendErrorResponse(w, "Share codes are temporarily unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
