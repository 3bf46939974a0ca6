package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"foundit-backend/internal/middleware"
	"foundit-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ImageHandler handles image upload grants
type ImageHandler struct {
	imageService *services.ImageService
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService *services.ImageService) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
	}
}

// GrantUpload handles POST /api/v1/images/upload. The response
// carries a presigned PUT URL; the client uploads the bytes directly.
func (h *ImageHandler) GrantUpload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req services.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	grant, err := h.imageService.GrantUpload(r.Context(), userID, req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondError(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to presign upload")
		respondError(w, "Failed to prepare upload", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, grant)
}
