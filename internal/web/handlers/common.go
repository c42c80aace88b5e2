package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

// Response messages shared with clients of the recognition API.
const (
	msgInvalidRequestBody = "Invalid request body"
	msgRequestTooLarge    = "Request body too large"
	msgInvalidImage       = "Invalid image data"
	msgNoFace             = "No face detected in the image"
	msgDuplicateEmail     = "User with this email already exists"
	msgUserNotFound       = "User not found"
	msgUserDeleted        = "User deleted successfully"
	msgNoUsers            = "No registered users found"
	msgNoMatch            = "No matching face found"
	msgInternal           = "Internal server error"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response in the {"detail": ...} shape.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"detail": message})
}

// decodeJSON reads a size-limited JSON body into dst. On failure it writes
// the error response itself and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, msgRequestTooLarge)
			return false
		}
		respondError(w, http.StatusUnprocessableEntity, msgInvalidRequestBody)
		return false
	}
	return true
}

// toAPIUser converts a stored user to its wire shape. The embedding is never exposed.
func toAPIUser(u store.User) faceapi.User {
	return faceapi.User{
		ID:        faceapi.UserID(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Root returns a handler describing the service.
func Root(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "Facial Recognition API",
			"version": version,
		})
	}
}
