package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/logging"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

const (
	defaultSkip  = 0
	defaultLimit = 100
)

// UsersHandler serves the user directory.
type UsersHandler struct {
	store  store.Store
	logger *zap.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(st store.Store, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{store: st, logger: logging.OrNop(logger)}
}

// queryInt parses an integer query parameter, returning def when it is absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err //nolint:wrapcheck // only the presence of an error is used
	}
	return n, nil
}

// List handles GET /api/users?skip=&limit=.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", defaultSkip)
	if err != nil || skip < 0 {
		respondError(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}

	ctx := r.Context()
	users, err := h.store.ListUsers(ctx, skip, limit)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	total, err := h.store.CountUsers(ctx)
	if err != nil {
		h.logger.Error("count users failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	resp := faceapi.UserList{Users: make([]faceapi.User, 0, len(users)), Total: &total}
	for _, u := range users {
		resp.Users = append(resp.Users, toAPIUser(u))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get user failed", zap.String("user_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	respondJSON(w, http.StatusOK, toAPIUser(*user))
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.DeleteUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, msgUserNotFound)
		return
	}
	if err != nil {
		h.logger.Error("delete user failed", zap.String("user_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.logger.Info("user deleted", zap.String("user_id", sanitizeForLog(id)))
	respondJSON(w, http.StatusOK, faceapi.DeleteResponse{Message: msgUserDeleted})
}
