package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/capture"
	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/fingerprint"
	"github.com/kozaktomas/face-recognizer/internal/logging"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

// FacesHandler serves registration and recognition.
type FacesHandler struct {
	store       store.Store
	threshold   float64
	maxBodySize int64
	logger      *zap.Logger
}

// NewFacesHandler creates a faces handler. Matches scoring below threshold are
// reported as "no match".
func NewFacesHandler(st store.Store, threshold float64, maxBodySize int64, logger *zap.Logger) *FacesHandler {
	return &FacesHandler{
		store:       st,
		threshold:   threshold,
		maxBodySize: maxBodySize,
		logger:      logging.OrNop(logger),
	}
}

// signatureFromPayload decodes a data URI (or bare base64) image payload.
func signatureFromPayload(payload string) (*fingerprint.Signature, error) {
	_, data, err := capture.ParseDataURI(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fingerprint.ErrUndecodable, err)
	}
	sig, err := fingerprint.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("fingerprint image: %w", err)
	}
	return sig, nil
}

// Register handles POST /api/register.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req faceapi.RegisterRequest
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		respondError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		respondError(w, http.StatusUnprocessableEntity, "value is not a valid email address")
		return
	}

	ctx := r.Context()
	reqID := chimw.GetReqID(ctx)
	logger := logging.WithOperation(h.logger, "register", reqID)

	if _, err := h.store.GetUserByEmail(ctx, email); err == nil {
		respondError(w, http.StatusBadRequest, msgDuplicateEmail)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Error("email lookup failed", zap.Error(logging.NewOperationError("register", reqID, err)))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	sig, err := signatureFromPayload(req.ImageData)
	switch {
	case errors.Is(err, fingerprint.ErrNoFace):
		respondError(w, http.StatusBadRequest, msgNoFace)
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, msgInvalidImage)
		return
	}

	user := &store.User{Name: name, Email: email, Embedding: sig.Embedding()}
	if err := h.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			respondError(w, http.StatusBadRequest, msgDuplicateEmail)
			return
		}
		logger.Error("create user failed", zap.Error(logging.NewOperationError("register", reqID, err)))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", sanitizeForLog(email)),
		zap.String("signature", sig.Hex()),
	)
	respondJSON(w, http.StatusOK, toAPIUser(*user))
}

// Recognize handles POST /api/recognize. "No face" and "no match" are
// successful answers without a user.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req faceapi.RecognizeRequest
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	ctx := r.Context()
	reqID := chimw.GetReqID(ctx)
	logger := logging.WithOperation(h.logger, "recognize", reqID)

	sig, err := signatureFromPayload(req.ImageData)
	switch {
	case errors.Is(err, fingerprint.ErrNoFace):
		logger.Debug("no face in submitted image")
		h.respondUnmatched(w, msgNoFace)
		return
	case err != nil:
		logger.Debug("undecodable image", zap.Error(err))
		respondError(w, http.StatusBadRequest, msgInvalidImage)
		return
	}

	match, err := h.store.Nearest(ctx, sig.Embedding())
	if err != nil {
		logger.Error("nearest user lookup failed", zap.Error(logging.NewOperationError("recognize", reqID, err)))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if match == nil {
		h.respondUnmatched(w, msgNoUsers)
		return
	}

	confidence := fingerprint.Confidence(match.Distance)
	entry := store.RecognitionLog{Confidence: confidence}

	var result *faceapi.RecognitionResult
	if confidence >= h.threshold {
		entry.UserID = match.User.ID
		entry.Matched = true
		result, err = faceapi.NewMatchedResult(toAPIUser(match.User), confidence, "Face recognized as "+match.User.Name)
	} else {
		result, err = faceapi.NewUnmatchedResult(msgNoMatch)
	}
	if err != nil {
		logger.Error("building recognition result failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	entry.Message = result.Message()

	if err := h.store.LogRecognition(ctx, entry); err != nil {
		logger.Warn("recording recognition failed", zap.Error(err))
	}

	logger.Info("recognition",
		zap.Bool("matched", entry.Matched),
		zap.String("user_id", entry.UserID),
		zap.Float64("confidence", confidence),
	)
	respondJSON(w, http.StatusOK, result.Response())
}

func (h *FacesHandler) respondUnmatched(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, faceapi.RecognizeResponse{Message: message})
}
