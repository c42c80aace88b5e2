package workflow

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/logging"
)

// UserService is the directory part of the recognition service.
type UserService interface {
	ListUsers(ctx context.Context, skip, limit int) (*faceapi.UserList, error)
	GetUser(ctx context.Context, id faceapi.UserID) (*faceapi.User, error)
	DeleteUser(ctx context.Context, id faceapi.UserID) (*faceapi.DeleteResponse, error)
}

// Page is one fetched page of the user directory.
type Page struct {
	Users []faceapi.User
	// Total is the count reported by the service at fetch time,
	// or len(Users) when the service did not report one.
	Total int
	Skip  int
	Limit int
}

// Directory lists and deletes enrolled users. It keeps no cache: every List
// is an independent fetch and concurrent calls do not interfere.
type Directory struct {
	users  UserService
	logger *zap.Logger
}

// NewDirectory creates a directory client. A nil logger disables logging.
func NewDirectory(users UserService, logger *zap.Logger) *Directory {
	return &Directory{users: users, logger: logging.OrNop(logger)}
}

// List fetches users in the order the service returns them.
func (d *Directory) List(ctx context.Context, skip, limit int) (*Page, error) {
	if skip < 0 {
		return nil, &ValidationError{Field: FieldSkip, Message: "skip must not be negative"}
	}
	if limit <= 0 {
		return nil, &ValidationError{Field: FieldLimit, Message: "limit must be positive"}
	}

	list, err := d.users.ListUsers(ctx, skip, limit)
	if err != nil {
		d.logger.Warn("listing users failed", zap.Error(err))
		return nil, newSubmissionError(err, genericListFailure)
	}

	page := &Page{Users: list.Users, Total: len(list.Users), Skip: skip, Limit: limit}
	if list.Total != nil {
		page.Total = *list.Total
	}
	return page, nil
}

// Get fetches a single user.
func (d *Directory) Get(ctx context.Context, id faceapi.UserID) (*faceapi.User, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, &ValidationError{Field: FieldID, Message: "user id is required"}
	}
	user, err := d.users.GetUser(ctx, id)
	if err != nil {
		return nil, newSubmissionError(err, "Failed to fetch user")
	}
	return user, nil
}

// DeleteRequest is the first step of a deletion. It must be confirmed before
// ConfirmDelete will act on it.
type DeleteRequest struct {
	UserID    faceapi.UserID
	confirmed bool
}

// Confirm records the caller's explicit confirmation.
func (r *DeleteRequest) Confirm() { r.confirmed = true }

// Confirmed reports whether Confirm was called.
func (r *DeleteRequest) Confirmed() bool { return r.confirmed }

// RequestDelete starts a deletion for id. Nothing is sent yet.
func (d *Directory) RequestDelete(id faceapi.UserID) *DeleteRequest {
	return &DeleteRequest{UserID: id}
}

// ConfirmDelete deletes the user named by a confirmed request.
// Unconfirmed requests fail with ErrDeleteNotConfirmed without any network call.
// Remote failures are reported as *DeletionError; the caller refreshes its view on success.
func (d *Directory) ConfirmDelete(ctx context.Context, req *DeleteRequest) error {
	if req == nil || !req.confirmed {
		return ErrDeleteNotConfirmed
	}
	if strings.TrimSpace(string(req.UserID)) == "" {
		return &ValidationError{Field: FieldID, Message: "user id is required"}
	}

	if _, err := d.users.DeleteUser(ctx, req.UserID); err != nil {
		d.logger.Warn("deleting user failed", zap.String("user_id", req.UserID.String()), zap.Error(err))
		return &DeletionError{UserID: req.UserID, Reason: faceapi.ReasonOf(err), Err: err}
	}

	d.logger.Info("user deleted", zap.String("user_id", req.UserID.String()))
	return nil
}
