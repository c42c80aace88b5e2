package faceapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Register enrolls a new user with a face image payload.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	user, err := doPostJSON[User](ctx, c, "register", req)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("register user: %w: missing id", ErrMalformedResponse)
	}
	return user, nil
}

// Recognize submits an image payload for matching. A "no match" answer is a
// successful result, not an error.
func (c *Client) Recognize(ctx context.Context, req RecognizeRequest) (*RecognitionResult, error) {
	resp, err := doPostJSON[RecognizeResponse](ctx, c, "recognize", req)
	if err != nil {
		return nil, fmt.Errorf("recognize face: %w", err)
	}
	result, err := ResultFromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("recognize face: %w: %w", ErrMalformedResponse, err)
	}
	return result, nil
}

// ListUsers fetches one page of enrolled users.
func (c *Client) ListUsers(ctx context.Context, skip, limit int) (*UserList, error) {
	if skip < 0 {
		return nil, errors.New("skip must not be negative")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(limit))

	list, err := doGetJSON[UserList](ctx, c, "users?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if list.Users == nil {
		list.Users = []User{}
	}
	return list, nil
}

// GetUser fetches a single user by id.
func (c *Client) GetUser(ctx context.Context, id UserID) (*User, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	user, err := doGetJSON[User](ctx, c, "users/"+url.PathEscape(string(id)))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

// DeleteUser removes a user. Callers must obtain explicit confirmation first.
func (c *Client) DeleteUser(ctx context.Context, id UserID) (*DeleteResponse, error) {
	if id == "" {
		return nil, errors.New("user id is required")
	}
	resp, err := doDeleteJSON[DeleteResponse](ctx, c, "users/"+url.PathEscape(string(id)))
	if err != nil {
		return nil, fmt.Errorf("delete user %s: %w", id, err)
	}
	return resp, nil
}
