// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package post

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/pkg/errutil"
)

// CreateInput is the payload of a create request.
type CreateInput struct {
	Title string `json:"title" validate:"required"`
	Text  string `json:"text" validate:"required"`
}

// UpdateInput is the payload of an update request. Empty fields keep their
// current value.
type UpdateInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Response is the result envelope of every post mutation.
type Response struct {
	Code    int               `json:"code"`
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  []auth.FieldError `json:"errors,omitempty"`
	Post    *View             `json:"post,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service provides post listing and mutations.
type Service struct {
	posts  Repository
	users  UserLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new Service with a discard logger.
func NewService(posts Repository, users UserLookup) (*Service, error) {
	return NewServiceWithLogger(posts, users, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
func NewServiceWithLogger(posts Repository, users UserLookup, logger *slog.Logger) (*Service, error) {
	if posts == nil {
		return nil, oops.Errorf("post repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("user lookup is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{posts: posts, users: users, logger: logger, now: time.Now}, nil
}

// Viewer returns a view assembler for one response.
func (s *Service) Viewer() *Viewer {
	return NewViewer(s.users)
}

// List returns the page after cursor. Limits above MaxPageSize are capped
// and non-positive limits are raised to 1.
func (s *Service) List(ctx context.Context, limit int, cursor *Cursor) (*Page, error) {
	realLimit := min(MaxPageSize, max(limit, 1))

	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "count posts").Wrap(err)
	}

	posts, err := s.posts.List(ctx, cursor, realLimit)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "list posts").Wrap(err)
	}

	oldest, err := s.posts.Oldest(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "get oldest post").Wrap(err)
	}

	page := &Page{TotalCount: total, Posts: posts}
	switch {
	case len(posts) > 0:
		page.Cursor = posts[len(posts)-1].Position()
		page.HasMore = oldest != nil && !page.Cursor.Equal(oldest.Position())
	case cursor != nil:
		page.Cursor = *cursor
	default:
		page.Cursor = Cursor{CreatedAt: s.now().UTC()}
	}
	return page, nil
}

// Get retrieves a single post.
func (s *Service) Get(ctx context.Context, id int64) (*Post, error) {
	p, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, oops.With("operation", "get post").With("post_id", id).Wrap(err)
	}
	return p, nil
}

// Create stores a post authored by authorID.
func (s *Service) Create(ctx context.Context, authorID int64, in CreateInput) *Response {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fieldErrs := make([]auth.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fieldErrs = append(fieldErrs, auth.FieldError{Field: jsonField(fe.Field()), Message: "Cannot be empty"})
			}
			return &Response{Code: http.StatusBadRequest, Message: "Invalid " + fieldErrs[0].Field, Errors: fieldErrs}
		}
		return s.internalError(ctx, "create post", err)
	}

	now := s.now().UTC()
	p := &Post{Title: in.Title, Text: in.Text, UserID: authorID, CreatedAt: now, UpdatedAt: now}
	if err := s.posts.Create(ctx, p); err != nil {
		return s.internalError(ctx, "create post", err)
	}

	s.logger.InfoContext(ctx, "post created", "post_id", p.ID, "user_id", authorID)
	return s.ok(ctx, "Post created successfully", p)
}

// Update edits a post owned by authorID. Posts owned by someone else are
// reported as not found.
func (s *Service) Update(ctx context.Context, authorID, id int64, in UpdateInput) *Response {
	p, resp := s.owned(ctx, authorID, id)
	if resp != nil {
		return resp
	}

	if in.Title != "" {
		p.Title = in.Title
	}
	if in.Text != "" {
		p.Text = in.Text
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.posts.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound()
		}
		return s.internalError(ctx, "update post", err)
	}
	return s.ok(ctx, "Post updated successfully", p)
}

// Delete removes a post owned by authorID.
func (s *Service) Delete(ctx context.Context, authorID, id int64) *Response {
	if _, resp := s.owned(ctx, authorID, id); resp != nil {
		return resp
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound()
		}
		return s.internalError(ctx, "delete post", err)
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", id, "user_id", authorID)
	return &Response{Code: http.StatusOK, Success: true, Message: "Post deleted successfully"}
}

func (s *Service) owned(ctx context.Context, authorID, id int64) (*Post, *Response) {
	p, err := s.posts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound()
		}
		return nil, s.internalError(ctx, "get post", err)
	}
	if p.UserID != authorID {
		return nil, notFound()
	}
	return p, nil
}

func (s *Service) ok(ctx context.Context, message string, p *Post) *Response {
	view, err := s.Viewer().View(ctx, p)
	if err != nil {
		return s.internalError(ctx, "view post", err)
	}
	return &Response{Code: http.StatusOK, Success: true, Message: message, Post: view}
}

func notFound() *Response {
	return &Response{Code: http.StatusBadRequest, Message: "Post not found"}
}

func (s *Service) internalError(ctx context.Context, op string, err error) *Response {
	errutil.LogErrorContext(ctx, s.logger, op+" failed", err)
	return &Response{Code: http.StatusInternalServerError, Message: "Internal server error " + err.Error()}
}

func jsonField(name string) string {
	switch name {
	case "Title":
		return "title"
	case "Text":
		return "text"
	default:
		return name
	}
}
