// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package post

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// View is a post as presented to clients, with derived fields computed at
// response time.
type View struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	TextSnippet string     `json:"textSnippet"`
	UserID      int64      `json:"userId"`
	User        *auth.User `json:"user"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PageView is a Page as presented to clients.
type PageView struct {
	TotalCount     int64     `json:"totalCount"`
	Cursor         time.Time `json:"cursor"`
	CursorID       int64     `json:"cursorId"`
	HasMore        bool      `json:"hasMore"`
	PaginatedPosts []*View   `json:"paginatedPosts"`
}

// Snippet returns the first SnippetLength characters of text.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength])
}

// UserLookup resolves post authors.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*auth.User, error)
}

// Viewer assembles views. Authors are looked up once per Viewer.
type Viewer struct {
	users UserLookup
	cache map[int64]*auth.User
}

// NewViewer creates a Viewer for one response.
func NewViewer(users UserLookup) *Viewer {
	return &Viewer{users: users, cache: make(map[int64]*auth.User)}
}

// View builds the client view of a post. A missing author yields a nil User.
func (v *Viewer) View(ctx context.Context, p *Post) (*View, error) {
	author, ok := v.cache[p.UserID]
	if !ok {
		u, err := v.users.GetByID(ctx, p.UserID)
		if err != nil && !errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("POST_AUTHOR_LOOKUP_FAILED").
				With("post_id", p.ID).
				With("user_id", p.UserID).
				Wrap(err)
		}
		author = u
		v.cache[p.UserID] = author
	}
	return &View{
		ID:          p.ID,
		Title:       p.Title,
		Text:        p.Text,
		TextSnippet: Snippet(p.Text),
		UserID:      p.UserID,
		User:        author,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// Page builds the client view of a page.
func (v *Viewer) Page(ctx context.Context, page *Page) (*PageView, error) {
	views := make([]*View, 0, len(page.Posts))
	for _, p := range page.Posts {
		view, err := v.View(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return &PageView{
		TotalCount:     page.TotalCount,
		Cursor:         page.Cursor.CreatedAt,
		CursorID:       page.Cursor.ID,
		HasMore:        page.HasMore,
		PaginatedPosts: views,
	}, nil
}
