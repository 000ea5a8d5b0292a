// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agora-forum/agora/internal/post"
)

type postResponse struct {
	Post *post.View `json:"post"`
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := post.MaxPageSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	cursor, err := post.ParseCursor(q.Get("cursor"), q.Get("cursorId"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid cursor")
		return
	}

	page, err := h.posts.List(ctx, limit, cursor)
	if err != nil {
		h.internalError(ctx, w, "listing posts failed", err)
		return
	}

	view, err := h.posts.Viewer().Page(ctx, page)
	if err != nil {
		h.internalError(ctx, w, "listing posts failed", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	p, err := h.posts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			h.writeJSON(ctx, w, http.StatusNotFound, postResponse{})
			return
		}
		h.internalError(ctx, w, "getting post failed", err)
		return
	}

	view, err := h.posts.Viewer().View(ctx, p)
	if err != nil {
		h.internalError(ctx, w, "getting post failed", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, postResponse{Post: view})
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var in post.CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	resp := h.posts.Create(ctx, *sessionFrom(ctx).UserID, in)
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	var in post.UpdateInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	resp := h.posts.Update(ctx, *sessionFrom(ctx).UserID, id, in)
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	resp := h.posts.Delete(ctx, *sessionFrom(ctx).UserID, id)
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(r.Context(), w, http.StatusBadRequest, "Invalid post id")
		return 0, false
	}
	return id, true
}
