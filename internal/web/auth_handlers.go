// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"net/http"

	"github.com/agora-forum/agora/internal/auth"
)

type meResponse struct {
	User *auth.User `json:"user"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type forgotPasswordResponse struct {
	Success bool `json:"success"`
}

type changePasswordRequest struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	NewPassword string `json:"newPassword"`
}

type routeGuardResponse struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.auth.Me(ctx, sessionFrom(ctx))
	if err != nil {
		h.internalError(ctx, w, "me failed", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, meResponse{User: user})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	resp := h.auth.Register(ctx, sessionFrom(ctx), in)
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	resp := h.auth.Login(ctx, sessionFrom(ctx), in)
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ok := h.auth.Logout(ctx, sessionFrom(ctx))
	h.writeJSON(ctx, w, http.StatusOK, logoutResponse{Success: ok})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ForgotPasswordInput
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	ok, err := h.auth.ForgotPassword(ctx, in.Email)
	if err != nil {
		h.internalError(ctx, w, "forgot password failed", err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, forgotPasswordResponse{Success: ok})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if !h.decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	resp := h.auth.ChangePassword(ctx, sessionFrom(ctx), in.Token, in.UserID,
		auth.ChangePasswordInput{NewPassword: in.NewPassword})
	h.writeJSON(ctx, w, resp.Code, resp)
}

func (h *Handler) routeGuard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "path is required")
		return
	}
	redirect, ok := auth.CheckRoute(path, sessionFrom(ctx).Authenticated())
	h.writeJSON(ctx, w, http.StatusOK, routeGuardResponse{Allowed: ok, Redirect: redirect})
}
