// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agora-forum/agora/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the envelope for transport-level failures.
type errorBody struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errutil.LogErrorContext(ctx, h.logger, "writing response failed", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, errorBody{Code: status, Message: message})
}

// internalError logs err and writes the 500 envelope used by the services.
func (h *Handler) internalError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	errutil.LogErrorContext(ctx, h.logger, msg, err)
	h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error "+err.Error())
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
