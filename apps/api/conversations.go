package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/errs"
)

// handleUnread serves GET /conversations/unread?ids=a,b - the
// low-frequency fallback that surfaces unread indicators for
// conversations the viewer is not looking at.
func (s *server) handleUnread(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, errs.Unauthorized("missing claims"))
		return
	}
	if s.tracker == nil {
		writeError(w, errs.Validation("unread tracking is not configured"))
		return
	}

	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	result, err := s.tracker.Unread(r.Context(), claims.UserID, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type markReadRequest struct {
	ConversationID string    `json:"conversationId"`
	At             time.Time `json:"at,omitempty"`
}

// handleMarkRead serves POST /conversations/read, persisting the
// viewer's watermark. A zero "at" means now.
func (s *server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, errs.Unauthorized("missing claims"))
		return
	}
	if s.tracker == nil {
		writeError(w, errs.Validation("unread tracking is not configured"))
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid request body"))
		return
	}
	if req.ConversationID == "" {
		writeError(w, errs.Validation("conversationId is required"))
		return
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}

	if err := s.tracker.MarkRead(r.Context(), claims.UserID, req.ConversationID, req.At); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
