package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/store"
)

const defaultConversation = "general"

func conversationParam(r *http.Request) string {
	id := r.URL.Query().Get("conversationId")
	if id == "" {
		id = defaultConversation
	}
	return id
}

// handleList serves GET /messages?conversationId&limit&before.
func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, errs.Validation("malformed limit %q", v))
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, errs.Validation("malformed cursor %q", v))
			return
		}
		opts.Before = n
	}

	messages, err := s.store.List(r.Context(), conversationParam(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type appendRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
	ReplyToID      int64  `json:"replyToId,omitempty"`
}

// handleAppend serves POST /messages. The sender snapshot is captured
// here, once, from the directory; the stored message never re-joins
// against live profile data.
func (s *server) handleAppend(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, errs.Unauthorized("missing claims"))
		return
	}

	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid request body"))
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = defaultConversation
	}

	sender := s.senderSnapshot(r, claims)

	msg, err := s.store.Append(r.Context(), req.ConversationID, sender, req.Text, req.ReplyToID)
	if err != nil {
		writeError(w, err)
		return
	}

	// The commit already happened; a publish failure only degrades
	// liveness and clients recover on their next snapshot.
	if err := s.broker.Publish(r.Context(), model.CreatedEvent(msg)); err != nil {
		logger.Error("publish of created event failed", "id", msg.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (s *server) senderSnapshot(r *http.Request, claims *auth.Claims) model.Sender {
	sender := model.Sender{
		ID:          claims.UserID,
		DisplayName: claims.UserID,
		Handle:      claims.Handle,
	}
	if entry, ok, err := s.directory.Lookup(r.Context(), claims.UserID); err == nil && ok {
		sender.DisplayName = entry.DisplayName
		sender.Handle = entry.Handle
		sender.Automated = entry.Automated
	}
	return sender
}

// handleDelete serves DELETE /messages/{id} and its legacy alias.
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, errs.Unauthorized("missing claims"))
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, errs.Validation("malformed message id"))
		return
	}

	actor := store.Actor{ID: claims.UserID, Handle: claims.Handle, Moderator: claims.Moderator}
	conversationID, err := s.store.Remove(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.broker.Publish(r.Context(), model.DeletedEvent(conversationID, id)); err != nil {
		logger.Error("publish of deleted event failed", "id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// handleLatest serves GET /messages/latest, the lightweight probe the
// client's unread poller hits. 204 when the conversation is empty.
func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	msg, err := s.store.Latest(r.Context(), conversationParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        msg.ID,
		"createdAt": msg.CreatedAt,
	})
}
