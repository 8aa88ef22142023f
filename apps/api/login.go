package main

import (
	"encoding/json"
	"net/http"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/errs"
)

type loginRequest struct {
	UserID string `json:"user_id"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin mints a token for a known directory user. Production
// deployments front this with the real identity provider; the endpoint
// exists so development and the CLI client can authenticate.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Validation("invalid request body"))
		return
	}
	if req.UserID == "" {
		writeError(w, errs.Validation("user_id is required"))
		return
	}

	handle := req.UserID
	if entry, ok, err := s.directory.Lookup(r.Context(), req.UserID); err == nil && ok {
		handle = entry.Handle
	}
	moderator := false
	for _, m := range s.cfg.Moderators {
		if m == req.UserID {
			moderator = true
		}
	}

	token, err := auth.GenerateToken(req.UserID, handle, moderator)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
