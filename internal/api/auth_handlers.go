package api

import (
	"log/slog"
	"net/http"

	mw "github.com/voxnode/voxclient/internal/api/middleware"
)

// tokenRequest is the body of POST /api/v1/auth/token.
type tokenRequest struct {
	Password string `json:"password"`
}

// tokenResponse carries a freshly issued bearer token.
type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// handleToken exchanges the local access password for a bearer token. While
// no access password has been set (first run), tokens are issued freely so
// one can be set.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if s.store.HasAccessPassword() && !s.store.CheckAccessPassword(req.Password) {
		slog.Warn("access token request with wrong password", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, expiresAt, err := mw.GenerateAccessToken(s.jwtSecret)
	if err != nil {
		slog.Error("failed to sign access token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// setPasswordRequest is the body of PUT /api/v1/auth/password.
type setPasswordRequest struct {
	Password string `json:"password"`
}

// handleSetPassword sets or replaces the local access password.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("password", req.Password, maxPasswordLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if len(req.Password) < 4 {
		writeError(w, http.StatusBadRequest, "password must be at least 4 characters")
		return
	}

	if err := s.store.SetAccessPassword(req.Password); err != nil {
		slog.Error("failed to store access password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
