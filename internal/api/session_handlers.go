package api

import (
	"errors"
	"net/http"

	"github.com/voxnode/voxclient/internal/session"
	"github.com/voxnode/voxclient/internal/voxnode"
)

// sessionErrStatus maps session manager errors to HTTP status codes. Lifecycle
// conflicts map to 409; everything else is treated as a backend failure.
func sessionErrStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyLoggedIn),
		errors.Is(err, session.ErrLoginInProgress),
		errors.Is(err, session.ErrNotLoggedIn),
		errors.Is(err, voxnode.ErrMissingCredentials):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyNumber):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// loginRequest is the body of POST /api/v1/session/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateEmail("email", req.Email); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("password", req.Password, maxPasswordLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Snapshot())
}
