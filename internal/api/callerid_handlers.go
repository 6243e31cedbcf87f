package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voxnode/voxclient/internal/voxnode"
)

// callerIDParam extracts and parses the {id} route parameter.
func callerIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListCallerIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.CallerIDs(r.Context())
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleRefreshCallerIDs(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RefreshCallerIDs(r.Context()); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	ids, err := s.sessions.CallerIDs(r.Context())
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// addCallerIDRequest is the body of POST /api/v1/callerids.
type addCallerIDRequest struct {
	Number string `json:"number"`
}

func (s *Server) handleAddCallerID(w http.ResponseWriter, r *http.Request) {
	var req addCallerIDRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNumber("number", req.Number); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	added, err := s.sessions.AddCallerID(r.Context(), req.Number)
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// handleChooseCallerID selects a caller id as the current one. Only entries
// the backend has marked authorized may be chosen.
func (s *Server) handleChooseCallerID(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller id")
		return
	}

	ids, err := s.sessions.CallerIDs(r.Context())
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}

	var entry *voxnode.CallerID
	for i := range ids {
		if ids[i].ID == id {
			entry = &ids[i]
			break
		}
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "caller id not found")
		return
	}
	if !entry.Authorized.Bool() {
		writeError(w, http.StatusForbidden, "caller id is not authorized")
		return
	}

	if err := s.sessions.ChooseCallerID(r.Context(), *entry); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// verifyCallerIDRequest is the body of POST /api/v1/callerids/{id}/verify.
type verifyCallerIDRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerifyCallerID(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller id")
		return
	}

	var req verifyCallerIDRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("code", req.Code, 16); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	result, err := s.sessions.VerifyCallerID(r.Context(), id, req.Code)
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteCallerID(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller id")
		return
	}

	if err := s.sessions.DeleteCallerID(r.Context(), id); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
