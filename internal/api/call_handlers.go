package api

import (
	"net/http"
)

// dialRequest is the body of POST /api/v1/calls/dial.
type dialRequest struct {
	Number string `json:"number"`
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	var req dialRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNumber("number", req.Number); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	result, err := s.sessions.Dial(r.Context(), req.Number)
	if err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// smsRequest is the body of POST /api/v1/sms.
type smsRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNumber("number", req.Number); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("message", req.Message, maxMessageLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateNoControlChars("message", req.Message); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := s.sessions.SendSMS(r.Context(), req.Number, req.Message); err != nil {
		writeError(w, sessionErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
