package api

import (
	"net/http"

	"github.com/voxnode/voxclient/internal/dialer"
)

// dialerStateResponse is the JSON shape of the keypad state.
type dialerStateResponse struct {
	Raw           string `json:"raw"`
	Display       string `json:"display"`
	CountryCode   string `json:"countryCode"`
	FlagEmoji     string `json:"flagEmoji"`
	CallEnabled   bool   `json:"callEnabled"`
	DeleteEnabled bool   `json:"deleteEnabled"`
}

func dialerResponse(st *dialer.State) dialerStateResponse {
	return dialerStateResponse{
		Raw:           st.Raw,
		Display:       st.Display,
		CountryCode:   st.CountryCode,
		FlagEmoji:     st.FlagEmoji,
		CallEnabled:   st.CallEnabled(),
		DeleteEnabled: st.DeleteEnabled(),
	}
}

func (s *Server) handleDialerState(w http.ResponseWriter, r *http.Request) {
	s.dialMu.Lock()
	resp := dialerResponse(s.dialState)
	s.dialMu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// dialerKeyRequest is the body of POST /api/v1/dialer/keys.
type dialerKeyRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleDialerKey(w http.ResponseWriter, r *http.Request) {
	var req dialerKeyRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if len(req.Symbol) != 1 {
		writeError(w, http.StatusBadRequest, "symbol must be a single keypad character")
		return
	}

	s.dialMu.Lock()
	// Out-of-range and invalid symbols are dropped silently, like a keypad
	// that stops registering presses.
	s.dialState.AppendSymbol(req.Symbol)
	resp := dialerResponse(s.dialState)
	s.dialMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDialerBackspace(w http.ResponseWriter, r *http.Request) {
	s.dialMu.Lock()
	s.dialState.DeleteLast()
	resp := dialerResponse(s.dialState)
	s.dialMu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDialerClear(w http.ResponseWriter, r *http.Request) {
	s.dialMu.Lock()
	s.dialState.Clear()
	resp := dialerResponse(s.dialState)
	s.dialMu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// dialerPasteRequest is the body of POST /api/v1/dialer/paste.
type dialerPasteRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleDialerPaste(w http.ResponseWriter, r *http.Request) {
	var req dialerPasteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateStringLen("text", req.Text, 256); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	s.dialMu.Lock()
	s.dialState.SetFromPaste(req.Text)
	resp := dialerResponse(s.dialState)
	s.dialMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}
