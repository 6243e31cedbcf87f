package api

import (
	"net/http"

	"github.com/voxnode/voxclient/internal/theme"
)

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.client.GetProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// themeResponse carries the derived branding palette as hex strings.
type themeResponse struct {
	Base            string `json:"base"`
	Shade100        string `json:"shade100"`
	Shade100Alpha50 string `json:"shade100Alpha50"`
	Shade300        string `json:"shade300"`
	Shade500        string `json:"shade500"`
	Shade700        string `json:"shade700"`
}

// handleTheme derives the branding palette. The base color comes from the
// ?color query parameter, falling back to the logged-in provider's primary
// color.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("color")
	if base == "" {
		base = s.sessions.Snapshot().ProviderColor1
	}
	if base == "" {
		writeError(w, http.StatusNotFound, "no provider color available")
		return
	}
	if !theme.IsValidHex(base) {
		writeError(w, http.StatusBadRequest, "color must be a 6-digit hex value")
		return
	}

	palette := theme.PaletteFromHex(base)
	if palette == nil {
		writeError(w, http.StatusBadRequest, "color must be a 6-digit hex value")
		return
	}

	writeJSON(w, http.StatusOK, themeResponse{
		Base:            palette.Shade500.Hex(),
		Shade100:        palette.Shade100.Hex(),
		Shade100Alpha50: palette.Shade100Alpha50.HexRGBA(),
		Shade300:        palette.Shade300.Hex(),
		Shade500:        palette.Shade500.Hex(),
		Shade700:        palette.Shade700.Hex(),
	})
}
