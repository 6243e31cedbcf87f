package api

import (
	"io"
	"net/http"
)

// maxAvatarBytes caps uploaded avatar images.
const maxAvatarBytes = 1 << 20

// handleUploadAvatar stores the raw request body as the active account's
// avatar image. Logout files it away under the account email; a later login
// by the same user gets it back.
func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAvatarBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar image too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body must not be empty")
		return
	}
	if err := s.store.SaveAvatar(data); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleGetAvatar serves the cached avatar image of the active account.
func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	path := s.store.AvatarPath()
	if path == "" {
		writeError(w, http.StatusNotFound, "no avatar cached")
		return
	}
	http.ServeFile(w, r, path)
}
