package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// avatarDirName is the subdirectory holding cached avatar images.
const avatarDirName = "avatars"

// currentAvatarName is the file name of the active account's avatar.
const currentAvatarName = "current.png"

// SaveAvatar stores the active account's avatar image. Failures are returned
// so the caller can surface them, but they never affect other session state.
func (s *Store) SaveAvatar(data []byte) error {
	dir := filepath.Join(s.dataDir, avatarDirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating avatar directory: %w", err)
	}
	path := filepath.Join(dir, currentAvatarName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing avatar: %w", err)
	}
	return nil
}

// AvatarPath returns the path of the active avatar image, or "" when none is
// cached.
func (s *Store) AvatarPath() string {
	path := filepath.Join(s.dataDir, avatarDirName, currentAvatarName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// RetagAvatar files the active avatar away under the sanitized account email
// instead of deleting it, so a future login by the same user recovers it.
// Called on logout; best-effort.
func (s *Store) RetagAvatar(email string) {
	current := filepath.Join(s.dataDir, avatarDirName, currentAvatarName)
	if _, err := os.Stat(current); err != nil {
		return
	}
	tagged := filepath.Join(s.dataDir, avatarDirName, sanitizeEmail(email)+".png")
	if err := os.Rename(current, tagged); err != nil {
		slog.Error("failed to re-tag avatar", "error", err)
		return
	}
	slog.Debug("avatar re-tagged", "path", tagged)
}

// RestoreAvatar brings back a previously re-tagged avatar for the given email,
// if one exists. Called after login; best-effort.
func (s *Store) RestoreAvatar(email string) {
	tagged := filepath.Join(s.dataDir, avatarDirName, sanitizeEmail(email)+".png")
	if _, err := os.Stat(tagged); err != nil {
		return
	}
	current := filepath.Join(s.dataDir, avatarDirName, currentAvatarName)
	if err := os.Rename(tagged, current); err != nil {
		slog.Error("failed to restore avatar", "error", err)
		return
	}
	slog.Debug("avatar restored", "email", email)
}

// sanitizeEmail maps an email address onto a safe file name.
func sanitizeEmail(email string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(email) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
