package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/voxnode/voxclient/internal/voxnode"
)

// Preference keys for the quick-access scalars. Sentinel values are "" for
// strings and -1 for integers.
const (
	prefUserEmail          = "user_email"
	prefClientID           = "client_id"
	prefClientKey          = "client_key"
	prefSIPAddress         = "sip_address"
	prefRechargeURL        = "recharge_url"
	prefCurrentCallerID    = "current_caller_id"
	prefCurrentCallerIDID  = "current_caller_id_id"
	prefAccessPasswordHash = "access_password_hash"
)

// SaveLoginResult persists a successful login: the quick-access scalars to the
// preference store and the complete payload to the session JSON file.
func (s *Store) SaveLoginResult(result *voxnode.LoginResult) error {
	if err := s.set(prefUserEmail, result.ClientEmail); err != nil {
		return err
	}
	if err := s.set(prefClientID, strconv.Itoa(result.ClientID)); err != nil {
		return err
	}
	if err := s.set(prefClientKey, result.ClientKey); err != nil {
		return err
	}
	if err := s.set(prefSIPAddress, result.SIPAddress); err != nil {
		return err
	}
	if err := s.set(prefRechargeURL, result.RechargeURL); err != nil {
		return err
	}

	if err := s.writeSessionFile(result); err != nil {
		// The scalar contract is what "logged in" is evaluated from; a failed
		// file write is best-effort and must not roll it back.
		slog.Error("failed to write session file", "error", err)
	}

	slog.Info("login result saved", "client_id", result.ClientID)
	return nil
}

// LoginResult reads the complete session payload from the JSON file. Returns
// nil when the file is missing or unreadable; being logged in is determined by
// IsUserLoggedIn, not by this file.
func (s *Store) LoginResult() *voxnode.LoginResult {
	path := filepath.Join(s.dataDir, sessionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read session file", "error", err)
		}
		return nil
	}

	var result voxnode.LoginResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Error("failed to decode session file", "error", err)
		return nil
	}
	return &result
}

// IsUserLoggedIn reports whether a valid session is persisted, evaluated from
// the quick-access scalars only.
func (s *Store) IsUserLoggedIn() bool {
	return s.ClientID() > 0 && s.UserEmail() != "" && s.ClientKey() != ""
}

// UserEmail returns the persisted account email, or "".
func (s *Store) UserEmail() string { return s.get(prefUserEmail) }

// ClientID returns the persisted client id, or -1.
func (s *Store) ClientID() int { return s.getInt(prefClientID) }

// ClientKey returns the persisted client key, or "".
func (s *Store) ClientKey() string { return s.get(prefClientKey) }

// SIPAddress returns the persisted SIP address, or "".
func (s *Store) SIPAddress() string { return s.get(prefSIPAddress) }

// RechargeURL returns the persisted recharge URL, or "".
func (s *Store) RechargeURL() string { return s.get(prefRechargeURL) }

// Credentials returns the persisted client credentials.
func (s *Store) Credentials() voxnode.Credentials {
	return voxnode.Credentials{
		ClientID:  s.ClientID(),
		ClientKey: s.ClientKey(),
	}
}

// ClearLoginData resets all session scalars to their sentinels (including the
// current caller id) and deletes the session file. This is the complete local
// logout contract. Failures are logged and swallowed; logout is best-effort.
func (s *Store) ClearLoginData() {
	reset := map[string]string{
		prefUserEmail:   "",
		prefClientID:    "-1",
		prefClientKey:   "",
		prefSIPAddress:  "",
		prefRechargeURL: "",
	}
	for key, value := range reset {
		if err := s.set(key, value); err != nil {
			slog.Error("failed to reset preference on logout", "key", key, "error", err)
		}
	}
	s.ClearCurrentCallerID()

	path := filepath.Join(s.dataDir, sessionFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to delete session file", "error", err)
	}

	slog.Info("login data cleared")
}

// SaveCurrentCallerID persists the selected caller id's number and id for
// quick access.
func (s *Store) SaveCurrentCallerID(id int, number string) error {
	if err := s.set(prefCurrentCallerID, number); err != nil {
		return err
	}
	if err := s.set(prefCurrentCallerIDID, strconv.Itoa(id)); err != nil {
		return err
	}
	slog.Debug("current caller id saved", "caller_id_id", id, "number", number)
	return nil
}

// CurrentCallerID returns the persisted selection. id is -1 and number ""
// when nothing is persisted.
func (s *Store) CurrentCallerID() (id int, number string) {
	return s.getInt(prefCurrentCallerIDID), s.get(prefCurrentCallerID)
}

// VerifyCurrentCallerID re-reads the persisted selection from the database
// (bypassing the cache) and compares it with the expected values.
func (s *Store) VerifyCurrentCallerID(expectedID int, expectedNumber string) bool {
	number, err := s.getPersisted(prefCurrentCallerID)
	if err != nil {
		slog.Error("caller id verification read failed", "error", err)
		return false
	}
	idStr, err := s.getPersisted(prefCurrentCallerIDID)
	if err != nil {
		slog.Error("caller id verification read failed", "error", err)
		return false
	}

	match := number == expectedNumber && idStr == strconv.Itoa(expectedID)
	slog.Debug("caller id verification",
		"expected_id", expectedID,
		"expected_number", expectedNumber,
		"stored_id", idStr,
		"stored_number", number,
		"match", match,
	)
	return match
}

// ClearCurrentCallerID resets the persisted selection to sentinels.
func (s *Store) ClearCurrentCallerID() {
	if err := s.set(prefCurrentCallerID, ""); err != nil {
		slog.Error("failed to clear current caller id", "error", err)
	}
	if err := s.set(prefCurrentCallerIDID, "-1"); err != nil {
		slog.Error("failed to clear current caller id id", "error", err)
	}
}

// UpdateBalance rewrites the stored session payload with a new balance.
// No-op when no session file exists.
func (s *Store) UpdateBalance(balance float64) {
	result := s.LoginResult()
	if result == nil {
		slog.Warn("cannot update balance, no stored session")
		return
	}
	result.Balance = balance
	if err := s.writeSessionFile(result); err != nil {
		slog.Error("failed to update stored balance", "error", err)
		return
	}
	slog.Info("stored balance updated", "balance", balance)
}

// writeSessionFile writes the complete login payload as pretty-printed JSON.
func (s *Store) writeSessionFile(result *voxnode.LoginResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session payload: %w", err)
	}
	path := filepath.Join(s.dataDir, sessionFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// getInt returns the cached integer value for key, or -1 when unset or
// unparseable.
func (s *Store) getInt(key string) int {
	raw := s.get(key)
	if raw == "" {
		return -1
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
