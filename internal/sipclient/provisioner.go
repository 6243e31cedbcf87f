// Package sipclient provisions the account's SIP registration with the
// upstream VoxNode SIP service. The rest of the client treats the SIP engine
// as an external collaborator behind the Provisioner interface; everything
// beyond registration (call setup, media) lives upstream.
package sipclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the registration state of the provisioned account.
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusRegistering  Status = "registering"
	StatusRegistered   Status = "registered"
	StatusFailed       Status = "failed"
)

// Account holds the SIP identity to register.
type Account struct {
	Username  string
	Domain    string
	Port      int
	Transport string
	Password  string
}

// AOR returns the account's address of record.
func (a Account) AOR() string {
	return fmt.Sprintf("sip:%s@%s", a.Username, a.Domain)
}

// State is a snapshot of the registration state.
type State struct {
	Status       Status
	LastError    string
	RetryAttempt int
	RegisteredAt *time.Time
	ExpiresAt    *time.Time
}

// Provisioner is the seam between the session manager and the SIP engine.
type Provisioner interface {
	// Provision registers the account and keeps the registration refreshed
	// until Remove is called. Replaces any previously provisioned account.
	Provision(ctx context.Context, account Account) error
	// Remove un-registers and forgets the account and its credentials.
	Remove()
	// State returns the current registration state.
	State() State
}

// ParseAddress parses a SIP address of the forms "sip:user@host",
// "sip:user@host:port" or "user@host[:port]" into an Account (password left
// empty). The port defaults to 5060, the transport to UDP.
func ParseAddress(address string) (Account, error) {
	s := strings.TrimSpace(address)
	s = strings.TrimPrefix(s, "sips:")
	s = strings.TrimPrefix(s, "sip:")
	if s == "" {
		return Account{}, fmt.Errorf("sipclient: empty sip address")
	}

	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return Account{}, fmt.Errorf("sipclient: invalid sip address %q", address)
	}

	account := Account{
		Username:  s[:at],
		Port:      5060,
		Transport: "udp",
	}

	hostPort := s[at+1:]
	if colon := strings.LastIndex(hostPort, ":"); colon > 0 {
		port, err := strconv.Atoi(hostPort[colon+1:])
		if err != nil || port < 1 || port > 65535 {
			return Account{}, fmt.Errorf("sipclient: invalid port in sip address %q", address)
		}
		account.Domain = hostPort[:colon]
		account.Port = port
	} else {
		account.Domain = hostPort
	}

	if account.Domain == "" {
		return Account{}, fmt.Errorf("sipclient: invalid sip address %q", address)
	}
	return account, nil
}
