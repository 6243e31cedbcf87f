// Package session owns the authenticated VoxNode session: the login/logout
// state machine, the persisted identity, and the caller-ID selection protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxnode/voxclient/internal/dialer"
	"github.com/voxnode/voxclient/internal/metrics"
	"github.com/voxnode/voxclient/internal/sipclient"
	"github.com/voxnode/voxclient/internal/store"
	"github.com/voxnode/voxclient/internal/voxnode"
)

// State names the session lifecycle stage.
type State string

const (
	StateLoggedOut State = "logged_out"
	StateLoggingIn State = "logging_in"
	StateLoggedIn  State = "logged_in"
)

var (
	// ErrAlreadyLoggedIn is returned by Login when a session is active.
	ErrAlreadyLoggedIn = errors.New("session: already logged in")
	// ErrLoginInProgress is returned by Login while another login is running.
	ErrLoginInProgress = errors.New("session: login already in progress")
	// ErrNotLoggedIn is returned by operations that need an active session.
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrEmptyNumber is returned by Dial when the input normalizes to nothing.
	ErrEmptyNumber = errors.New("session: no number to dial")
)

// notAvailable is surfaced as the caller-id display when nothing is known.
const notAvailable = "Not available"

// Manager coordinates the VoxNode backend, the local store and the SIP
// provisioner. All methods are safe for concurrent use; mutations are
// serialized on one mutex and state updates are full-value replacements.
type Manager struct {
	client   *voxnode.Client
	store    *store.Store
	sip      sipclient.Provisioner
	counters *metrics.Counters
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	callerIDs     []voxnode.CallerID
	callerDisplay string
}

// NewManager creates a session manager. counters may be nil.
func NewManager(client *voxnode.Client, st *store.Store, sip sipclient.Provisioner, counters *metrics.Counters, logger *slog.Logger) *Manager {
	m := &Manager{
		client:   client,
		store:    st,
		sip:      sip,
		counters: counters,
		logger:   logger.With("subsystem", "session"),
		state:    StateLoggedOut,
	}
	if st.IsUserLoggedIn() {
		m.state = StateLoggedIn
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Resume re-provisions a persisted session after a restart: the stored
// caller-id selection is surfaced immediately and the SIP account is
// registered again. The caller-ID list refresh runs in the background.
func (m *Manager) Resume(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateLoggedIn {
		m.mu.Unlock()
		return
	}

	// Optimistic display from the quick-access store.
	if _, number := m.store.CurrentCallerID(); number != "" {
		m.callerDisplay = number
	}
	result := m.store.LoginResult()
	m.mu.Unlock()

	if result != nil {
		m.provisionSIP(ctx, result)
	}

	m.logger.Info("session resumed", "email", m.store.UserEmail())

	go func() {
		if err := m.RefreshCallerIDs(context.Background()); err != nil {
			m.logger.Warn("background caller id refresh failed", "error", err)
		}
	}()
}

// Login authenticates with the backend, persists the session, provisions the
// SIP account and refreshes the caller-ID list. A rejected login leaves
// nothing persisted.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	switch m.state {
	case StateLoggedIn:
		m.mu.Unlock()
		return ErrAlreadyLoggedIn
	case StateLoggingIn:
		m.mu.Unlock()
		return ErrLoginInProgress
	}
	m.state = StateLoggingIn
	m.mu.Unlock()

	if m.counters != nil {
		m.counters.LoginAttempts.Add(1)
	}

	fail := func(err error) error {
		m.mu.Lock()
		m.state = StateLoggedOut
		m.mu.Unlock()
		if m.counters != nil {
			m.counters.LoginFailures.Add(1)
		}
		return err
	}

	result, err := m.client.Login(ctx, email, password)
	if err != nil {
		return fail(err)
	}
	if !result.Status {
		msg := result.Message
		if msg == "" {
			msg = "login rejected"
		}
		return fail(fmt.Errorf("session: login failed: %s", msg))
	}

	if err := m.store.SaveLoginResult(result); err != nil {
		return fail(fmt.Errorf("session: persisting login: %w", err))
	}
	m.store.RestoreAvatar(result.ClientEmail)

	m.provisionSIP(ctx, result)

	m.mu.Lock()
	m.state = StateLoggedIn
	// Optimistic display until the fetch below lands.
	if _, number := m.store.CurrentCallerID(); number != "" {
		m.callerDisplay = number
	}
	m.mu.Unlock()

	m.logger.Info("logged in", "email", result.ClientEmail, "client_id", result.ClientID)

	// A failed fetch must not fail the login; the fallback policy applies.
	if err := m.RefreshCallerIDs(ctx); err != nil {
		m.logger.Warn("caller id fetch after login failed", "error", err)
	}
	return nil
}

// Logout tears the session down: the SIP account and its credentials are
// removed from the engine, the persisted scalars are reset (current caller id
// included), the session file is deleted, and the cached avatar is re-tagged
// by sanitized email rather than deleted.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLoggedIn {
		return ErrNotLoggedIn
	}

	email := m.store.UserEmail()

	m.sip.Remove()
	m.store.RetagAvatar(email)
	m.store.ClearLoginData()

	m.state = StateLoggedOut
	m.callerIDs = nil
	m.callerDisplay = ""

	m.logger.Info("logged out", "email", email)
	return nil
}

// CallerIDs returns the cached caller-ID list, fetching it first if the cache
// is empty.
func (m *Manager) CallerIDs(ctx context.Context) ([]voxnode.CallerID, error) {
	m.mu.Lock()
	if m.callerIDs != nil {
		out := make([]voxnode.CallerID, len(m.callerIDs))
		copy(out, m.callerIDs)
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	if err := m.RefreshCallerIDs(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]voxnode.CallerID, len(m.callerIDs))
	copy(out, m.callerIDs)
	return out, nil
}

// CurrentCallerIDDisplay returns what the settings surface should show for
// the current caller id.
func (m *Manager) CurrentCallerIDDisplay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callerDisplay != "" {
		return m.callerDisplay
	}
	if _, number := m.store.CurrentCallerID(); number != "" {
		return number
	}
	return notAvailable
}

// RefreshCallerIDs fetches the caller-ID list and applies the selection
// policy: the server-flagged current entry wins, then the first entry, and an
// empty list leaves the prior selection untouched. The chosen selection is
// persisted. On fetch failure the display falls back to the raw SIP address
// and the persisted selection is not altered.
func (m *Manager) RefreshCallerIDs(ctx context.Context) error {
	if !m.store.IsUserLoggedIn() {
		return ErrNotLoggedIn
	}

	if m.counters != nil {
		m.counters.CallerIDFetches.Add(1)
	}

	ids, err := m.client.GetCallerIDs(ctx, m.store.Credentials())
	if err != nil {
		m.mu.Lock()
		if sipAddr := m.store.SIPAddress(); sipAddr != "" {
			m.callerDisplay = sipAddr
		} else {
			m.callerDisplay = notAvailable
		}
		m.mu.Unlock()
		return err
	}

	m.logger.Debug("caller ids fetched", "count", len(ids))

	var selected *voxnode.CallerID
	for i := range ids {
		if ids[i].Selected() {
			selected = &ids[i]
			break
		}
	}
	if selected == nil && len(ids) > 0 {
		selected = &ids[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callerIDs = ids

	if selected == nil {
		// Empty list: leave the prior value (or "Not available") untouched.
		if m.callerDisplay == "" {
			m.callerDisplay = notAvailable
		}
		return nil
	}

	if err := m.store.SaveCurrentCallerID(selected.ID, selected.Number); err != nil {
		m.logger.Error("failed to persist caller id selection", "error", err)
	}
	m.callerDisplay = selected.Number
	return nil
}

// ChooseCallerID selects the given entry remotely, persists it locally and
// verifies the write by reading it back, retrying the local write exactly
// once on mismatch. A remote failure leaves local state unchanged.
// Authorization of the entry is enforced by the presenting surface.
func (m *Manager) ChooseCallerID(ctx context.Context, callerID voxnode.CallerID) error {
	if !m.store.IsUserLoggedIn() {
		return ErrNotLoggedIn
	}

	if err := m.client.ChooseCallerID(ctx, m.store.Credentials(), callerID.ID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SaveCurrentCallerID(callerID.ID, callerID.Number); err != nil {
		m.logger.Error("failed to persist chosen caller id", "error", err)
	}
	if !m.store.VerifyCurrentCallerID(callerID.ID, callerID.Number) {
		m.logger.Warn("caller id persistence verification failed, retrying once",
			"caller_id_id", callerID.ID,
		)
		if err := m.store.SaveCurrentCallerID(callerID.ID, callerID.Number); err != nil {
			m.logger.Error("caller id persistence retry failed", "error", err)
		}
	}

	// Replace the cache wholesale rather than flipping flags in place; copies
	// handed out by CallerIDs may still alias the old backing array.
	if len(m.callerIDs) > 0 {
		updated := make([]voxnode.CallerID, len(m.callerIDs))
		copy(updated, m.callerIDs)
		for i := range updated {
			updated[i].Current = voxnode.IntBool(updated[i].ID == callerID.ID)
		}
		m.callerIDs = updated
	}
	m.callerDisplay = callerID.Number

	m.logger.Info("caller id chosen", "caller_id_id", callerID.ID, "number", callerID.Number)
	return nil
}

// AddCallerID registers a new caller-id number for verification and refreshes
// the cached list.
func (m *Manager) AddCallerID(ctx context.Context, number string) (*voxnode.CallerID, error) {
	if !m.store.IsUserLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	added, err := m.client.AddCallerID(ctx, m.store.Credentials(), number)
	if err != nil {
		return nil, err
	}
	if err := m.RefreshCallerIDs(ctx); err != nil {
		m.logger.Warn("caller id refresh after add failed", "error", err)
	}
	return added, nil
}

// VerifyCallerID submits a verification code for a pending caller id.
func (m *Manager) VerifyCallerID(ctx context.Context, callerIDID int, code string) (*voxnode.VerifyResult, error) {
	if !m.store.IsUserLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	result, err := m.client.VerifyCallerID(ctx, m.store.Credentials(), callerIDID, code)
	if err != nil {
		return nil, err
	}
	if result.Verified {
		if err := m.RefreshCallerIDs(ctx); err != nil {
			m.logger.Warn("caller id refresh after verify failed", "error", err)
		}
	}
	return result, nil
}

// DeleteCallerID removes a caller id from the account and refreshes the
// cached list.
func (m *Manager) DeleteCallerID(ctx context.Context, callerIDID int) error {
	if !m.store.IsUserLoggedIn() {
		return ErrNotLoggedIn
	}
	if err := m.client.DeleteCallerID(ctx, m.store.Credentials(), callerIDID); err != nil {
		return err
	}
	if err := m.RefreshCallerIDs(ctx); err != nil {
		m.logger.Warn("caller id refresh after delete failed", "error", err)
	}
	return nil
}

// Dial normalizes the raw input and asks the backend to initiate an outbound
// call presenting the current caller id. An input that normalizes to nothing
// is rejected with ErrEmptyNumber.
func (m *Manager) Dial(ctx context.Context, rawNumber string) (*voxnode.OutboundResult, error) {
	if !m.store.IsUserLoggedIn() {
		return nil, ErrNotLoggedIn
	}

	number := dialer.Normalize(rawNumber)
	if number == "" {
		return nil, ErrEmptyNumber
	}

	_, cli := m.store.CurrentCallerID()
	if cli == "" {
		cli = m.store.SIPAddress()
	}

	result, err := m.client.Outbound(ctx, m.store.Credentials(), number, cli)
	if err != nil {
		return nil, err
	}
	if m.counters != nil {
		m.counters.OutboundCalls.Add(1)
	}
	if result.Cost > 0 {
		if stored := m.store.LoginResult(); stored != nil {
			m.store.UpdateBalance(stored.Balance - result.Cost)
		}
	}
	m.logger.Info("outbound call initiated", "number", number, "call_id", result.CallID)
	return result, nil
}

// SendSMS sends a text message through the backend.
func (m *Manager) SendSMS(ctx context.Context, number, message string) error {
	if !m.store.IsUserLoggedIn() {
		return ErrNotLoggedIn
	}
	if err := m.client.SendSMS(ctx, m.store.Credentials(), number, message); err != nil {
		return err
	}
	if m.counters != nil {
		m.counters.SMSSent.Add(1)
	}
	return nil
}

// LoggedIn reports whether the session is active. Used by the metrics
// collector.
func (m *Manager) LoggedIn() bool {
	return m.State() == StateLoggedIn
}

// Snapshot is a copy of the observable session state for the control API.
type Snapshot struct {
	State            State           `json:"state"`
	Email            string          `json:"email,omitempty"`
	SIPAddress       string          `json:"sipAddress,omitempty"`
	RechargeURL      string          `json:"rechargeUrl,omitempty"`
	Balance          float64         `json:"balance"`
	SMSEnabled       bool            `json:"smsEnabled"`
	BalanceEnabled   bool            `json:"balanceEnabled"`
	InboundEnabled   bool            `json:"inboundEnabled"`
	OutboundEnabled  bool            `json:"outboundEnabled"`
	RecordingEnabled bool            `json:"recordingEnabled"`
	CurrentCallerID  string          `json:"currentCallerId"`
	ProviderColor1   string          `json:"providerColor1,omitempty"`
	ProviderColor2   string          `json:"providerColor2,omitempty"`
	ProviderLogoURL  string          `json:"providerLogoUrl,omitempty"`
	Registration     sipclient.State `json:"registration"`
}

// Snapshot returns the observable session state.
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{
		State:           m.State(),
		CurrentCallerID: m.CurrentCallerIDDisplay(),
		Registration:    m.sip.State(),
	}
	if snap.State != StateLoggedIn {
		return snap
	}

	snap.Email = m.store.UserEmail()
	snap.SIPAddress = m.store.SIPAddress()
	snap.RechargeURL = m.store.RechargeURL()

	if result := m.store.LoginResult(); result != nil {
		snap.Balance = result.Balance
		snap.SMSEnabled = result.SMSEnabled.Bool()
		snap.BalanceEnabled = result.BalanceEnabled.Bool()
		snap.InboundEnabled = result.InboundEnabled.Bool()
		snap.OutboundEnabled = result.OutboundEnabled.Bool()
		snap.RecordingEnabled = result.RecordingEnabled.Bool()
		snap.ProviderColor1 = result.ProviderColor1
		snap.ProviderColor2 = result.ProviderColor2
		snap.ProviderLogoURL = result.ProviderLogoURL
	}
	return snap
}

// provisionSIP hands the session's SIP identity to the engine. Failures are
// logged; registration keeps retrying on its own once provisioned.
func (m *Manager) provisionSIP(ctx context.Context, result *voxnode.LoginResult) {
	if result.SIPAddress == "" {
		m.logger.Warn("no sip address in login result, skipping provisioning")
		return
	}
	account, err := sipclient.ParseAddress(result.SIPAddress)
	if err != nil {
		m.logger.Error("unparseable sip address", "address", result.SIPAddress, "error", err)
		return
	}
	account.Password = result.SIPPassword
	if err := m.sip.Provision(ctx, account); err != nil {
		m.logger.Error("sip provisioning failed", "error", err)
	}
}
