package sipclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/icholy/digest"
)

// defaultExpiry is the registration lifetime requested from the registrar.
const defaultExpiry = 300

// Registrar maintains the SIP registration for the logged-in account. It
// sends REGISTER requests with digest authentication and refreshes the
// registration before it expires.
type Registrar struct {
	ua     *sipgo.UserAgent
	logger *slog.Logger

	mu      sync.RWMutex
	account Account
	state   State
	client  *sipgo.Client
	cancel  context.CancelFunc
}

var _ Provisioner = (*Registrar)(nil)

// NewRegistrar creates a registrar bound to the given user agent.
func NewRegistrar(ua *sipgo.UserAgent, logger *slog.Logger) *Registrar {
	return &Registrar{
		ua:     ua,
		logger: logger.With("subsystem", "sip-registrar"),
		state:  State{Status: StatusUnregistered},
	}
}

// Provision starts (or restarts) the registration loop for the account.
func (r *Registrar) Provision(ctx context.Context, account Account) error {
	r.Remove()

	client, err := sipgo.NewClient(r.ua,
		sipgo.WithClientLogger(r.logger.With("account", account.AOR())),
	)
	if err != nil {
		return fmt.Errorf("sipclient: creating sip client: %w", err)
	}

	// The registration loop outlives the provisioning call; it is tied to the
	// registrar's own lifecycle, not the caller's context.
	loopCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.account = account
	r.client = client
	r.cancel = cancel
	r.state = State{Status: StatusRegistering}
	r.mu.Unlock()

	go r.registrationLoop(loopCtx, account, client)
	return nil
}

// Remove cancels the registration loop, sends a best-effort un-register and
// drops the stored credentials.
func (r *Registrar) Remove() {
	r.mu.Lock()
	client := r.client
	cancel := r.cancel
	account := r.account
	wasRegistered := r.state.Status == StatusRegistered
	r.client = nil
	r.cancel = nil
	r.account = Account{}
	r.state = State{Status: StatusUnregistered}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client == nil {
		return
	}

	if wasRegistered {
		unregCtx, unregCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer unregCancel()
		if _, err := r.sendRegister(unregCtx, account, client, 0); err != nil {
			r.logger.Warn("failed to un-register account", "error", err)
		}
	}

	client.Close()
	r.logger.Info("sip account removed", "account", account.AOR())
}

// State returns a snapshot of the registration state.
func (r *Registrar) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Registrar) registrationLoop(ctx context.Context, account Account, client *sipgo.Client) {
	r.logger.Info("starting sip registration",
		"account", account.AOR(),
		"port", account.Port,
		"transport", account.Transport,
		"expiry", defaultExpiry,
	)

	backoff := newBackoff()

	for {
		grantedExpiry, err := r.sendRegister(ctx, account, client, defaultExpiry)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			retryDelay := backoff.next()
			r.logger.Error("sip registration failed",
				"account", account.AOR(),
				"error", err,
				"attempt", backoff.attempt,
				"retry_in", retryDelay.String(),
			)

			r.mu.Lock()
			r.state.Status = StatusFailed
			r.state.LastError = err.Error()
			r.state.RetryAttempt = backoff.attempt
			r.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
				continue
			}
		}

		backoff.reset()
		now := time.Now()
		expiresAt := now.Add(time.Duration(grantedExpiry) * time.Second)
		r.mu.Lock()
		r.state.Status = StatusRegistered
		r.state.LastError = ""
		r.state.RetryAttempt = 0
		r.state.RegisteredAt = &now
		r.state.ExpiresAt = &expiresAt
		r.mu.Unlock()

		r.logger.Info("sip account registered",
			"account", account.AOR(),
			"expires_in", grantedExpiry,
		)

		// Refresh before expiry; 80% of the granted lifetime leaves room for
		// network delays.
		refreshInterval := time.Duration(float64(grantedExpiry)*0.8) * time.Second

		select {
		case <-ctx.Done():
			return
		case <-time.After(refreshInterval):
			r.logger.Debug("refreshing sip registration", "account", account.AOR())
		}
	}
}

// sendRegister sends a REGISTER with digest auth handling. On success it
// returns the server-granted expiry, which per RFC 3261 §10.2.4 may be
// shorter than requested.
func (r *Registrar) sendRegister(ctx context.Context, account Account, client *sipgo.Client, expiry int) (int, error) {
	recipientStr := fmt.Sprintf("sip:%s:%d", account.Domain, account.Port)
	var recipient sip.Uri
	if err := sip.ParseUri(recipientStr, &recipient); err != nil {
		return 0, fmt.Errorf("parsing recipient uri: %w", err)
	}

	req := sip.NewRequest(sip.REGISTER, recipient)
	req.SetTransport(strings.ToUpper(account.Transport))

	aor := fmt.Sprintf("<sip:%s@%s>", account.Username, account.Domain)
	req.AppendHeader(sip.NewHeader("From", aor))
	req.AppendHeader(sip.NewHeader("To", aor))

	contactURI := fmt.Sprintf("<sip:%s@%s>", account.Username, r.ua.Hostname())
	req.AppendHeader(sip.NewHeader("Contact", contactURI))
	req.AppendHeader(sip.NewHeader("Expires", fmt.Sprintf("%d", expiry)))

	tx, err := client.TransactionRequest(ctx, req, sipgo.ClientRequestRegisterBuild)
	if err != nil {
		return 0, fmt.Errorf("sending register: %w", err)
	}

	res, err := getResponse(ctx, tx)
	tx.Terminate()
	if err != nil {
		return 0, fmt.Errorf("waiting for register response: %w", err)
	}

	// 401/407 carry the digest challenge.
	if res.StatusCode == 401 || res.StatusCode == 407 {
		authHeader := "WWW-Authenticate"
		authzHeader := "Authorization"
		if res.StatusCode == 407 {
			authHeader = "Proxy-Authenticate"
			authzHeader = "Proxy-Authorization"
		}

		wwwAuth := res.GetHeader(authHeader)
		if wwwAuth == nil {
			return 0, fmt.Errorf("received %d but no %s header", res.StatusCode, authHeader)
		}

		chal, err := digest.ParseChallenge(wwwAuth.Value())
		if err != nil {
			return 0, fmt.Errorf("parsing auth challenge: %w", err)
		}

		cred, err := digest.Digest(chal, digest.Options{
			Method:   req.Method.String(),
			URI:      recipientStr,
			Username: account.Username,
			Password: account.Password,
		})
		if err != nil {
			return 0, fmt.Errorf("computing digest: %w", err)
		}

		authReq := req.Clone()
		authReq.RemoveHeader("Via")
		authReq.AppendHeader(sip.NewHeader(authzHeader, cred.String()))

		tx2, err := client.TransactionRequest(ctx, authReq,
			sipgo.ClientRequestIncreaseCSEQ,
			sipgo.ClientRequestAddVia,
		)
		if err != nil {
			return 0, fmt.Errorf("sending authenticated register: %w", err)
		}

		res, err = getResponse(ctx, tx2)
		tx2.Terminate()
		if err != nil {
			return 0, fmt.Errorf("waiting for authenticated register response: %w", err)
		}
	}

	if res.StatusCode != 200 {
		return 0, fmt.Errorf("register failed with status %d %s", res.StatusCode, res.Reason)
	}

	grantedExpiry := expiry
	if contactHdr := res.GetHeader("Contact"); contactHdr != nil {
		if parsed := parseContactExpires(contactHdr.Value()); parsed > 0 {
			grantedExpiry = parsed
		}
	} else if expiresHdr := res.GetHeader("Expires"); expiresHdr != nil {
		if parsed := parseExpiresHeader(expiresHdr.Value()); parsed > 0 {
			grantedExpiry = parsed
		}
	}

	return grantedExpiry, nil
}

// getResponse waits for the first response from a SIP client transaction.
func getResponse(ctx context.Context, tx sip.ClientTransaction) (*sip.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-tx.Done():
		return nil, fmt.Errorf("transaction terminated: %w", tx.Err())
	case res := <-tx.Responses():
		return res, nil
	}
}

// parseContactExpires extracts the expires parameter from a Contact header
// value such as "<sip:user@host>;expires=3600". Returns 0 when absent.
func parseContactExpires(contactValue string) int {
	lower := strings.ToLower(contactValue)
	idx := strings.Index(lower, ";expires=")
	if idx < 0 {
		return 0
	}
	rest := contactValue[idx+len(";expires="):]

	end := strings.IndexAny(rest, ";,> \t")
	if end > 0 {
		rest = rest[:end]
	}

	val, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0
	}
	return val
}

// parseExpiresHeader parses an Expires header value. Returns 0 on failure.
func parseExpiresHeader(value string) int {
	val, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return val
}

// backoff implements exponential backoff with jitter for registration retries.
type backoff struct {
	attempt   int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newBackoff() *backoff {
	return &backoff{
		baseDelay: 5 * time.Second,
		maxDelay:  5 * time.Minute,
	}
}

func (b *backoff) next() time.Duration {
	d := b.current()
	b.attempt++
	return d
}

func (b *backoff) current() time.Duration {
	d := b.baseDelay
	for i := 0; i < b.attempt; i++ {
		d *= 2
		if d > b.maxDelay {
			d = b.maxDelay
			break
		}
	}
	// ±20% jitter keeps repeated failures from synchronizing.
	jitter := float64(d) * 0.2 * (2*rand.Float64() - 1)
	d += time.Duration(jitter)
	if d < 0 {
		d = b.baseDelay
	}
	return d
}

func (b *backoff) reset() {
	b.attempt = 0
}
