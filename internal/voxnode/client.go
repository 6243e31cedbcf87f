// Package voxnode implements the HTTP client for the VoxNode REST backend:
// login, caller-ID management, outbound calls and SMS. Requests are
// form-encoded POSTs (getProviders is a plain GET); responses are JSON.
package voxnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrMissingCredentials is returned when a call requiring client credentials
// is attempted without a valid client id and key. No network request is made.
var ErrMissingCredentials = errors.New("voxnode: missing client credentials")

// Credentials identifies an authenticated client to the backend.
type Credentials struct {
	ClientID  int
	ClientKey string
}

// Valid reports whether the credentials can be sent to the backend.
func (c Credentials) Valid() bool {
	return c.ClientID > 0 && c.ClientKey != ""
}

// Client is an HTTP client for the VoxNode backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	providerID int

	// Concurrent identical caller-ID fetches collapse onto one request.
	fetchGroup singleflight.Group
}

// NewClient creates a backend client. baseURL is the API endpoint (e.g.
// "https://api3.voxnode.com"); providerID selects the reseller.
func NewClient(baseURL string, providerID int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		providerID: providerID,
	}
}

// ProviderID returns the reseller id this client was configured with.
func (c *Client) ProviderID() int { return c.providerID }

// GetProviders fetches the list of available provider descriptors.
func (c *Client) GetProviders(ctx context.Context) ([]Provider, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getProviders", nil)
	if err != nil {
		return nil, fmt.Errorf("voxnode: creating request: %w", err)
	}

	var providers []Provider
	if err := c.do(req, "getProviders", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// Login authenticates against the backend. A transport or HTTP failure is
// returned as an error; a rejected login comes back as a LoginResult with
// Status false and the server's message.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	form := url.Values{
		"email":      {email},
		"password":   {password},
		"providerId": {strconv.Itoa(c.providerID)},
	}

	var result LoginResult
	if err := c.postForm(ctx, "login", form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Outbound asks the backend to initiate a call to number presenting cli as
// the caller id.
func (c *Client) Outbound(ctx context.Context, creds Credentials, number, cli string) (*OutboundResult, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	form := url.Values{
		"providerId": {strconv.Itoa(c.providerID)},
		"clientId":   {strconv.Itoa(creds.ClientID)},
		"clientKey":  {creds.ClientKey},
		"number":     {number},
		"cli":        {cli},
	}

	var result OutboundResult
	if err := c.postForm(ctx, "outbound", form, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("voxnode: outbound call rejected: %s", firstNonEmpty(result.Error, result.Message, "unknown error"))
	}
	return &result, nil
}

// GetCallerIDs fetches the caller IDs available to the account. Concurrent
// calls with the same credentials share a single in-flight request.
func (c *Client) GetCallerIDs(ctx context.Context, creds Credentials) ([]CallerID, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}

	key := fmt.Sprintf("getCallerIDs|%d|%d|%s", c.providerID, creds.ClientID, creds.ClientKey)
	v, err, shared := c.fetchGroup.Do(key, func() (any, error) {
		form := url.Values{
			"providerId": {strconv.Itoa(c.providerID)},
			"clientId":   {strconv.Itoa(creds.ClientID)},
			"clientKey":  {creds.ClientKey},
		}
		var ids []CallerID
		if err := c.postForm(ctx, "getCallerIDs", form, &ids); err != nil {
			return nil, err
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("caller id fetch deduplicated", "client_id", creds.ClientID)
	}
	return v.([]CallerID), nil
}

// ChooseCallerID selects the given caller ID as the account's current one.
func (c *Client) ChooseCallerID(ctx context.Context, creds Credentials, callerIDID int) error {
	if !creds.Valid() {
		return ErrMissingCredentials
	}
	form := url.Values{
		"clientId":   {strconv.Itoa(creds.ClientID)},
		"callerIDId": {strconv.Itoa(callerIDID)},
		"clientKey":  {creds.ClientKey},
	}

	var resp BaseResponse
	if err := c.postForm(ctx, "chooseCallerID", form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("voxnode: choose caller id rejected: %s", firstNonEmpty(resp.ErrorMessage(), "unknown error"))
	}
	return nil
}

// AddCallerID registers a new caller ID number for verification.
func (c *Client) AddCallerID(ctx context.Context, creds Credentials, number string) (*CallerID, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	form := url.Values{
		"clientId":  {strconv.Itoa(creds.ClientID)},
		"callerID":  {number},
		"clientKey": {creds.ClientKey},
	}

	var id CallerID
	if err := c.postForm(ctx, "addCallerID", form, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// VerifyCallerID submits the verification code for a pending caller ID.
func (c *Client) VerifyCallerID(ctx context.Context, creds Credentials, callerIDID int, code string) (*VerifyResult, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	form := url.Values{
		"code":       {code},
		"clientId":   {strconv.Itoa(creds.ClientID)},
		"callerIDId": {strconv.Itoa(callerIDID)},
		"clientKey":  {creds.ClientKey},
	}

	var result VerifyResult
	if err := c.postForm(ctx, "verifyCallerID", form, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteCallerID removes a caller ID from the account.
func (c *Client) DeleteCallerID(ctx context.Context, creds Credentials, callerIDID int) error {
	if !creds.Valid() {
		return ErrMissingCredentials
	}
	form := url.Values{
		"clientId":   {strconv.Itoa(creds.ClientID)},
		"callerIDId": {strconv.Itoa(callerIDID)},
		"clientKey":  {creds.ClientKey},
	}

	var resp BaseResponse
	if err := c.postForm(ctx, "deleteCallerID", form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("voxnode: delete caller id rejected: %s", firstNonEmpty(resp.ErrorMessage(), "unknown error"))
	}
	return nil
}

// SendSMS sends a text message to number from the account's caller id.
func (c *Client) SendSMS(ctx context.Context, creds Credentials, number, message string) error {
	if !creds.Valid() {
		return ErrMissingCredentials
	}
	form := url.Values{
		"providerId": {strconv.Itoa(c.providerID)},
		"clientId":   {strconv.Itoa(creds.ClientID)},
		"clientKey":  {creds.ClientKey},
		"number":     {number},
		"message":    {message},
	}

	var resp BaseResponse
	if err := c.postForm(ctx, "sms", form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("voxnode: sms rejected: %s", firstNonEmpty(resp.ErrorMessage(), "unknown error"))
	}
	return nil
}

// postForm sends a form-encoded POST to the named endpoint and decodes the
// JSON response into out.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("voxnode: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, endpoint, out)
}

// do executes the request and decodes the response. Transport failures and
// non-2xx statuses are mapped to error values; there is no structured error
// code taxonomy beyond the server's message text.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	// Correlates client logs with backend request logs.
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("voxnode: %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("voxnode: reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var base BaseResponse
		if json.Unmarshal(body, &base) == nil && base.ErrorMessage() != "" {
			return fmt.Errorf("voxnode: %s returned status %d: %s", endpoint, resp.StatusCode, base.ErrorMessage())
		}
		return fmt.Errorf("voxnode: %s returned status %d", endpoint, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("voxnode: decoding %s response: %w", endpoint, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
