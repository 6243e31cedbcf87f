package voxnode

import (
	"bytes"
	"encoding/json"
)

// IntBool decodes the backend's integer feature flags. The wire value 1 means
// enabled; 0, null, a missing field, or anything unrecognized means disabled.
// Decoding never fails.
type IntBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *IntBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "1", "true", `"1"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

// MarshalJSON implements json.Marshaler, re-encoding as 0/1.
func (b IntBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Bool returns the flag as a plain bool.
func (b IntBool) Bool() bool { return bool(b) }

// Provider describes a VoIP reseller returned by getProviders.
type Provider struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	DisplayName       string            `json:"displayName"`
	Description       string            `json:"description"`
	LogoURL           string            `json:"logoUrl"`
	IsActive          bool              `json:"isActive"`
	SupportedFeatures []string          `json:"supportedFeatures"`
	Settings          *ProviderSettings `json:"settings"`
}

// ProviderSettings holds the SIP connection parameters a provider advertises.
type ProviderSettings struct {
	Domain    string `json:"domain"`
	Port      int    `json:"port"`
	Transport string `json:"transport"`
	Codec     string `json:"codec"`
}

// LoginResult is the login response payload. Feature flags arrive as 0/1
// integers; absent fields default to disabled.
type LoginResult struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`

	ClientID    int    `json:"clientId"`
	ClientEmail string `json:"clientEmail"`
	ClientKey   string `json:"clientKey"`

	SMSEnabled       IntBool `json:"clientSmsEnabled"`
	BalanceEnabled   IntBool `json:"clientBalanceEnabled"`
	InboundEnabled   IntBool `json:"clientInboundEnabled"`
	OutboundEnabled  IntBool `json:"clientOutboundEnabled"`
	RecordingEnabled IntBool `json:"clientRecordingEnabled"`

	Balance     float64 `json:"clientBalance"`
	SIPAddress  string  `json:"clientSipAddress"`
	SIPPassword string  `json:"clientSipPassword"`
	RechargeURL string  `json:"urlRecharge"`

	ProviderID      int    `json:"providerId"`
	ProviderColor1  string `json:"providerColor1"`
	ProviderColor2  string `json:"providerColor2"`
	ProviderLogoURL string `json:"providerLogoUrl"`
}

// CallerID is a phone number the client may present as the origin of
// outbound calls and SMS.
type CallerID struct {
	ID         int     `json:"callerIDId"`
	Number     string  `json:"callerID"`
	Authorized IntBool `json:"authorized"`
	Current    IntBool `json:"isCurrentCallerID"`
	Status     bool    `json:"status"`
	Message    string  `json:"message"`
}

// Selected reports whether the server flagged this entry as the current one.
func (c CallerID) Selected() bool { return c.Current.Bool() }

// BaseResponse is the generic success/error payload shared by several endpoints.
type BaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ErrorMessage returns the most specific error text the server provided.
func (r BaseResponse) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// OutboundResult is the response to a call-initiation request.
type OutboundResult struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	Error    string  `json:"error"`
	CallID   string  `json:"callId"`
	Status   string  `json:"status"`
	Duration int     `json:"duration"`
	Cost     float64 `json:"cost"`
}

// VerifyResult is the response to a caller-ID verification attempt.
type VerifyResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Error    string    `json:"error"`
	Verified bool      `json:"verified"`
	CallerID *CallerID `json:"callerId"`
}

var _ json.Unmarshaler = (*IntBool)(nil)
