package middleware

// authEnvelope matches the api package's response envelope for error payloads.
// Defined here to avoid importing the api package (circular dependency).
type authEnvelope struct {
	Error string `json:"error,omitempty"`
}
