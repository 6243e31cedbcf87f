package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxnode/voxclient/internal/config"
	"github.com/voxnode/voxclient/internal/session"
	"github.com/voxnode/voxclient/internal/sipclient"
	"github.com/voxnode/voxclient/internal/store"
	"github.com/voxnode/voxclient/internal/voxnode"
)

type nopProvisioner struct{}

func (nopProvisioner) Provision(ctx context.Context, account sipclient.Account) error { return nil }
func (nopProvisioner) Remove()                                                        {}
func (nopProvisioner) State() sipclient.State {
	return sipclient.State{Status: sipclient.StatusUnregistered}
}

// testJWTSecret is 32 bytes hex-encoded.
const testJWTSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func backendMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(voxnode.LoginResult{
			Status:         true,
			ClientID:       42,
			ClientEmail:    "user@example.com",
			ClientKey:      "secret-key",
			SIPAddress:     "sip:42@sip.voxnode.com",
			SIPPassword:    "sippass",
			ProviderColor1: "#3366CC",
		})
	})
	mux.HandleFunc("/getCallerIDs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]voxnode.CallerID{
			{ID: 7, Number: "+33612345678", Authorized: true, Current: true},
			{ID: 9, Number: "+15559999999", Authorized: false},
		})
	})
	mux.HandleFunc("/outbound", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "callId": "call-1"})
	})
	mux.HandleFunc("/getProviders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]voxnode.Provider{{ID: 1, Name: "voxnode"}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	return mux
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	backend := httptest.NewServer(backendMux(t))
	t.Cleanup(backend.Close)

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := voxnode.NewClient(backend.URL, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(client, st, nopProvisioner{}, nil, logger)

	cfg := &config.Config{JWTSecret: testJWTSecret}
	srv, err := NewServer(cfg, manager, st, client, nil)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// doJSON performs a request against the server and decodes the envelope.
func doJSON(t *testing.T, srv *Server, method, path, token, body string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decoding %s %s response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, env
}

// getToken fetches a bearer token using the given password.
func getToken(t *testing.T, srv *Server, password string) string {
	t.Helper()
	code, env := doJSON(t, srv, http.MethodPost, "/api/v1/auth/token", "", `{"password":"`+password+`"}`)
	if code != http.StatusOK {
		t.Fatalf("token request failed: %d (%s)", code, env.Error)
	}
	data := env.Data.(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("empty token issued")
	}
	return token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	code, env := doJSON(t, srv, http.MethodGet, "/healthz", "", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if data := env.Data.(map[string]any); data["status"] != "ok" {
		t.Errorf("unexpected body: %+v", env)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	code, _ := doJSON(t, srv, http.MethodGet, "/api/v1/session", "", "")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	token := getToken(t, srv, "")
	code, env := doJSON(t, srv, http.MethodGet, "/api/v1/session", token, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d (%s)", code, env.Error)
	}
}

func TestAccessPassword(t *testing.T) {
	srv := newTestServer(t)

	// First run: no password set, token issued freely.
	token := getToken(t, srv, "")

	code, _ := doJSON(t, srv, http.MethodPut, "/api/v1/auth/password", token, `{"password":"hunter2"}`)
	if code != http.StatusOK {
		t.Fatalf("setting password failed: %d", code)
	}

	// Wrong password is rejected now.
	code, _ = doJSON(t, srv, http.MethodPost, "/api/v1/auth/token", "", `{"password":"wrong"}`)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", code)
	}

	// Correct password still works.
	getToken(t, srv, "hunter2")
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	code, env := doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
		`{"email":"user@example.com","password":"hunter2"}`)
	if code != http.StatusOK {
		t.Fatalf("login failed: %d (%s)", code, env.Error)
	}
	snap := env.Data.(map[string]any)
	if snap["state"] != "logged_in" {
		t.Errorf("state = %v", snap["state"])
	}
	if snap["email"] != "user@example.com" {
		t.Errorf("email = %v", snap["email"])
	}
	if snap["currentCallerId"] != "+33612345678" {
		t.Errorf("currentCallerId = %v", snap["currentCallerId"])
	}

	// A second login conflicts.
	code, _ = doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
		`{"email":"user@example.com","password":"hunter2"}`)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for double login, got %d", code)
	}

	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/session/logout", token, "")
	if code != http.StatusOK {
		t.Fatalf("logout failed: %d (%s)", code, env.Error)
	}
	if snap := env.Data.(map[string]any); snap["state"] != "logged_out" {
		t.Errorf("state after logout = %v", snap["state"])
	}
}

func TestChooseCallerIDAuthorization(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	if code, env := doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
		`{"email":"user@example.com","password":"hunter2"}`); code != http.StatusOK {
		t.Fatalf("login failed: %d (%s)", code, env.Error)
	}

	// Entry 9 exists but is not authorized.
	code, env := doJSON(t, srv, http.MethodPost, "/api/v1/callerids/9/choose", token, "")
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for unauthorized entry, got %d (%s)", code, env.Error)
	}

	// Unknown entry.
	code, _ = doJSON(t, srv, http.MethodPost, "/api/v1/callerids/555/choose", token, "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", code)
	}

	// Authorized entry is accepted.
	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/callerids/7/choose", token, "")
	if code != http.StatusOK {
		t.Fatalf("choose failed: %d (%s)", code, env.Error)
	}
}

func TestDialSurfacesEmptyNumber(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	if code, env := doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
		`{"email":"user@example.com","password":"hunter2"}`); code != http.StatusOK {
		t.Fatalf("login failed: %d (%s)", code, env.Error)
	}

	// Spaces pass character validation but normalize to nothing.
	code, env := doJSON(t, srv, http.MethodPost, "/api/v1/calls/dial", token, `{"number":"   "}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank number, got %d", code)
	}
	if !strings.Contains(env.Error, "no number") {
		t.Errorf("error = %q", env.Error)
	}

	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/calls/dial", token, `{"number":"0033612345678"}`)
	if code != http.StatusOK {
		t.Fatalf("dial failed: %d (%s)", code, env.Error)
	}
	if result := env.Data.(map[string]any); result["callId"] != "call-1" {
		t.Errorf("callId = %v", result["callId"])
	}
}

func TestDialerEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	code, env := doJSON(t, srv, http.MethodPost, "/api/v1/dialer/paste", token, `{"text":"0033 612-345-678"}`)
	if code != http.StatusOK {
		t.Fatalf("paste failed: %d (%s)", code, env.Error)
	}
	state := env.Data.(map[string]any)
	if state["raw"] != "+33612345678" {
		t.Errorf("raw = %v", state["raw"])
	}
	if state["display"] != "+33 612345678" {
		t.Errorf("display = %v", state["display"])
	}
	if state["countryCode"] != "33" {
		t.Errorf("countryCode = %v", state["countryCode"])
	}
	if state["flagEmoji"] != "\U0001F1EB\U0001F1F7" {
		t.Errorf("flagEmoji = %v", state["flagEmoji"])
	}
	if state["callEnabled"] != true {
		t.Errorf("callEnabled = %v", state["callEnabled"])
	}

	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/dialer/backspace", token, "")
	if code != http.StatusOK {
		t.Fatalf("backspace failed: %d", code)
	}
	if state := env.Data.(map[string]any); state["raw"] != "+3361234567" {
		t.Errorf("raw after backspace = %v", state["raw"])
	}

	// Invalid symbols are ignored, not errors.
	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/dialer/keys", token, `{"symbol":"x"}`)
	if code != http.StatusOK {
		t.Fatalf("key press failed: %d", code)
	}
	if state := env.Data.(map[string]any); state["raw"] != "+3361234567" {
		t.Errorf("raw after invalid key = %v", state["raw"])
	}

	code, env = doJSON(t, srv, http.MethodPost, "/api/v1/dialer/clear", token, "")
	if code != http.StatusOK {
		t.Fatalf("clear failed: %d", code)
	}
	state = env.Data.(map[string]any)
	if state["raw"] != "" || state["callEnabled"] != false {
		t.Errorf("state after clear = %+v", state)
	}
}

func TestThemeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	// No session and no explicit color: nothing to derive from.
	code, _ := doJSON(t, srv, http.MethodGet, "/api/v1/theme", token, "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 without a color source, got %d", code)
	}

	code, env := doJSON(t, srv, http.MethodGet, "/api/v1/theme?color=FF0000", token, "")
	if code != http.StatusOK {
		t.Fatalf("theme failed: %d (%s)", code, env.Error)
	}
	palette := env.Data.(map[string]any)
	if palette["base"] != "#FF0000" {
		t.Errorf("base = %v", palette["base"])
	}
	if palette["shade700"] == "" || palette["shade100"] == "" {
		t.Errorf("incomplete palette: %+v", palette)
	}

	code, _ = doJSON(t, srv, http.MethodGet, "/api/v1/theme?color=red", token, "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid color, got %d", code)
	}

	// After login the provider color is the fallback.
	if code, env := doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
		`{"email":"user@example.com","password":"hunter2"}`); code != http.StatusOK {
		t.Fatalf("login failed: %d (%s)", code, env.Error)
	}
	code, env = doJSON(t, srv, http.MethodGet, "/api/v1/theme", token, "")
	if code != http.StatusOK {
		t.Fatalf("theme after login failed: %d (%s)", code, env.Error)
	}
	if palette := env.Data.(map[string]any); palette["base"] != "#3366CC" {
		t.Errorf("base = %v", palette["base"])
	}
}

func TestAvatarRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")
	image := "not-really-a-png"

	login := func() {
		t.Helper()
		if code, env := doJSON(t, srv, http.MethodPost, "/api/v1/session/login", token,
			`{"email":"user@example.com","password":"hunter2"}`); code != http.StatusOK {
			t.Fatalf("login failed: %d (%s)", code, env.Error)
		}
	}
	getAvatar := func() (int, string) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/avatar", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec.Code, rec.Body.String()
	}

	// Nothing cached yet.
	if code, _ := getAvatar(); code != http.StatusNotFound {
		t.Fatalf("expected 404 before upload, got %d", code)
	}

	login()
	if code, env := doJSON(t, srv, http.MethodPut, "/api/v1/avatar", token, image); code != http.StatusOK {
		t.Fatalf("upload failed: %d (%s)", code, env.Error)
	}
	if code, body := getAvatar(); code != http.StatusOK || body != image {
		t.Fatalf("avatar after upload = %d %q", code, body)
	}

	// Logout files the avatar away under the account email.
	if code, _ := doJSON(t, srv, http.MethodPost, "/api/v1/session/logout", token, ""); code != http.StatusOK {
		t.Fatalf("logout failed: %d", code)
	}
	if code, _ := getAvatar(); code != http.StatusNotFound {
		t.Fatalf("expected 404 after logout, got %d", code)
	}

	// A fresh login by the same user gets it back.
	login()
	if code, body := getAvatar(); code != http.StatusOK || body != image {
		t.Fatalf("avatar after re-login = %d %q", code, body)
	}

	// An empty upload is rejected.
	if code, _ := doJSON(t, srv, http.MethodPut, "/api/v1/avatar", token, ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty upload, got %d", code)
	}
}

func TestProvidersEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := getToken(t, srv, "")

	code, env := doJSON(t, srv, http.MethodGet, "/api/v1/providers", token, "")
	if code != http.StatusOK {
		t.Fatalf("providers failed: %d (%s)", code, env.Error)
	}
	providers := env.Data.([]any)
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
}
