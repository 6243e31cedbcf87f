package sipclient

import (
	"testing"
	"time"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Account
		wantErr bool
	}{
		{
			name:  "sip scheme",
			input: "sip:42@sip.voxnode.com",
			want:  Account{Username: "42", Domain: "sip.voxnode.com", Port: 5060, Transport: "udp"},
		},
		{
			name:  "with port",
			input: "sip:42@sip.voxnode.com:5080",
			want:  Account{Username: "42", Domain: "sip.voxnode.com", Port: 5080, Transport: "udp"},
		},
		{
			name:  "no scheme",
			input: "alice@example.com",
			want:  Account{Username: "alice", Domain: "example.com", Port: 5060, Transport: "udp"},
		},
		{
			name:  "sips scheme",
			input: "sips:bob@secure.example.com",
			want:  Account{Username: "bob", Domain: "secure.example.com", Port: 5060, Transport: "udp"},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "no at sign", input: "sip:example.com", wantErr: true},
		{name: "missing user", input: "sip:@example.com", wantErr: true},
		{name: "missing host", input: "sip:42@", wantErr: true},
		{name: "bad port", input: "sip:42@example.com:notaport", wantErr: true},
		{name: "port out of range", input: "sip:42@example.com:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAccountAOR(t *testing.T) {
	a := Account{Username: "42", Domain: "sip.voxnode.com"}
	if got := a.AOR(); got != "sip:42@sip.voxnode.com" {
		t.Errorf("AOR = %q", got)
	}
}

func TestParseContactExpires(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{input: "<sip:42@1.2.3.4>;expires=3600", want: 3600},
		{input: "<sip:42@1.2.3.4>;EXPIRES=120", want: 120},
		{input: "<sip:42@1.2.3.4>;expires=60;q=0.5", want: 60},
		{input: "<sip:42@1.2.3.4>", want: 0},
		{input: "<sip:42@1.2.3.4>;expires=abc", want: 0},
	}

	for _, tt := range tests {
		if got := parseContactExpires(tt.input); got != tt.want {
			t.Errorf("parseContactExpires(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseExpiresHeader(t *testing.T) {
	if got := parseExpiresHeader(" 300 "); got != 300 {
		t.Errorf("got %d, want 300", got)
	}
	if got := parseExpiresHeader("bogus"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestBackoff(t *testing.T) {
	b := newBackoff()

	prev := time.Duration(0)
	for i := 0; i < 5; i++ {
		d := b.next()
		if d <= 0 {
			t.Fatalf("backoff returned non-positive delay: %v", d)
		}
		// Delays grow (jitter allows ±20%, so compare against 70% of prev).
		if prev > 0 && float64(d) < float64(prev)*0.7 {
			t.Errorf("delay shrank too much: %v after %v", d, prev)
		}
		prev = d
	}

	// Must never exceed max plus jitter headroom.
	for i := 0; i < 20; i++ {
		if d := b.next(); d > 6*time.Minute {
			t.Fatalf("delay above cap: %v", d)
		}
	}

	b.reset()
	if d := b.current(); d > 7*time.Second {
		t.Errorf("reset did not restore base delay: %v", d)
	}
}
