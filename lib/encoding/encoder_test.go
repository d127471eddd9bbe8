package encoding

import (
	"errors"
	"strings"
	"testing"
)

func testOptions() map[string]any {
	return map[string]any{
		"title":    "Slides",
		"count":    3,
		"autoplay": true,
		"nested":   map[string]any{"delay": 250},
	}
}

// asInt accepts any integer width msgpack may decode to.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	}
	return 0, false
}

func mustEncoder(t *testing.T, secret string) *Encoder {
	t.Helper()
	enc, err := NewEncoder([]byte(secret))
	if err != nil {
		t.Fatalf("NewEncoder(%q) failed: %v", secret, err)
	}
	return enc
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		name    string
		secret  []byte
		wantErr error
	}{
		{"short", []byte("short"), nil},
		{"long", []byte(strings.Repeat("k", 100)), nil},
		{"empty", nil, ErrEmptyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewEncoder() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSealRoundTrip(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	for _, mode := range []Mode{Signed, Private} {
		t.Run(mode.String(), func(t *testing.T) {
			sealed, err := enc.Seal("z1", testOptions(), mode)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if strings.Contains(sealed, ".") != (mode == Signed) {
				t.Errorf("sealed text %q has wrong shape for %v", sealed, mode)
			}
			if mode == Private && strings.Contains(sealed, "Slides") {
				t.Error("private payload leaks plaintext")
			}

			opened, err := enc.Open("z1", sealed, mode)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if opened["title"] != "Slides" {
				t.Errorf("title = %v, want Slides", opened["title"])
			}
			if opened["autoplay"] != true {
				t.Errorf("autoplay = %v, want true", opened["autoplay"])
			}
			if n, ok := asInt(opened["count"]); !ok || n != 3 {
				t.Errorf("count = %#v, want 3", opened["count"])
			}
			nested, ok := opened["nested"].(map[string]any)
			if n, _ := asInt(nested["delay"]); !ok || n != 250 {
				t.Errorf("nested = %#v", opened["nested"])
			}
		})
	}
}

func TestSealIsBoundToTarget(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	tests := []struct {
		mode Mode
		want error
	}{
		{Signed, ErrSignatureInvalid},
		{Private, ErrDecryptFailed},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			sealed, err := enc.Seal("z1", testOptions(), tt.mode)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if _, err := enc.Open("z2", sealed, tt.mode); !errors.Is(err, tt.want) {
				t.Errorf("Open on another target = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTamperedPayload(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	tests := []struct {
		mode Mode
		want error
	}{
		{Signed, ErrSignatureInvalid},
		{Private, ErrDecryptFailed},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			sealed, err := enc.Seal("z1", testOptions(), tt.mode)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			// The character 10 from the end carries six full bits.
			b := []byte(sealed)
			i := len(b) - 10
			if b[i] == 'A' {
				b[i] = 'B'
			} else {
				b[i] = 'A'
			}
			if _, err := enc.Open("z1", string(b), tt.mode); !errors.Is(err, tt.want) {
				t.Errorf("Open(tampered) = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	tests := []struct {
		name   string
		sealed string
		mode   Mode
	}{
		{"missing separator", "invalidbase64withoutseparator", Signed},
		{"bad base64", "!!!.abc", Signed},
		{"short ciphertext", "c2hvcnQ", Private},
		{"bad ciphertext base64", "!!!", Private},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Open("z1", tt.sealed, tt.mode); !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestDifferentKeysCannotOpen(t *testing.T) {
	sealed, err := mustEncoder(t, "key-one").Seal("z1", testOptions(), Signed)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := mustEncoder(t, "key-two").Open("z1", sealed, Signed); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Open with another key = %v, want ErrSignatureInvalid", err)
	}
}

func TestUnknownMode(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	if _, err := enc.Seal("z1", nil, Mode(7)); err == nil {
		t.Error("Seal with unknown mode should fail")
	}
	if _, err := enc.Open("z1", "x.y", Mode(7)); err == nil {
		t.Error("Open with unknown mode should fail")
	}
	if got := Mode(7).String(); got != "Mode(7)" {
		t.Errorf("String() = %q", got)
	}
}

func TestEmptyOptions(t *testing.T) {
	enc := mustEncoder(t, "test-key")

	sealed, err := enc.Seal("z1", nil, Signed)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	opened, err := enc.Open("z1", sealed, Signed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("Expected empty options, got %v", opened)
	}
}
