package secretprovider_test

import (
	"strings"
	"testing"

	"github.com/radialgames/salessync/secretprovider"
)

func testProvider(t *testing.T) *secretprovider.Provider {
	t.Helper()
	p, err := secretprovider.New("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	p := testProvider(t)

	blob, err := p.Encrypt("sk-super-secret-key")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plaintext, err := p.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "sk-super-secret-key" {
		t.Fatalf("expected round-trip plaintext, got %q", plaintext)
	}
}

func TestDecryptTamperedBlobFails(t *testing.T) {
	p := testProvider(t)

	blob, err := p.Encrypt("sk-super-secret-key")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip a character in the ciphertext portion.
	parts := strings.Split(blob, ":")
	last := parts[len(parts)-1]
	tampered := append([]byte(last[:len(last)-2]), '0', '0')
	parts[len(parts)-1] = string(tampered)
	tamperedBlob := strings.Join(parts, ":")

	if _, err := p.Decrypt(tamperedBlob); err != secretprovider.ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecryptMalformedBlobFails(t *testing.T) {
	p := testProvider(t)
	if _, err := p.Decrypt("not-a-valid-blob"); err != secretprovider.ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecryptAcceptsLegacyUnversionedFraming(t *testing.T) {
	p := testProvider(t)

	blob, err := p.Encrypt("legacy-secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	// Strip the "v1:" prefix to simulate legacy data.
	legacy := strings.TrimPrefix(blob, "v1:")

	plaintext, err := p.Decrypt(legacy)
	if err != nil {
		t.Fatalf("Decrypt legacy blob: %v", err)
	}
	if plaintext != "legacy-secret" {
		t.Fatalf("expected legacy round-trip, got %q", plaintext)
	}
}

func TestShortHash(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"sk-abcdef1234", 4, "1234"},
		{"ab", 4, "ab"},
		{"", 4, ""},
	}
	for _, c := range cases {
		if got := secretprovider.ShortHash(c.in, c.n); got != c.want {
			t.Errorf("ShortHash(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

func TestRequireKeyInProduction(t *testing.T) {
	if err := secretprovider.RequireKeyInProduction(""); err == nil {
		t.Fatal("expected error for empty key in production")
	}
	if err := secretprovider.RequireKeyInProduction("somekey"); err != nil {
		t.Fatalf("expected no error for non-empty key, got %v", err)
	}
}
