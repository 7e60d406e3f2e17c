package tor

import (
	"encoding/base32"
	"errors"
	"strings"
	"testing"
)

// v3Address builds a valid v3 address from a 32 byte key.
func v3Address(t *testing.T, fill byte) string {
	t.Helper()

	pubkey := make([]byte, 32)
	for i := range pubkey {
		pubkey[i] = fill
	}
	data := append(append(append([]byte{}, pubkey...), v3Checksum(pubkey, onionV3Version)...), onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix
}

func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	valid := v3Address(t, 0x42)
	corrupted := []byte(valid)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "valid", address: valid, want: true},
		{name: "uppercase", address: strings.ToUpper(valid), want: true},
		{name: "bad checksum", address: string(corrupted), want: false},
		{name: "v2 address", address: "facebookcorewwwi.onion", want: false},
		{name: "too long", address: strings.Repeat("a", 57) + ".onion", want: false},
		{name: "missing suffix", address: strings.TrimSuffix(valid, OnionSuffix), want: false},
		{name: "invalid characters", address: strings.Repeat("1", 56) + ".onion", want: false},
		{name: "subdomain", address: "www." + valid, want: false},
		{name: "empty", address: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidV3Address(tt.address); got != tt.want {
				t.Errorf("IsValidV3Address(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"example.onion":     true,
		"www.example.ONION": true,
		"example.com":       false,
		"onion.example.com": false,
		"":                  false,
	}
	for host, want := range tests {
		if got := IsOnionHost(host); got != want {
			t.Errorf("IsOnionHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestCheckSeed(t *testing.T) {
	t.Parallel()

	onion := v3Address(t, 0x07)

	tests := []struct {
		name    string
		seed    string
		proxied bool
		wantErr error
	}{
		{name: "clearnet direct", seed: "https://example.com/", proxied: false},
		{name: "clearnet proxied", seed: "https://example.com/", proxied: true},
		{name: "onion proxied", seed: "http://" + onion + "/", proxied: true},
		{name: "onion subdomain proxied", seed: "http://www." + onion + "/", proxied: true},
		{name: "onion direct", seed: "http://" + onion + "/", proxied: false, wantErr: ErrOnionNeedsProxy},
		{name: "v2 onion", seed: "http://facebookcorewwwi.onion/", proxied: true, wantErr: ErrInvalidOnionAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckSeed(tt.seed, tt.proxied)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
