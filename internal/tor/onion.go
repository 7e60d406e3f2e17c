package tor

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the top-level domain of onion services.
const OnionSuffix = ".onion"

// onionV3Version is the version byte of v3 onion addresses.
const onionV3Version = 0x03

// onionV3Pattern matches 56 base32 characters followed by .onion.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// checksumPrefix is the prefix of the v3 address checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is on the .onion TLD. Subdomains of an
// onion service count too.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// IsValidV3Address reports whether address is a v3 onion address with a
// correct checksum. Subdomains are not accepted here.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	// 32 byte ed25519 key, 2 byte checksum, 1 byte version
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

// CheckSeed rejects seeds that cannot be crawled with the current
// connection setup: onion seeds without a proxy, and onion hosts that are
// not valid v3 addresses. Clearnet seeds always pass.
func CheckSeed(seed string, proxied bool) error {
	u, err := url.Parse(seed)
	if err != nil {
		return err
	}
	host := u.Hostname()
	if !IsOnionHost(host) {
		return nil
	}
	if !proxied {
		return fmt.Errorf("%w: %s", ErrOnionNeedsProxy, seed)
	}

	// Only the last two labels form the service address.
	labels := strings.Split(strings.ToLower(host), ".")
	service := strings.Join(labels[max(0, len(labels)-2):], ".")
	if !IsValidV3Address(service) {
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
	return nil
}
