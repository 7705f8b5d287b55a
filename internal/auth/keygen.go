// Package auth issues and verifies Portalo dashboard API keys.
package auth

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"regexp"
	"strings"

	"github.com/portalo/portalo/internal/model"
)

// Key layout:
//
//	ptl_<env>_<prefix>_<secret><checksum>
//	ptl_live_7a9f3c01_mfrggzdfmztwq2lknnwg23tpobyxe43u0c4f9e2a
//
// prefix is 8 hex chars used for lookup, secret is 32 lowercase base32
// chars, checksum is the CRC-32 (IEEE) of everything before it in hex.
const (
	keyScheme    = "ptl"
	prefixBytes  = 4
	secretBytes  = 20
	checksumLen  = 8
	KeyPrefixLen = prefixBytes * 2
)

var (
	// ErrInvalidKeyFormat indicates the key does not have the ptl_ layout.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// ErrKeyChecksum indicates a well-formed key whose checksum does not match,
	// which is almost always a copy/paste error.
	ErrKeyChecksum = errors.New("API key checksum mismatch")

	keyPattern = regexp.MustCompile(`^ptl_(live|test)_([0-9a-f]{8})_([a-z2-7]{32})([0-9a-f]{8})$`)

	secretEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
)

// GeneratedKey is a freshly minted key. Plaintext is shown to the user once;
// only Hash and Prefix are persisted.
type GeneratedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
	Env       string
}

// GenerateAPIKey mints a key for env (model.KeyEnvLive or model.KeyEnvTest).
func GenerateAPIKey(env string) (*GeneratedKey, error) {
	if env != model.KeyEnvLive && env != model.KeyEnvTest {
		return nil, fmt.Errorf("unknown key environment %q", env)
	}

	raw := make([]byte, prefixBytes+secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	prefix := hex.EncodeToString(raw[:prefixBytes])
	secret := secretEncoding.EncodeToString(raw[prefixBytes:])

	body := fmt.Sprintf("%s_%s_%s_%s", keyScheme, env, prefix, secret)
	plaintext := body + checksum(body)

	hash, err := HashKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &GeneratedKey{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    prefix,
		Env:       env,
	}, nil
}

// ParsedKey is the public part of a presented key.
type ParsedKey struct {
	Env    string
	Prefix string
}

// ParseAPIKey checks layout and checksum of a presented key.
func ParseAPIKey(key string) (*ParsedKey, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return nil, ErrInvalidKeyFormat
	}
	if body := strings.TrimSuffix(key, m[4]); checksum(body) != m[4] {
		return nil, ErrKeyChecksum
	}
	return &ParsedKey{Env: m[1], Prefix: m[2]}, nil
}

func checksum(body string) string {
	return fmt.Sprintf("%0*x", checksumLen, crc32.ChecksumIEEE([]byte(body)))
}
