package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// KeySize is the length in bytes of a session key.
const KeySize = 32

// DefaultScheme prefixes bootstrap codes.
const DefaultScheme = "walletsync"

// bootstrapSeparator splits channel and key in a bootstrap code.
const bootstrapSeparator = "|@|"

// Key is the symmetric secret shared out of band. It is never published on
// the relay in the clear.
type Key [KeySize]byte

// ParseKey decodes the unpadded base64url form produced by Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// String returns the key as unpadded base64url, which never contains the
// bootstrap delimiters.
func (k Key) String() string {
	return base64.RawURLEncoding.EncodeToString(k[:])
}

// Equal reports whether two keys hold the same bytes.
func (k Key) Equal(other Key) bool {
	return bytes.Equal(k[:], other[:])
}

// Session is one pairing attempt: the relay channel, its key and when it was
// issued. Sessions are values; replacing credentials produces a new Session.
type Session struct {
	Channel   string
	Key       Key
	CreatedAt time.Time
}

// NewSession builds a session value.
func NewSession(channel string, key Key, createdAt time.Time) Session {
	return Session{
		Channel:   channel,
		Key:       key,
		CreatedAt: createdAt,
	}
}

// SameCredentials reports whether both sessions carry the same channel and key.
func (s Session) SameCredentials(other Session) bool {
	return s.Channel == other.Channel && s.Key.Equal(other.Key)
}

// BootstrapCode renders the out-of-band code scanned by the companion:
// "<scheme>:<channel>|@|<key>".
func (s Session) BootstrapCode(scheme string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + ":" + s.Channel + bootstrapSeparator + s.Key.String()
}

// ParseBootstrap is the inverse of BootstrapCode. It returns the scheme and a
// session whose CreatedAt is left zero.
func ParseBootstrap(code string) (string, Session, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(code), ":")
	if !ok || scheme == "" {
		return "", Session{}, fmt.Errorf("%w: missing scheme", ErrInvalidBootstrap)
	}
	channel, rawKey, ok := strings.Cut(rest, bootstrapSeparator)
	if !ok || channel == "" || rawKey == "" {
		return "", Session{}, fmt.Errorf("%w: missing channel or key", ErrInvalidBootstrap)
	}
	key, err := ParseKey(rawKey)
	if err != nil {
		return "", Session{}, fmt.Errorf("%w: %v", ErrInvalidBootstrap, err)
	}
	return scheme, Session{Channel: channel, Key: key}, nil
}
