// Package crypto seals relay payloads for one pairing session.
//
// The relay only ever sees sealed frames. A frame is
//
//	[version (1 byte)][nonce (24 bytes)][XChaCha20-Poly1305 ciphertext + tag]
//
// and the AEAD key is derived with HKDF-SHA256 from the session key, salted
// with the channel name, so the same key never seals traffic for two channels.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/layer-3/pairsync/core"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	frameVersion = 1
	hkdfInfo     = "pairsync relay v1"
)

// FrameOverhead is the number of bytes a sealed frame adds to its plaintext.
const FrameOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// ErrOpenFailed is returned for frames that fail authentication, were sealed
// for another session, or are malformed.
var ErrOpenFailed = errors.New("failed to open sealed frame")

// Box seals and opens frames for one session.
type Box struct {
	aead    cipher.AEAD
	channel []byte
}

// NewBox derives the session's AEAD key.
func NewBox(session core.Session) (*Box, error) {
	kdf := hkdf.New(sha256.New, session.Key[:], []byte(session.Channel), []byte(hkdfInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive relay key: %w", err)
	}
	defer Wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Box{aead: aead, channel: []byte(session.Channel)}, nil
}

// Seal encrypts plaintext into a frame. The channel name is bound as
// associated data.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 1, FrameOverhead+len(plaintext))
	out[0] = frameVersion
	out = append(out, nonce...)
	return b.aead.Seal(out, nonce, plaintext, b.channel), nil
}

// Open authenticates and decrypts a frame.
func (b *Box) Open(frame []byte) ([]byte, error) {
	if len(frame) < FrameOverhead {
		return nil, fmt.Errorf("%w: frame too short", ErrOpenFailed)
	}
	if frame[0] != frameVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrOpenFailed, frame[0])
	}
	nonce := frame[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := b.aead.Open(nil, nonce, frame[1+chacha20poly1305.NonceSizeX:], b.channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return plaintext, nil
}
