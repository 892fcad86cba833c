package codec

import (
	"errors"
	"fmt"
)

// ErrChunkTooLarge is returned when a chunk size override would exceed the
// relay ceiling once encoded.
var ErrChunkTooLarge = errors.New("chunk size exceeds relay budget")

const (
	// DefaultCeiling is the relay's hard message size limit in bytes.
	DefaultCeiling = 32 * 1024
	// DefaultOverhead reserves room for envelope metadata and sealing.
	DefaultOverhead = 512
)

// Budget describes how much of a relay message a chunk may occupy.
//
// Chunk bytes travel base64-encoded inside the JSON envelope, so every three
// payload bytes cost four bytes on the wire. Overhead covers everything else:
// the envelope fields, AEAD framing and any transport headers.
type Budget struct {
	Ceiling  int
	Overhead int
}

// DefaultBudget matches a 32 KiB relay with generous headroom.
func DefaultBudget() Budget {
	return Budget{Ceiling: DefaultCeiling, Overhead: DefaultOverhead}
}

// MaxChunkSize returns the largest raw chunk whose encoded message stays
// within the ceiling.
func (b Budget) MaxChunkSize() (int, error) {
	room := b.Ceiling - b.Overhead
	if b.Ceiling <= 0 || b.Overhead < 0 || room < 4 {
		return 0, fmt.Errorf("budget leaves no room for data (ceiling %d, overhead %d)", b.Ceiling, b.Overhead)
	}
	return room / 4 * 3, nil
}

// ChunkSize resolves the chunk bound: override when positive, otherwise the
// budget maximum. An override above the maximum is rejected.
func (b Budget) ChunkSize(override int) (int, error) {
	limit, err := b.MaxChunkSize()
	if err != nil {
		return 0, err
	}
	if override <= 0 {
		return limit, nil
	}
	if override > limit {
		return 0, fmt.Errorf("%w: %d > %d", ErrChunkTooLarge, override, limit)
	}
	return override, nil
}

// EncodedSize is the wire size of a chunk of n raw bytes under this budget.
func (b Budget) EncodedSize(n int) int {
	return (n+2)/3*4 + b.Overhead
}
