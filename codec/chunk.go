// Package codec splits transfer payloads into size-bounded chunks and
// reassembles them. It has no network or timer dependencies.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when a chunk index in 1..count is missing.
	ErrIncomplete = errors.New("chunk set incomplete")
	// ErrOutOfOrder is returned for an index outside 1..count or a chunk
	// whose count disagrees with the rest of the transfer.
	ErrOutOfOrder = errors.New("chunk out of order")
	// ErrInvalidChunkSize is returned when the chunk size bound is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Chunk is one fragment of a payload. Index is 1-based.
type Chunk struct {
	Index uint32
	Count uint32
	Data  []byte
}

// Split cuts payload into ceil(len/maxChunkSize) chunks. An empty payload
// yields a single empty chunk so the receiver always sees a terminal fragment.
// Chunk data aliases payload.
func Split(payload []byte, maxChunkSize int) ([]Chunk, error) {
	if maxChunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	count := (len(payload) + maxChunkSize - 1) / maxChunkSize
	if count == 0 {
		return []Chunk{{Index: 1, Count: 1, Data: []byte{}}}, nil
	}
	if uint64(count) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("payload of %d bytes needs too many chunks", len(payload))
	}

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * maxChunkSize
		end := min(start+maxChunkSize, len(payload))
		chunks = append(chunks, Chunk{
			Index: uint32(i + 1),
			Count: uint32(count),
			Data:  payload[start:end],
		})
	}
	return chunks, nil
}

// Reassemble joins a full chunk set received in any order.
func Reassemble(chunks []Chunk) ([]byte, error) {
	var r Reassembler
	for _, c := range chunks {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r.Payload()
}
