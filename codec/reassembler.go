package codec

import "fmt"

// maxPrealloc caps the map hint taken from a peer-supplied chunk count.
const maxPrealloc = 1024

// Reassembler collects chunks of one transfer. Duplicate indexes overwrite,
// so redelivery is harmless. The zero value is ready to use.
type Reassembler struct {
	count    uint32
	received map[uint32][]byte
	size     int
}

// Add records one chunk.
func (r *Reassembler) Add(c Chunk) error {
	if c.Count == 0 || c.Index == 0 || c.Index > c.Count {
		return fmt.Errorf("%w: index %d of %d", ErrOutOfOrder, c.Index, c.Count)
	}
	if r.count == 0 {
		r.count = c.Count
		r.received = make(map[uint32][]byte, min(c.Count, maxPrealloc))
	} else if c.Count != r.count {
		return fmt.Errorf("%w: count %d, transfer has %d", ErrOutOfOrder, c.Count, r.count)
	}

	if prev, ok := r.received[c.Index]; ok {
		r.size -= len(prev)
	}
	data := make([]byte, len(c.Data))
	copy(data, c.Data)
	r.received[c.Index] = data
	r.size += len(data)
	return nil
}

// Count is the chunk count of the transfer, or 0 before the first chunk.
func (r *Reassembler) Count() uint32 { return r.count }

// Received is the number of distinct indexes seen.
func (r *Reassembler) Received() int { return len(r.received) }

// Complete reports whether every index is present.
func (r *Reassembler) Complete() bool {
	return r.count > 0 && len(r.received) == int(r.count)
}

// Progress returns the received fraction in [0, 1].
func (r *Reassembler) Progress() float64 {
	if r.count == 0 {
		return 0
	}
	return float64(len(r.received)) / float64(r.count)
}

// Payload joins the chunks in index order. It fails with ErrIncomplete until
// every index has arrived.
func (r *Reassembler) Payload() ([]byte, error) {
	if !r.Complete() {
		return nil, fmt.Errorf("%w: have %d of %d", ErrIncomplete, len(r.received), r.count)
	}
	out := make([]byte, 0, r.size)
	for i := uint32(1); i <= r.count; i++ {
		out = append(out, r.received[i]...)
	}
	return out, nil
}

// Reset discards all chunks.
func (r *Reassembler) Reset() {
	r.count = 0
	r.received = nil
	r.size = 0
}
