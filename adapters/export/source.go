// Package export provides ExportSource implementations.
package export

import (
	"context"
	"fmt"
	"os"

	"github.com/layer-3/pairsync/ports"
)

// Static serves a payload held in memory. The slice is copied on creation.
type Static struct {
	payload []byte
}

// NewStatic creates a static source.
func NewStatic(payload []byte) *Static {
	return &Static{payload: append([]byte(nil), payload...)}
}

var _ ports.ExportSource = (*Static)(nil)

// FetchExportPayload implements ports.ExportSource.
func (s *Static) FetchExportPayload(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.payload, nil
}

// File reads the payload from disk when the transfer starts.
type File struct {
	path string
}

// NewFile creates a file-backed source.
func NewFile(path string) *File {
	return &File{path: path}
}

var _ ports.ExportSource = (*File)(nil)

// FetchExportPayload implements ports.ExportSource.
func (f *File) FetchExportPayload(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", f.path, err)
	}
	return payload, nil
}
