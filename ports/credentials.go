package ports

import (
	"context"

	"github.com/layer-3/pairsync/core"
)

// CredentialGenerator issues fresh (channel, key) pairs.
type CredentialGenerator interface {
	Generate(ctx context.Context) (core.Session, error)
}

// ExportSource supplies the payload streamed to the companion.
type ExportSource interface {
	FetchExportPayload(ctx context.Context) ([]byte, error)
}

// ExportFunc adapts a function to ExportSource.
type ExportFunc func(ctx context.Context) ([]byte, error)

// FetchExportPayload implements ExportSource.
func (f ExportFunc) FetchExportPayload(ctx context.Context) ([]byte, error) { return f(ctx) }
