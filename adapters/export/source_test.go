package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCopiesPayload(t *testing.T) {
	in := []byte("secret")
	s := NewStatic(in)
	in[0] = 'X'

	got, err := s.FetchExportPayload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts":[]}`), 0o600))

	got, err := NewFile(path).FetchExportPayload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"accounts":[]}`, string(got))

	_, err = NewFile(filepath.Join(t.TempDir(), "missing")).FetchExportPayload(context.Background())
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStatic(nil).FetchExportPayload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
