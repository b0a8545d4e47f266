package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	s := NewFileStore(dir)

	a, err := s.Save(context.Background(), "png", strings.NewReader("one"))
	require.NoError(t, err)
	b, err := s.Save(context.Background(), ".png", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, dir, filepath.Dir(a))
	assert.True(t, strings.HasSuffix(a, ".png"))

	data, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileStore(t.TempDir()).Save(ctx, ".png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
