package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/store"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	path, err := s.Save(ctx, "f1", "../../photo.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("f1", "photo.jpg"), path)

	rc, err := s.Open(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Open(ctx, path)
	assert.Error(t, err)
}

func TestLocalStorageStaysInBase(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	full, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, filepath.Clean(s.basePath)))
}

func TestResolverLooksUpFiles(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "files.db"), 0)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Bootstrap(ctx))

	_, err = st.Seed(ctx, &store.SeedFile{Files: []store.FileSeed{{
		ID: "img-1", Filename: "john.jpg", StoragePath: "img-1/john.jpg", MimeType: "image/jpeg",
		Width: 300, Height: 200, Meta: map[string]any{"alt": "John"},
	}}})
	require.NoError(t, err)

	r := NewResolver(st)
	f, err := r.ResolveByReference(ctx, "img-1")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "img-1/john.jpg", f.Path)
	assert.Equal(t, 300, f.Width)
	assert.Equal(t, "John", f.Meta["alt"])

	f, err = r.ResolveByReference(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = r.ResolveByReference(ctx, "  ")
	require.NoError(t, err)
	assert.Nil(t, f)
}
