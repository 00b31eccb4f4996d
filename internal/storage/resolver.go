package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"reader-backend/internal/store"
)

// Resolver looks up file references in the _files table.
type Resolver struct {
	store *store.Store
}

func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// ResolveByReference returns the file a reference points to, or nil when the
// reference is empty, malformed or unknown.
func (r *Resolver) ResolveByReference(ctx context.Context, ref string) (*File, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(ref); err != nil && r.store.Dialect.Name() == "postgres" {
		// Postgres rejects non-UUID input for the id column.
		return nil, nil
	}

	pb := r.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, r.store.DB,
		fmt.Sprintf("SELECT id, filename, storage_path, mime_type, size, width, height, meta FROM _files WHERE id = %s", pb.Add(ref)),
		pb.Params()...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", ref, err)
	}
	return fileFromRow(row), nil
}

func fileFromRow(row map[string]any) *File {
	f := &File{
		ID:       fmt.Sprint(row["id"]),
		Filename: asString(row["filename"]),
		Path:     asString(row["storage_path"]),
		MimeType: asString(row["mime_type"]),
		Size:     asInt64(row["size"]),
		Width:    int(asInt64(row["width"])),
		Height:   int(asInt64(row["height"])),
	}
	if meta := asString(row["meta"]); meta != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(meta), &m); err == nil {
			f.Meta = m
		}
	}
	return f
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
