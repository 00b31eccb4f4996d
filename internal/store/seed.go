package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"reader-backend/internal/metadata"
)

// SeedFile is the YAML document accepted by Seed. Definitions use the same
// field names as the stored JSON definitions.
type SeedFile struct {
	Containers    []ContainerSeed          `json:"containers"`
	ReaderConfigs []*metadata.ReaderConfig `json:"reader_configs"`
	Modules       []*metadata.Module       `json:"modules"`
	Filters       []*metadata.Filter       `json:"filters"`
	Pages         []*metadata.Page         `json:"pages"`
	Files         []FileSeed               `json:"files"`
}

// ContainerSeed is a container definition plus optional content rows.
type ContainerSeed struct {
	metadata.Entity
	Rows         []map[string]any `json:"rows,omitempty"`
	Translations []map[string]any `json:"translations,omitempty"`
}

type FileSeed struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	StoragePath string         `json:"storage_path"`
	MimeType    string         `json:"mime_type"`
	Size        int64          `json:"size"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Meta        map[string]any `json:"meta"`
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Containers    int
	Rows          int
	ReaderConfigs int
	Elements      int
	Modules       int
	Filters       int
	Pages         int
	Files         int
}

// ParseSeed decodes a YAML seed document. YAML is decoded generically and
// re-encoded as JSON so the metadata JSON tags apply.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var generic map[string]any
	if err := yaml.NewDecoder(r).Decode(&generic); err != nil {
		if errors.Is(err, io.EOF) {
			return &SeedFile{}, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode seed: %w", err)
	}
	var sf SeedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &sf, nil
}

// SeedFromFile reads and applies a YAML seed file.
func (s *Store) SeedFromFile(ctx context.Context, path string) (*SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	sf, err := ParseSeed(f)
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, sf)
}

// Seed writes all definitions, replacing existing ones with the same key,
// creates container tables and inserts content rows. Rows that already
// exist are skipped.
func (s *Store) Seed(ctx context.Context, sf *SeedFile) (*SeedResult, error) {
	res := &SeedResult{}
	migrator := NewMigrator(s)

	for i := range sf.Containers {
		c := &sf.Containers[i]
		if c.Name == "" || c.Table == "" {
			return nil, fmt.Errorf("container %d: name and table are required", i+1)
		}
		if c.PrimaryKey.Field == "" {
			c.PrimaryKey.Field = "id"
		}
		if err := s.upsertDefinition(ctx, "_containers", "name", c.Name,
			map[string]any{"table_name": c.Table}, c.Entity); err != nil {
			return nil, fmt.Errorf("container %s: %w", c.Name, err)
		}
		if err := migrator.Migrate(ctx, &c.Entity); err != nil {
			return nil, fmt.Errorf("migrate container %s: %w", c.Name, err)
		}
		res.Containers++

		n, err := s.insertRows(ctx, c.Table, allowedColumns(c.Entity.FieldNames(), c.PrimaryKey.Field), c.Rows)
		if err != nil {
			return nil, fmt.Errorf("rows of %s: %w", c.Name, err)
		}
		res.Rows += n

		if c.Translation != nil && len(c.Translations) > 0 {
			cols := allowedColumns(c.Entity.FieldNames(), c.Translation.ParentField, c.Translation.LanguageField)
			n, err := s.insertRows(ctx, c.Translation.Table, cols, c.Translations)
			if err != nil {
				return nil, fmt.Errorf("translations of %s: %w", c.Name, err)
			}
			res.Rows += n
		}
	}

	for _, rc := range sf.ReaderConfigs {
		if err := s.SaveReaderConfig(ctx, rc); err != nil {
			return nil, err
		}
		res.ReaderConfigs++
		res.Elements += len(rc.Elements)
	}

	for _, m := range sf.Modules {
		if err := s.upsertDefinition(ctx, "_modules", "id", m.ID, map[string]any{"name": m.Name}, m); err != nil {
			return nil, fmt.Errorf("module %d: %w", m.ID, err)
		}
		res.Modules++
	}

	for _, f := range sf.Filters {
		if err := s.upsertDefinition(ctx, "_filters", "id", f.ID, map[string]any{"name": f.Name}, f); err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID, err)
		}
		res.Filters++
	}

	for _, p := range sf.Pages {
		if err := s.upsertPage(ctx, p); err != nil {
			return nil, fmt.Errorf("page %d: %w", p.ID, err)
		}
		res.Pages++
	}

	for _, f := range sf.Files {
		if err := s.upsertFile(ctx, f); err != nil {
			return nil, fmt.Errorf("file %s: %w", f.ID, err)
		}
		res.Files++
	}

	return res, nil
}

// SaveReaderConfig stores rc and replaces its elements.
func (s *Store) SaveReaderConfig(ctx context.Context, rc *metadata.ReaderConfig) error {
	def := *rc
	def.Elements = nil
	if err := s.upsertDefinition(ctx, "_reader_configs", "id", rc.ID,
		map[string]any{"title": rc.Title}, def); err != nil {
		return fmt.Errorf("reader config %d: %w", rc.ID, err)
	}
	if err := s.replaceElements(ctx, rc.ID, rc.Elements); err != nil {
		return fmt.Errorf("elements of reader config %d: %w", rc.ID, err)
	}
	return nil
}

func (s *Store) upsertDefinition(ctx context.Context, table, keyCol string, key any, extra map[string]any, def any) error {
	defJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}

	pb := s.Dialect.NewParamBuilder()
	if _, err := Exec(ctx, s.DB, fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, keyCol, pb.Add(key)), pb.Params()...); err != nil {
		return err
	}

	cols := []string{keyCol, "definition"}
	pb = s.Dialect.NewParamBuilder()
	phs := []string{pb.Add(key), pb.Add(string(defJSON))}
	for _, col := range sortedKeys(extra) {
		cols = append(cols, col)
		phs = append(phs, pb.Add(extra[col]))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(phs, ", "))
	_, err = Exec(ctx, s.DB, sql, pb.Params()...)
	return err
}

func (s *Store) replaceElements(ctx context.Context, configID int64, elements []metadata.ConfigElement) error {
	pb := s.Dialect.NewParamBuilder()
	if _, err := Exec(ctx, s.DB,
		fmt.Sprintf("DELETE FROM _reader_config_elements WHERE config_id = %s", pb.Add(configID)), pb.Params()...); err != nil {
		return err
	}
	for i, el := range elements {
		if el.Type == "" {
			return fmt.Errorf("element %d: type is required", i+1)
		}
		defJSON, err := json.Marshal(el)
		if err != nil {
			return fmt.Errorf("encode element: %w", err)
		}
		pb := s.Dialect.NewParamBuilder()
		cols := []string{"config_id", "type", "position", "definition"}
		phs := []string{pb.Add(configID), pb.Add(el.Type), pb.Add(el.Position), pb.Add(string(defJSON))}
		if el.ID != 0 {
			cols = append(cols, "id")
			phs = append(phs, pb.Add(el.ID))
		}
		sql := fmt.Sprintf("INSERT INTO _reader_config_elements (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(phs, ", "))
		if _, err := Exec(ctx, s.DB, sql, pb.Params()...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertPage(ctx context.Context, p *metadata.Page) error {
	pb := s.Dialect.NewParamBuilder()
	if _, err := Exec(ctx, s.DB, fmt.Sprintf("DELETE FROM _pages WHERE id = %s", pb.Add(p.ID)), pb.Params()...); err != nil {
		return err
	}
	pb = s.Dialect.NewParamBuilder()
	sql := fmt.Sprintf("INSERT INTO _pages (id, alias, url) VALUES (%s, %s, %s)", pb.Add(p.ID), pb.Add(p.Alias), pb.Add(p.URL))
	_, err := Exec(ctx, s.DB, sql, pb.Params()...)
	return err
}

func (s *Store) upsertFile(ctx context.Context, f FileSeed) error {
	if f.MimeType == "" {
		f.MimeType = "application/octet-stream"
	}
	meta, err := json.Marshal(f.Meta)
	if err != nil || f.Meta == nil {
		meta = []byte("{}")
	}
	pb := s.Dialect.NewParamBuilder()
	if _, err := Exec(ctx, s.DB, fmt.Sprintf("DELETE FROM _files WHERE id = %s", pb.Add(f.ID)), pb.Params()...); err != nil {
		return err
	}
	pb = s.Dialect.NewParamBuilder()
	sql := fmt.Sprintf(
		"INSERT INTO _files (id, filename, storage_path, mime_type, size, width, height, meta) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		pb.Add(f.ID), pb.Add(f.Filename), pb.Add(f.StoragePath), pb.Add(f.MimeType),
		pb.Add(f.Size), pb.Add(f.Width), pb.Add(f.Height), pb.Add(string(meta)))
	_, err = Exec(ctx, s.DB, sql, pb.Params()...)
	return err
}

func (s *Store) insertRows(ctx context.Context, table string, allowed map[string]bool, rows []map[string]any) (int, error) {
	n := 0
	for _, row := range rows {
		var cols, phs []string
		pb := s.Dialect.NewParamBuilder()
		for _, col := range sortedKeys(row) {
			if !allowed[col] {
				log.Printf("WARN: seed: ignoring unknown column %s.%s", table, col)
				continue
			}
			cols = append(cols, col)
			phs = append(phs, pb.Add(seedValue(row[col])))
		}
		if len(cols) == 0 {
			continue
		}
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(phs, ", "))
		if _, err := Exec(ctx, s.DB, sql, pb.Params()...); err != nil {
			if errors.Is(MapError(s.Dialect, err), ErrUniqueViolation) {
				log.Printf("WARN: seed: row already exists in %s, skipping", table)
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func allowedColumns(fields []string, extra ...string) map[string]bool {
	allowed := make(map[string]bool, len(fields)+len(extra))
	for _, f := range fields {
		allowed[f] = true
	}
	for _, f := range extra {
		allowed[f] = true
	}
	return allowed
}

// seedValue converts JSON-decoded values into driver friendly ones: whole
// numbers become int64 and nested structures are stored as JSON text.
func seedValue(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return val
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
