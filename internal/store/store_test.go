package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/metadata"
)

const testSeed = `
containers:
  - name: members
    table: tl_member
    primary_key: {field: id, type: bigint}
    translation:
      table: tl_member_translation
      parent_field: pid
      language_field: lang
      fallback_language: en
    fields:
      - {name: id, type: bigint}
      - {name: firstname, type: string}
      - {name: lastname, type: string, translatable_for: "*"}
      - {name: published, type: boolean}
    rows:
      - {id: 1, firstname: John, lastname: Doe, published: true}
      - {id: 2, firstname: Jane, lastname: Roe, published: false, bogus: x}
    translations:
      - {pid: 1, lang: pl, lastname: Kowalski}
reader_configs:
  - id: 3
    container: members
    mode: auto_item
    template: reader_default
    show_conditions:
      - {field: firstname, operator: equal, value: John}
    elements:
      - {type: expression, name: full, position: 20, expression: "raw.firstname"}
      - {type: image, position: 10, image_field: photo}
modules:
  - {id: 7, name: member reader, type: reader, reader_config: 3}
filters:
  - {id: 4, name: by city, elements: [{name: city, field: city}]}
pages:
  - {id: 9, alias: contact}
files:
  - {id: f-1, filename: a.jpg, storage_path: a.jpg, mime_type: image/jpeg, width: 10, height: 20}
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))
	return s
}

func TestBootstrapSeedsAdmin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	row, err := QueryRow(ctx, s.DB, "SELECT email, roles FROM _users")
	require.NoError(t, err)
	assert.Equal(t, "admin@localhost", row["email"])
	roles, err := s.Dialect.ScanArray(row["roles"])
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, roles)

	// Second bootstrap is a no-op.
	require.NoError(t, s.Bootstrap(ctx))
	rows, err := QueryRows(ctx, s.DB, "SELECT id FROM _users")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSeedAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sf, err := ParseSeed(strings.NewReader(testSeed))
	require.NoError(t, err)

	res, err := s.Seed(ctx, sf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Containers)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.ReaderConfigs)
	assert.Equal(t, 2, res.Elements)
	assert.Equal(t, 1, res.Files)

	rows, err := QueryRows(ctx, s.DB, "SELECT id, firstname FROM tl_member ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane", rows[1]["firstname"])

	tr, err := QueryRow(ctx, s.DB, "SELECT lastname FROM tl_member_translation WHERE pid = 1 AND lang = 'pl'")
	require.NoError(t, err)
	assert.Equal(t, "Kowalski", tr["lastname"])

	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadAll(ctx, s.DB, reg))
	snap := reg.Snapshot()

	e := snap.Entity("members")
	require.NotNil(t, e)
	assert.Equal(t, "tl_member", e.Table)
	assert.Equal(t, "*", e.GetField("lastname").TranslatableFor)

	rc := snap.ReaderConfig(3)
	require.NotNil(t, rc)
	assert.Equal(t, metadata.RetrievalAutoItem, rc.Mode)
	require.Len(t, rc.Elements, 2)
	assert.Equal(t, "image", rc.Elements[0].Type)
	assert.Equal(t, "expression", rc.Elements[1].Type)
	assert.Equal(t, "raw.firstname", rc.Elements[1].Expression)
	require.Len(t, rc.ShowConditions, 1)

	assert.Equal(t, int64(3), snap.Module(7).ReaderConfig)
	assert.NotNil(t, snap.Filter(4).GetElement("city"))
	assert.Equal(t, "contact", snap.Page(9).Alias)
}

func TestSeedIsRepeatable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sf, err := ParseSeed(strings.NewReader(testSeed))
		require.NoError(t, err)
		_, err = s.Seed(ctx, sf)
		require.NoError(t, err)
	}

	rows, err := QueryRows(ctx, s.DB, "SELECT id FROM _reader_config_elements")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	rows, err = QueryRows(ctx, s.DB, "SELECT id FROM tl_member")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMigratorAddsColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := NewMigrator(s)

	e := &metadata.Entity{Name: "news", Table: "tl_news", PrimaryKey: metadata.PrimaryKey{Field: "id"},
		Fields: []metadata.Field{{Name: "headline", Type: "string"}}}
	require.NoError(t, m.Migrate(ctx, e))

	e.Fields = append(e.Fields, metadata.Field{Name: "date", Type: "int"})
	require.NoError(t, m.Migrate(ctx, e))

	cols, err := s.Dialect.GetColumns(ctx, s.DB, "tl_news")
	require.NoError(t, err)
	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "headline")
	assert.Equal(t, "INTEGER", cols["date"])
}

func TestSQLiteHasNoRegexp(t *testing.T) {
	_, ok := (&SQLiteDialect{}).RegexpExpr("a", "?1", false)
	assert.False(t, ok)
	expr, ok := (&PostgresDialect{}).RegexpExpr("a", "$1", true)
	assert.True(t, ok)
	assert.Equal(t, "CAST(a AS TEXT) !~ $1", expr)
}

func TestLikeIgnoresCase(t *testing.T) {
	assert.Equal(t, "CAST(a AS TEXT) ILIKE $1", (&PostgresDialect{}).LikeExpr("a", "$1", false))
	assert.Equal(t, "CAST(a AS TEXT) NOT ILIKE $1", (&PostgresDialect{}).LikeExpr("a", "$1", true))
	assert.Equal(t, "a NOT LIKE ?1", (&SQLiteDialect{}).LikeExpr("a", "?1", true))
}
