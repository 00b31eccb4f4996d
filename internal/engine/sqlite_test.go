package engine_test

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/config"
	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
	"reader-backend/internal/render"
	"reader-backend/internal/storage"
	"reader-backend/internal/store"
)

const seed = `
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
      - {name: alias, type: string}
      - {name: firstname, type: string}
      - {name: lastname, type: string, translatable_for: "*"}
      - {name: published, type: boolean}
      - {name: singleSRC, type: string}
    rows:
      - {id: 1, alias: john-doe, firstname: John, lastname: Doe, published: true, singleSRC: f-1}
      - {id: 2, alias: jane-roe, firstname: Jane, lastname: Roe, published: false}
    translations:
      - {pid: 1, lang: pl, lastname: Kowalski}
  - name: articles
    table: tl_article
    primary_key: {field: id, type: bigint}
    fields:
      - {name: id, type: bigint}
      - {name: author, type: bigint}
      - {name: headline, type: string}
    rows:
      - {id: 10, author: 1, headline: First}
      - {id: 11, author: 1, headline: Second}
      - {id: 12, author: 2, headline: Other}
reader_configs:
  - id: 3
    container: members
    mode: auto_item
    auto_item_field: alias
    hide_unpublished: true
    multilingual: true
    template: member_detail
    elements:
      - {type: image, position: 10, image_field: singleSRC, size: {width: 120}}
      - {type: list, position: 20, list_module: 20, list_name: articles, initial_filter: [{filterElement: author, selector: id}]}
  - id: 5
    container: members
    mode: field_conditions
    field_conditions:
      - {field: firstname, operator: like, value: "J%"}
    hide_unpublished: true
    template: member_detail
modules:
  - {id: 1, name: member reader, type: reader, reader_config: 3}
  - {id: 2, name: first member, type: reader, reader_config: 5}
  - {id: 20, name: articles, type: list, list: {container: articles, sort: headline, order: desc, template: article_list}}
files:
  - {id: f-1, filename: john.jpg, storage_path: members/john.jpg, mime_type: image/jpeg, width: 400, height: 300}
`

func newSQLiteApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "reader.db"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	sf, err := store.ParseSeed(strings.NewReader(seed))
	require.NoError(t, err)
	_, err = s.Seed(ctx, sf)
	require.NoError(t, err)

	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadAll(ctx, s.DB, reg))

	r := render.New(config.TemplatesConfig{})
	require.NoError(t, r.Register("member_detail",
		`{{.formatted.firstname}} {{.formatted.lastname}}{{with .formatted.images}}|{{.singleSRC.URL}} {{.singleSRC.Width}}{{end}}{{with .formatted.list}}|{{.articles}}{{end}}`))
	require.NoError(t, r.Register("article_list", `{{range .items}}{{.headline}};{{end}}`))

	m := engine.NewManager(engine.Deps{
		Registry:        reg,
		Repository:      engine.NewSQLRepository(s),
		Files:           storage.NewResolver(s),
		URLs:            engine.NewPageResolver(reg, ""),
		Renderer:        r,
		DefaultLanguage: "en",
	})
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	engine.RegisterReaderRoutes(app, engine.NewHandler(m))
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestSQLiteReader(t *testing.T) {
	app := newSQLiteApp(t)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"default language", "/reader/1/john-doe", 200, "John Doe|/files/f-1 120|Second;First;"},
		{"translated", "/reader/1/john-doe?lang=pl", 200, "John Kowalski|/files/f-1 120|Second;First;"},
		{"missing translation", "/reader/1/john-doe?lang=de", 200, "John Doe|/files/f-1 120|Second;First;"},
		{"primary key", "/reader/1/1", 200, "John Doe|/files/f-1 120|Second;First;"},
		{"field conditions skip unpublished", "/reader/2", 200, "John Doe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, app, tt.path)
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestSQLiteReaderHidesUnpublished(t *testing.T) {
	app := newSQLiteApp(t)

	status, body := get(t, app, "/reader/1/jane-roe")
	assert.Equal(t, 404, status)
	assert.Contains(t, body, "NOT_FOUND")

	status, _ = get(t, app, "/reader/1/nobody")
	assert.Equal(t, 404, status)
}
