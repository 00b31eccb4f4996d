package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
	"reader-backend/internal/store"
)

const seed = `
containers:
  - name: members
    table: tl_member
    fields:
      - {name: id, type: bigint}
      - {name: firstname, type: string}
reader_configs:
  - {id: 3, container: members, mode: auto_item, template: reader_default}
`

type fixture struct {
	app      *fiber.App
	registry *metadata.Registry
	reloads  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "admin.db"), 0)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))
	sf, err := store.ParseSeed(strings.NewReader(seed))
	require.NoError(t, err)
	_, err = s.Seed(ctx, sf)
	require.NoError(t, err)

	f := &fixture{registry: metadata.NewRegistry()}
	require.NoError(t, metadata.LoadAll(ctx, s.DB, f.registry))

	elements := engine.NewManager(engine.Deps{Registry: f.registry}).Elements()
	h := NewHandler(s, f.registry, elements)
	h.OnReload(func() { f.reloads++ })

	f.app = fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	RegisterAdminRoutes(f.app, h)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestGetAndListReaderConfigs(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, "GET", "/_admin/reader-configs", "")
	require.Equal(t, 200, status)
	assert.Len(t, out["data"], 1)

	status, out = f.do(t, "GET", "/_admin/reader-configs/3", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "members", out["data"].(map[string]any)["container"])

	status, _ = f.do(t, "GET", "/_admin/reader-configs/9", "")
	assert.Equal(t, 404, status)
	status, _ = f.do(t, "GET", "/_admin/reader-configs/x", "")
	assert.Equal(t, 400, status)
}

func TestPutReaderConfig(t *testing.T) {
	f := newFixture(t)

	body := `{
		"container": "members",
		"mode": "field_conditions",
		"field_conditions": [{"field": "firstname", "operator": "equal", "value": "John"}],
		"template": "reader_default",
		"elements": [
			{"type": "expression", "name": "b", "position": 20, "expression": "raw.firstname"},
			{"type": "expression", "name": "a", "position": 10, "expression": "raw.id"}
		]
	}`
	status, out := f.do(t, "PUT", "/_admin/reader-configs/8", body)
	require.Equal(t, 200, status, out)
	assert.Equal(t, 1, f.reloads)

	rc := f.registry.Snapshot().ReaderConfig(8)
	require.NotNil(t, rc)
	assert.Equal(t, metadata.RetrievalFieldConditions, rc.Mode)
	require.Len(t, rc.Elements, 2)
	assert.Equal(t, "a", rc.Elements[0].Name)
	assert.Equal(t, int64(8), rc.Elements[0].ConfigID)
}

func TestPutReaderConfigValidation(t *testing.T) {
	f := newFixture(t)

	body := `{
		"container": "nope",
		"mode": "sideways",
		"show_conditions": [{"bracket_left": 1, "field": "firstname", "operator": "equal", "value": "x"}],
		"elements": [{"type": "carousel"}]
	}`
	status, out := f.do(t, "PUT", "/_admin/reader-configs/8", body)
	require.Equal(t, 422, status)

	details := out["error"].(map[string]any)["details"].([]any)
	var fields []string
	for _, d := range details {
		fields = append(fields, d.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"container", "mode", "show_conditions", "elements[0].type"}, fields)
	assert.Nil(t, f.registry.Snapshot().ReaderConfig(8))
	assert.Zero(t, f.reloads)
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	status, out := f.do(t, "POST", "/_admin/reload", "")
	require.Equal(t, 200, status)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 1, data["containers"])
	assert.EqualValues(t, 1, data["reader_configs"])
	assert.Equal(t, 1, f.reloads)
}
