package render

import (
	"html/template"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader-backend/internal/config"
)

func TestResolveOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reader_default.html"), []byte(`<h1>{{.formatted.title}}</h1>`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.tpl"), []byte(`custom {{.formatted.title}}`), 0644))

	r := New(config.TemplatesConfig{Path: dir, Item: map[string]string{"reader_custom": "custom.tpl"}})

	id, ok := r.ResolveTemplateByName("reader_default")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "reader_default.html"), id)

	id, ok = r.ResolveTemplateByName("reader_custom")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "custom.tpl"), id)

	_, ok = r.ResolveTemplateByName("missing")
	assert.False(t, ok)
	_, ok = r.ResolveTemplateByName("../reader_default")
	assert.False(t, ok)

	out, err := r.Render("reader_custom", map[string]any{"formatted": map[string]any{"title": template.HTML("A &amp; B")}})
	require.NoError(t, err)
	assert.Equal(t, "custom A &amp; B", out)
}

func TestPlainStringsAreEscaped(t *testing.T) {
	r := New(config.TemplatesConfig{Path: t.TempDir()})
	require.NoError(t, r.Register("item", `<p>{{.raw}}</p>{{.safe}}|{{default "none" .empty}}`))

	out, err := r.Render("item", map[string]any{
		"raw":   "<script>x</script>",
		"safe":  template.HTML("<b>ok</b>"),
		"empty": template.HTML(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>&lt;script&gt;x&lt;/script&gt;</p><b>ok</b>|none", out)
}

func TestInlineTemplates(t *testing.T) {
	r := New(config.TemplatesConfig{Path: t.TempDir()})
	require.NoError(t, r.Register("list_members", `{{range .items}}{{.formatted.name}};{{end}}`))

	id, ok := r.ResolveTemplateByName("list_members")
	assert.True(t, ok)
	assert.Equal(t, "list_members", id)

	out, err := r.Render("list_members", map[string]any{"items": []map[string]any{
		{"formatted": map[string]any{"name": "a"}},
		{"formatted": map[string]any{"name": "b"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "a;b;", out)

	assert.Error(t, r.Register("broken", `{{if}}`))
	_, err = r.Render("nope", nil)
	assert.Error(t, err)
}
