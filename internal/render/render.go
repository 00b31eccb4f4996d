// Package render resolves item and list templates by name and executes them.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reader-backend/internal/config"
)

// Renderer executes html/template templates. Plain strings in the data are
// escaped by the template; values already escaped must be passed as
// template.HTML.
type Renderer struct {
	dir     string
	aliases map[string]string

	mu     sync.RWMutex
	inline map[string]string
	cache  map[string]*template.Template
}

func New(cfg config.TemplatesConfig) *Renderer {
	aliases := make(map[string]string, len(cfg.Item))
	for k, v := range cfg.Item {
		aliases[k] = v
	}
	return &Renderer{
		dir:     cfg.Path,
		aliases: aliases,
		inline:  make(map[string]string),
		cache:   make(map[string]*template.Template),
	}
}

// Register adds an in-memory template, replacing any earlier one with the
// same name.
func (r *Renderer) Register(name, text string) error {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inline[name] = text
	r.cache[name] = tmpl
	return nil
}

// ResolveTemplateByName returns the identifier of the named template: the
// name itself for in-memory templates, otherwise the file path.
func (r *Renderer) ResolveTemplateByName(name string) (string, bool) {
	if !validName(name) {
		return "", false
	}
	r.mu.RLock()
	_, ok := r.inline[name]
	r.mu.RUnlock()
	if ok {
		return name, true
	}

	candidates := make([]string, 0, 3)
	if file, ok := r.aliases[name]; ok {
		candidates = append(candidates, filepath.Join(r.dir, file))
	}
	candidates = append(candidates,
		filepath.Join(r.dir, name+".html"),
		filepath.Join(r.dir, name+".tmpl"))
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	return "", false
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	tmpl, err := r.load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) load(name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	path, ok := r.ResolveTemplateByName(name)
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	tmpl, err = template.New(name).Funcs(funcs).Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}

	r.mu.Lock()
	r.cache[name] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}

// Reset drops cached file templates so edits on disk are picked up.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.cache {
		if _, ok := r.inline[name]; !ok {
			delete(r.cache, name)
		}
	}
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"default": func(def, v any) any {
		if v == nil || fmt.Sprint(v) == "" {
			return def
		}
		return v
	},
}
