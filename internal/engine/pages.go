package engine

import (
	"context"
	"fmt"
	"strings"

	"reader-backend/internal/metadata"
)

// PageResolver resolves pages of the current metadata snapshot against the
// site's base URL.
type PageResolver struct {
	registry *metadata.Registry
	baseURL  string
}

func NewPageResolver(reg *metadata.Registry, baseURL string) *PageResolver {
	return &PageResolver{registry: reg, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *PageResolver) ResolveTarget(_ context.Context, id int64) (string, error) {
	page := p.registry.Snapshot().Page(id)
	if page == nil {
		return "", fmt.Errorf("page %d does not exist", id)
	}
	target := page.URL
	if target == "" {
		target = page.Alias
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	return p.baseURL + "/" + strings.TrimLeft(target, "/"), nil
}
