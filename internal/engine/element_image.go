package engine

import (
	"context"
	"fmt"
	"strings"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
	"reader-backend/internal/storage"
)

// FileResolver looks up a file by reference. Unknown references resolve to
// nil without an error.
type FileResolver interface {
	ResolveByReference(ctx context.Context, ref string) (*storage.File, error)
}

// Image is the descriptor stored under formatted["images"][field].
type Image struct {
	ID          string         `json:"id"`
	Path        string         `json:"path"`
	URL         string         `json:"url"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Mode        string         `json:"mode,omitempty"`
	MimeType    string         `json:"mime_type"`
	Meta        map[string]any `json:"meta,omitempty"`
	Placeholder bool           `json:"placeholder"`
}

type imageElement struct {
	el    metadata.ConfigElement
	files FileResolver
}

func newImageElement(el metadata.ConfigElement, files FileResolver) (Element, error) {
	if el.ImageField == "" && el.Name == "" {
		return nil, fmt.Errorf("image element needs an image field")
	}
	return &imageElement{el: el, files: files}, nil
}

func (e *imageElement) Contribute(ctx context.Context, _ *Scope, item *Item) error {
	ref, placeholder := e.reference(item.Raw)
	if ref == "" {
		return nil
	}
	f, err := e.files.ResolveByReference(ctx, ref)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	img := &Image{
		ID:          f.ID,
		Path:        f.Path,
		URL:         "/files/" + f.ID,
		Width:       f.Width,
		Height:      f.Height,
		Mode:        e.el.Size.Mode,
		MimeType:    f.MimeType,
		Meta:        f.Meta,
		Placeholder: placeholder,
	}
	if e.el.Size.Width > 0 {
		img.Width = e.el.Size.Width
	}
	if e.el.Size.Height > 0 {
		img.Height = e.el.Size.Height
	}

	key := e.el.ImageField
	if key == "" {
		key = e.el.Name
	}
	item.MergeFormatted("images", key, img)
	return nil
}

// reference picks the item's own image when it is selected and set, and a
// placeholder otherwise.
func (e *imageElement) reference(raw map[string]any) (string, bool) {
	selected := e.el.ImageSelectorField == "" || truthy(raw[e.el.ImageSelectorField])
	if selected {
		if ref := strings.TrimSpace(condition.Stringify(raw[e.el.ImageField])); ref != "" {
			return ref, false
		}
	}

	switch e.el.PlaceholderMode {
	case metadata.PlaceholderGendered:
		gender := strings.ToLower(condition.Stringify(raw[e.el.GenderField]))
		if gender == "female" && e.el.PlaceholderFemale != "" {
			return e.el.PlaceholderFemale, true
		}
		return e.el.Placeholder, e.el.Placeholder != ""
	case metadata.PlaceholderSimple:
		return e.el.Placeholder, e.el.Placeholder != ""
	}
	return "", false
}
