package metadata

import "sort"

// RetrievalMode selects how a reader configuration locates its item.
type RetrievalMode string

const (
	RetrievalAutoItem        RetrievalMode = "auto_item"
	RetrievalFieldConditions RetrievalMode = "field_conditions"
)

// ReaderConfig describes how one detail item is retrieved and presented.
type ReaderConfig struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title,omitempty"`
	Container string   `json:"container"`
	Fields    []string `json:"fields,omitempty"` // allow-list; empty means every field

	Mode            RetrievalMode     `json:"mode"`
	AutoItemParam   string            `json:"auto_item_param,omitempty"` // request parameter, default "auto_item"
	AutoItemField   string            `json:"auto_item_field,omitempty"`
	FieldConditions []ConditionClause `json:"field_conditions,omitempty"`
	Filter          int64             `json:"filter,omitempty"`

	HideUnpublished bool   `json:"hide_unpublished,omitempty"`
	PublishedField  string `json:"published_field,omitempty"`
	InvertPublished bool   `json:"invert_published,omitempty"`

	ShowConditions []ConditionClause `json:"show_conditions,omitempty"`
	Redirect       *RedirectConfig   `json:"redirect,omitempty"`

	Multilingual bool   `json:"multilingual,omitempty"`
	Template     string `json:"template"`

	Elements []ConfigElement `json:"elements,omitempty"`
}

// RedirectConfig is a field-dependent redirect: when the conditions match the
// item, the request is redirected to the page JumpTo.
type RedirectConfig struct {
	Enabled    bool              `json:"enabled"`
	JumpTo     int64             `json:"jump_to"`
	Conditions []ConditionClause `json:"conditions"`
}

const (
	DefaultAutoItemParam  = "auto_item"
	DefaultPublishedField = "published"
)

// AutoItemParamName returns the request parameter carrying the auto item.
func (c *ReaderConfig) AutoItemParamName() string {
	if c.AutoItemParam != "" {
		return c.AutoItemParam
	}
	return DefaultAutoItemParam
}

// PublishedFieldName returns the published field, defaulting to "published".
func (c *ReaderConfig) PublishedFieldName() string {
	if c.PublishedField != "" {
		return c.PublishedField
	}
	return DefaultPublishedField
}

// HasShowConditions reports whether a permission check applies.
func (c *ReaderConfig) HasShowConditions() bool {
	return len(c.ShowConditions) > 0
}

// RedirectEnabled reports whether the field-dependent redirect is active.
func (c *ReaderConfig) RedirectEnabled() bool {
	return c.Redirect != nil && c.Redirect.Enabled && c.Redirect.JumpTo != 0 && len(c.Redirect.Conditions) > 0
}

// SortElements orders elements by position, keeping load order for ties.
func (c *ReaderConfig) SortElements() {
	sort.SliceStable(c.Elements, func(i, j int) bool {
		return c.Elements[i].Position < c.Elements[j].Position
	})
}

// PlaceholderMode selects the image fallback when no image is selected.
type PlaceholderMode string

const (
	PlaceholderNone     PlaceholderMode = "none"
	PlaceholderSimple   PlaceholderMode = "simple"
	PlaceholderGendered PlaceholderMode = "gendered"
)

// ConfigElement is one augmentation step of a reader configuration. Only the
// attributes of its Type are meaningful.
type ConfigElement struct {
	ID       int64  `json:"id"`
	ConfigID int64  `json:"config_id"`
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Position int    `json:"position"`

	// image
	ImageField          string          `json:"image_field,omitempty"`
	ImageSelectorField  string          `json:"image_selector_field,omitempty"`
	PlaceholderMode     PlaceholderMode `json:"placeholder_mode,omitempty"`
	Placeholder         string          `json:"placeholder,omitempty"`
	PlaceholderFemale   string          `json:"placeholder_female,omitempty"`
	GenderField         string          `json:"gender_field,omitempty"`
	Size                ImageSize       `json:"size,omitempty"`

	// list
	ListModule    int64           `json:"list_module,omitempty"`
	ListName      string          `json:"list_name,omitempty"`
	InitialFilter []FilterBinding `json:"initial_filter,omitempty"`

	// expression
	Expression string `json:"expression,omitempty"`
}

type ImageSize struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Mode   string `json:"mode,omitempty"` // crop, proportional, box
}

// FilterBinding binds one filter element of a list module to a field of the
// item being read.
type FilterBinding struct {
	FilterElement string `json:"filterElement"`
	Selector      string `json:"selector"`
}
