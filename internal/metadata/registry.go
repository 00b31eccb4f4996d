package metadata

import "sync"

// Snapshot is an immutable view of all loaded metadata. A request works
// against a single snapshot; reloads publish a new one.
type Snapshot struct {
	entities      map[string]*Entity
	readerConfigs map[int64]*ReaderConfig
	modules       map[int64]*Module
	filters       map[int64]*Filter
	pages         map[int64]*Page
}

// NewSnapshot indexes the given definitions. The slices must not be mutated
// afterwards.
func NewSnapshot(entities []*Entity, configs []*ReaderConfig, modules []*Module, filters []*Filter, pages []*Page) *Snapshot {
	s := &Snapshot{
		entities:      make(map[string]*Entity, len(entities)),
		readerConfigs: make(map[int64]*ReaderConfig, len(configs)),
		modules:       make(map[int64]*Module, len(modules)),
		filters:       make(map[int64]*Filter, len(filters)),
		pages:         make(map[int64]*Page, len(pages)),
	}
	for _, e := range entities {
		s.entities[e.Name] = e
	}
	for _, c := range configs {
		s.readerConfigs[c.ID] = c
	}
	for _, m := range modules {
		s.modules[m.ID] = m
	}
	for _, f := range filters {
		s.filters[f.ID] = f
	}
	for _, p := range pages {
		s.pages[p.ID] = p
	}
	return s
}

// Entity returns the container with the given name, or nil.
func (s *Snapshot) Entity(name string) *Entity { return s.entities[name] }

// ReaderConfig returns the reader configuration with the given ID, or nil.
func (s *Snapshot) ReaderConfig(id int64) *ReaderConfig { return s.readerConfigs[id] }

// Module returns the module with the given ID, or nil.
func (s *Snapshot) Module(id int64) *Module { return s.modules[id] }

// Filter returns the filter definition with the given ID, or nil.
func (s *Snapshot) Filter(id int64) *Filter { return s.filters[id] }

// Page returns the page with the given ID, or nil.
func (s *Snapshot) Page(id int64) *Page { return s.pages[id] }

// ReaderConfigs returns all reader configurations.
func (s *Snapshot) ReaderConfigs() []*ReaderConfig {
	out := make([]*ReaderConfig, 0, len(s.readerConfigs))
	for _, c := range s.readerConfigs {
		out = append(out, c)
	}
	return out
}

// Counts returns the number of containers, reader configs, modules, filters
// and pages.
func (s *Snapshot) Counts() (int, int, int, int, int) {
	return len(s.entities), len(s.readerConfigs), len(s.modules), len(s.filters), len(s.pages)
}

type Registry struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewRegistry() *Registry {
	return &Registry{snapshot: NewSnapshot(nil, nil, nil, nil, nil)}
}

// Snapshot returns the current metadata snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Load replaces the current snapshot.
// Called during startup, after admin mutations and by the reload schedule.
func (r *Registry) Load(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = s
}
