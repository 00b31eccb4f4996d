package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// Querier is the subset of *sql.DB the loader needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadAll reads every metadata definition from the database and publishes a
// new snapshot into the registry.
func LoadAll(ctx context.Context, db Querier, reg *Registry) error {
	entities, err := loadEntities(ctx, db)
	if err != nil {
		return fmt.Errorf("load containers: %w", err)
	}

	configs, err := loadReaderConfigs(ctx, db)
	if err != nil {
		return fmt.Errorf("load reader configs: %w", err)
	}

	elements, err := loadElements(ctx, db)
	if err != nil {
		return fmt.Errorf("load reader config elements: %w", err)
	}
	attachElements(configs, elements)

	modules, err := loadModules(ctx, db)
	if err != nil {
		return fmt.Errorf("load modules: %w", err)
	}

	filters, err := loadFilters(ctx, db)
	if err != nil {
		return fmt.Errorf("load filters: %w", err)
	}

	pages, err := loadPages(ctx, db)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}

	reg.Load(NewSnapshot(entities, configs, modules, filters, pages))

	log.Printf("Loaded %d containers, %d reader configs, %d elements, %d modules, %d filters, %d pages into registry",
		len(entities), len(configs), len(elements), len(modules), len(filters), len(pages))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, db Querier, reg *Registry) error {
	return LoadAll(ctx, db, reg)
}

func loadEntities(ctx context.Context, db Querier) ([]*Entity, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, definition FROM _containers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan container row: %w", err)
		}

		var entity Entity
		if err := json.Unmarshal(defJSON, &entity); err != nil {
			log.Printf("WARN: skipping container %s (invalid JSON): %v", name, err)
			continue
		}
		if entity.Name == "" {
			entity.Name = name
		}
		if entity.PrimaryKey.Field == "" {
			entity.PrimaryKey.Field = "id"
		}
		entities = append(entities, &entity)
	}
	return entities, rows.Err()
}

func loadReaderConfigs(ctx context.Context, db Querier) ([]*ReaderConfig, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, definition FROM _reader_configs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*ReaderConfig
	for rows.Next() {
		var id int64
		var defJSON []byte
		if err := rows.Scan(&id, &defJSON); err != nil {
			return nil, fmt.Errorf("scan reader config row: %w", err)
		}

		var rc ReaderConfig
		if err := json.Unmarshal(defJSON, &rc); err != nil {
			log.Printf("WARN: skipping reader config %d (invalid JSON): %v", id, err)
			continue
		}
		rc.ID = id
		rc.Elements = nil
		configs = append(configs, &rc)
	}
	return configs, rows.Err()
}

func loadElements(ctx context.Context, db Querier) ([]*ConfigElement, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, config_id, type, position, definition FROM _reader_config_elements ORDER BY config_id, position, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []*ConfigElement
	for rows.Next() {
		var el ConfigElement
		var id, configID int64
		var typ string
		var position int
		var defJSON []byte
		if err := rows.Scan(&id, &configID, &typ, &position, &defJSON); err != nil {
			return nil, fmt.Errorf("scan element row: %w", err)
		}
		if err := json.Unmarshal(defJSON, &el); err != nil {
			log.Printf("WARN: skipping element %d (invalid JSON): %v", id, err)
			continue
		}
		el.ID, el.ConfigID, el.Type, el.Position = id, configID, typ, position
		elements = append(elements, &el)
	}
	return elements, rows.Err()
}

func attachElements(configs []*ReaderConfig, elements []*ConfigElement) {
	byID := make(map[int64]*ReaderConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}
	for _, el := range elements {
		c, ok := byID[el.ConfigID]
		if !ok {
			log.Printf("WARN: element %d references unknown reader config %d", el.ID, el.ConfigID)
			continue
		}
		c.Elements = append(c.Elements, *el)
	}
	for _, c := range configs {
		c.SortElements()
	}
}

func loadModules(ctx context.Context, db Querier) ([]*Module, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, definition FROM _modules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []*Module
	for rows.Next() {
		var id int64
		var defJSON []byte
		if err := rows.Scan(&id, &defJSON); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		var m Module
		if err := json.Unmarshal(defJSON, &m); err != nil {
			log.Printf("WARN: skipping module %d (invalid JSON): %v", id, err)
			continue
		}
		m.ID = id
		modules = append(modules, &m)
	}
	return modules, rows.Err()
}

func loadFilters(ctx context.Context, db Querier) ([]*Filter, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, definition FROM _filters ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []*Filter
	for rows.Next() {
		var id int64
		var defJSON []byte
		if err := rows.Scan(&id, &defJSON); err != nil {
			return nil, fmt.Errorf("scan filter row: %w", err)
		}
		var f Filter
		if err := json.Unmarshal(defJSON, &f); err != nil {
			log.Printf("WARN: skipping filter %d (invalid JSON): %v", id, err)
			continue
		}
		f.ID = id
		filters = append(filters, &f)
	}
	return filters, rows.Err()
}

func loadPages(ctx context.Context, db Querier) ([]*Page, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, alias, url FROM _pages ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var p Page
		var url sql.NullString
		if err := rows.Scan(&p.ID, &p.Alias, &url); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		p.URL = url.String
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}
