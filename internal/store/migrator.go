package store

import (
	"context"
	"fmt"
	"strings"

	"reader-backend/internal/metadata"
)

type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// Migrate ensures the container table, and its translation table if one is
// configured, match the metadata. Missing tables are created and missing
// columns added; nothing is dropped.
func (m *Migrator) Migrate(ctx context.Context, entity *metadata.Entity) error {
	if err := m.ensureTable(ctx, entity.Table, m.baseColumns(entity)); err != nil {
		return err
	}
	if entity.Translation == nil || entity.Translation.Table == "" {
		return nil
	}
	tr := entity.Translation
	if err := m.ensureTable(ctx, tr.Table, m.translationColumns(entity)); err != nil {
		return err
	}
	sql := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_parent_lang ON %s (%s, %s)",
		tr.Table, tr.Table, tr.ParentField, tr.LanguageField)
	if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("create translation index on %s: %w", tr.Table, err)
	}
	return nil
}

type columnDef struct {
	name string
	def  string
}

func (m *Migrator) baseColumns(entity *metadata.Entity) []columnDef {
	d := m.store.Dialect
	pk := entity.PrimaryKey.Field
	cols := make([]columnDef, 0, len(entity.Fields)+1)
	if entity.GetField(pk) == nil {
		cols = append(cols, columnDef{pk, pk + " " + d.ColumnType(pkType(entity), 0) + " PRIMARY KEY"})
	}
	for _, f := range entity.Fields {
		def := f.Name + " " + d.ColumnType(f.Type, f.Precision)
		if f.Name == pk {
			def += " PRIMARY KEY"
		}
		cols = append(cols, columnDef{f.Name, def})
	}
	return cols
}

// translationColumns holds the parent reference, the language and a
// nullable copy of every translatable field.
func (m *Migrator) translationColumns(entity *metadata.Entity) []columnDef {
	d := m.store.Dialect
	tr := entity.Translation
	cols := []columnDef{
		{tr.ParentField, tr.ParentField + " " + d.ColumnType(pkType(entity), 0) + " NOT NULL"},
		{tr.LanguageField, tr.LanguageField + " TEXT NOT NULL"},
	}
	for _, f := range entity.Fields {
		if f.TranslatableFor == "" || f.Name == entity.PrimaryKey.Field {
			continue
		}
		cols = append(cols, columnDef{f.Name, f.Name + " " + d.ColumnType(f.Type, f.Precision)})
	}
	return cols
}

func pkType(entity *metadata.Entity) string {
	if f := entity.GetField(entity.PrimaryKey.Field); f != nil {
		return f.Type
	}
	if entity.PrimaryKey.Type != "" {
		return entity.PrimaryKey.Type
	}
	return "bigint"
}

func (m *Migrator) ensureTable(ctx context.Context, table string, cols []columnDef) error {
	db := m.store.DB
	exists, err := m.store.Dialect.TableExists(ctx, db, table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		defs := make([]string, len(cols))
		for i, c := range cols {
			defs[i] = c.def
		}
		sql := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(defs, ",\n  "))
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		return nil
	}

	existing, err := m.store.Dialect.GetColumns(ctx, db, table)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", table, err)
	}
	for _, c := range cols {
		if _, ok := existing[c.name]; ok {
			continue
		}
		def := strings.TrimSuffix(c.def, " PRIMARY KEY")
		def = strings.TrimSuffix(def, " NOT NULL")
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def)
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, c.name, err)
		}
	}
	return nil
}
