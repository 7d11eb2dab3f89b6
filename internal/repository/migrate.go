package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/joseph-ayodele/contract-intelligence/db/ent/schema"
)

// contractsTable derives the migration table from the ent schema declaration.
func contractsTable() (*schema.Table, error) {
	decl := entschema.Contract{}
	fields := decl.Fields()

	cols := make([]*schema.Column, 0, len(fields))
	byName := make(map[string]*schema.Column, len(fields))
	for _, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("field %s: %w", d.Name, d.Err)
		}
		col := &schema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Nullable:   d.Optional,
			Unique:     d.Unique,
			SchemaType: d.SchemaType,
		}
		switch v := d.Default.(type) {
		case string, int, int64, float64, bool:
			col.Default = v
		}
		cols = append(cols, col)
		byName[d.Name] = col
	}

	t := &schema.Table{
		Name:       entschema.Table,
		Columns:    cols,
		PrimaryKey: []*schema.Column{byName["id"]},
	}
	for _, idx := range decl.Indexes() {
		d := idx.Descriptor()
		ix := &schema.Index{
			Name:   "contract_" + strings.Join(d.Fields, "_"),
			Unique: d.Unique,
		}
		for _, name := range d.Fields {
			c, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("index on unknown column %s", name)
			}
			ix.Columns = append(ix.Columns, c)
		}
		t.Indexes = append(t.Indexes, ix)
	}
	return t, nil
}

// Migrate creates or upgrades the contracts table.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	t, err := contractsTable()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, t); err != nil {
		logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema migrated", "table", t.Name, "columns", len(t.Columns))
	return nil
}

// fieldValidators returns the validators declared on string fields.
func fieldValidators() map[string][]func(string) error {
	out := map[string][]func(string) error{}
	for _, f := range (entschema.Contract{}).Fields() {
		d := f.Descriptor()
		if d.Info.Type != field.TypeString {
			continue
		}
		for _, v := range d.Validators {
			if fn, ok := v.(func(string) error); ok {
				out[d.Name] = append(out[d.Name], fn)
			}
		}
	}
	return out
}

var _ ent.Interface = entschema.Contract{}
