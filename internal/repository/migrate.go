package repository

import (
	"context"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"

	entschema "github.com/joseph-ayodele/cardscan/db/ent/schema"
)

// ContactsTable derives the contacts table from the ent schema declaration.
func ContactsTable() *schema.Table {
	table := schema.NewTable(entschema.ContactsTable)
	for _, f := range (entschema.Contact{}).Fields() {
		d := f.Descriptor()
		name := d.Name
		if d.StorageKey != "" {
			name = d.StorageKey
		}
		col := &schema.Column{
			Name:       name,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Nullable:   d.Optional || d.Nillable,
			Unique:     d.Unique,
			SchemaType: d.SchemaType,
		}
		if name == "id" {
			table.AddPrimary(col)
			continue
		}
		table.AddColumn(col)
	}
	return table
}

// Migrate creates missing tables and columns. Existing data is never dropped.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver)
	if err != nil {
		logger.Error("migration setup failed", "error", err)
		return err
	}
	if err := m.Create(ctx, ContactsTable()); err != nil {
		logger.Error("migration failed", "error", err)
		return err
	}
	logger.Info("schema up to date", "table", entschema.ContactsTable)
	return nil
}
