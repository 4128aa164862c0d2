package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

// ContactsTable is the storage name of Contact.
const ContactsTable = "contacts"

type Contact struct{ ent.Schema }

func (Contact) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: ContactsTable},
	}
}

func (Contact) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("full_name").Optional().Nillable(),
		field.String("first_name").Optional().Nillable(),
		field.String("last_name").Optional().Nillable(),
		field.String("email").Optional().Nillable(),
		field.String("phone").Optional().Nillable(),
		field.String("company").Optional().Nillable(),
		field.String("title").Optional().Nillable(),
		field.String("website").Optional().Nillable(),
		field.Text("address").Optional().Nillable(),
		field.Text("notes").Optional().Nillable(),
		field.Text("user_notes").Optional().Nillable(),
		field.String("poc_name").Optional().Nillable(),
		field.String("source_filename").Optional().Nillable(),
		field.Float("confidence_score").
			Default(0).
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}
