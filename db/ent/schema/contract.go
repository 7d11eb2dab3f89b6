package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/db/ent/schema/utils"
)

// Table is the storage name of the contracts table.
const Table = "contracts"

type Contract struct{ ent.Schema }

func (Contract) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: Table},
	}
}

func (Contract) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("filename").NotEmpty().MaxLen(255),
		field.String("mime_type").NotEmpty().MaxLen(127),
		field.Int64("file_size").NonNegative(),
		field.String("blob_key").NotEmpty().MaxLen(255).Immutable(),
		field.String("status").
			Default(string(constants.StatusPending)).
			Validate(utils.EnumValidator(constants.StatusValues()...)),
		field.String("stage").
			Default(string(constants.StageQueued)).
			Validate(utils.EnumValidator(constants.StageValues()...)),
		field.Float("progress_percentage").Default(0).Min(0).Max(100),
		field.Text("raw_text").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float32("text_confidence").Optional().Nillable(),
		field.String("text_method").Optional().Nillable(),
		field.JSON("structured_data", json.RawMessage{}).Optional(),
		field.JSON("score_report", json.RawMessage{}).Optional(),
		field.JSON("error_details", json.RawMessage{}).Optional(),
		field.Int("retry_count").Default(0).NonNegative(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
		field.Time("processed_at").Optional().Nillable(),
	}
}

func (Contract) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "updated_at"),
		index.Fields("created_at"),
	}
}
