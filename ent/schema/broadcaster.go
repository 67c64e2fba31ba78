package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Broadcaster holds the schema definition for the Broadcaster entity
// (C2): the scalar get-or-create row tracking one agent's current
// sequence number and replay-window size.
type Broadcaster struct {
	ent.Schema
}

// Fields of the Broadcaster.
func (Broadcaster) Fields() []ent.Field {
	return []ent.Field{
		field.String("agent_id").
			StorageKey("agent_id").
			Unique().
			Immutable(),
		field.Int64("current_sequence").
			Default(0),
		field.Int("max_buffer_size"),
		field.Time("updated_at"),
	}
}

// Edges of the Broadcaster.
func (Broadcaster) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("events", BufferedEvent.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
