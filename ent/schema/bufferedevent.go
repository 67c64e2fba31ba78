package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// BufferedEvent holds the schema definition for the BufferedEvent entity
// (C1): one sequence-numbered AgentEvent persisted into an agent's replay
// window.
type BufferedEvent struct {
	ent.Schema
}

// Fields of the BufferedEvent.
func (BufferedEvent) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			StorageKey("id"),
		field.String("agent_id"),
		field.Int64("sequence"),
		field.String("event_type").
			Comment("domain.EventKind value"),
		field.JSON("event_data", map[string]interface{}{}).
			Comment("Serialised domain.AgentEvent"),
		field.Time("timestamp"),
	}
}

// Indexes of the BufferedEvent.
func (BufferedEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_id", "sequence").
			Unique(),
	}
}
