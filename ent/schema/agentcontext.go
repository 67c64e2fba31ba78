package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentContext holds the schema definition for the AgentContext entity:
// the persisted projection of a live Agent (C5), rehydrated on restart or
// cache miss.
type AgentContext struct {
	ent.Schema
}

// Fields of the AgentContext.
func (AgentContext) Fields() []ent.Field {
	return []ent.Field{
		field.String("agent_id").
			StorageKey("agent_id").
			Unique().
			Immutable(),
		field.JSON("agent", map[string]interface{}{}).
			Comment("Serialised domain.Agent: identity, model config, memories"),
		field.String("flow_id").
			Comment("Which Flow implementation drives this agent"),
		field.String("sandbox_id"),
		field.Enum("status").
			Values("created", "running", "stopped", "error").
			Default("created"),
		field.JSON("last_message", map[string]interface{}{}).
			Optional().
			Nillable().
			Comment("(text, timestamp) pair used for send_message duplicate suppression"),
		field.JSON("metadata", map[string]interface{}{}).
			Default(map[string]interface{}{}),
		field.Time("created_at").
			Immutable(),
		field.Time("updated_at"),
	}
}

// Indexes of the AgentContext.
func (AgentContext) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
	}
}
