package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// Conversation holds the schema definition for the Conversation entity:
// the first-write-wins conversation-history record kicked off
// fire-and-forget on agent creation and titled on the first plan.
type Conversation struct {
	ent.Schema
}

// Fields of the Conversation.
func (Conversation) Fields() []ent.Field {
	return []ent.Field{
		field.String("agent_id").
			StorageKey("agent_id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("flow_id").
			Immutable(),
		field.String("title").
			Optional().
			Nillable(),
		field.Time("created_at").
			Immutable(),
	}
}
