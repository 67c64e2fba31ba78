package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Subscriber holds the schema definition for the Subscriber entity (C3):
// one active subscription-stream reader, tracked for the periodic expiry
// sweep.
type Subscriber struct {
	ent.Schema
}

// Fields of the Subscriber.
func (Subscriber) Fields() []ent.Field {
	return []ent.Field{
		field.String("subscriber_id").
			StorageKey("subscriber_id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.Time("created_at").
			Immutable(),
		field.Time("last_activity"),
		field.Bool("is_active").
			Default(true),
		field.Int("heartbeat_timeout_seconds").
			Comment("Per-subscriber liveness timeout used by the expiry sweep"),
	}
}

// Indexes of the Subscriber.
func (Subscriber) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_id", "is_active"),
	}
}
