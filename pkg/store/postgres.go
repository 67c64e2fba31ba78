package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

// Postgres is a Store backed directly by pgx/v5, using the claim-
// transaction idiom (BEGIN; SELECT ... FOR UPDATE; mutate; COMMIT) to
// keep sequence assignment and the broadcaster scalar update in one
// atomic unit.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pgxpool against dsn. The caller is responsible for
// having already applied migrations (via database.NewClient) against the
// same database.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgx pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) GetContext(ctx context.Context, agentID string) (*domain.AgentContext, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT agent_id, agent, flow_id, sandbox_id, status, last_message, metadata, created_at, updated_at
		FROM agent_contexts WHERE agent_id = $1`, agentID)

	var (
		ac          domain.AgentContext
		agentJSON   []byte
		lastMsgJSON []byte
		metaJSON    []byte
	)
	if err := row.Scan(&ac.AgentID, &agentJSON, &ac.FlowKind, &ac.SandboxID, &ac.Status, &lastMsgJSON, &metaJSON, &ac.CreatedAt, &ac.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get agent context: %w", err)
	}
	if err := json.Unmarshal(agentJSON, &ac.Agent); err != nil {
		return nil, fmt.Errorf("decode agent: %w", err)
	}
	if lastMsgJSON != nil {
		var lm domain.LastMessage
		if err := json.Unmarshal(lastMsgJSON, &lm); err != nil {
			return nil, fmt.Errorf("decode last message: %w", err)
		}
		ac.LastMessage = &lm
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &ac.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &ac, nil
}

func (p *Postgres) UpsertContext(ctx context.Context, ac *domain.AgentContext) error {
	agentJSON, err := json.Marshal(ac.Agent)
	if err != nil {
		return fmt.Errorf("encode agent: %w", err)
	}
	var lastMsgJSON []byte
	if ac.LastMessage != nil {
		if lastMsgJSON, err = json.Marshal(ac.LastMessage); err != nil {
			return fmt.Errorf("encode last message: %w", err)
		}
	}
	metaJSON, err := json.Marshal(ac.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO agent_contexts (agent_id, agent, flow_id, sandbox_id, status, last_message, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (agent_id) DO UPDATE SET
			agent = EXCLUDED.agent, flow_id = EXCLUDED.flow_id, sandbox_id = EXCLUDED.sandbox_id,
			status = EXCLUDED.status, last_message = EXCLUDED.last_message, metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		ac.AgentID, agentJSON, ac.FlowKind, ac.SandboxID, ac.Status, lastMsgJSON, metaJSON, ac.CreatedAt, ac.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert agent context: %w", err)
	}
	return nil
}

func (p *Postgres) ListContextsByStatus(ctx context.Context, status domain.AgentStatus) ([]*domain.AgentContext, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT agent_id, agent, flow_id, sandbox_id, status, last_message, metadata, created_at, updated_at
		FROM agent_contexts WHERE status = $1`, status)
	if err != nil {
		return nil, fmt.Errorf("list agent contexts by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.AgentContext
	for rows.Next() {
		var (
			ac          domain.AgentContext
			agentJSON   []byte
			lastMsgJSON []byte
			metaJSON    []byte
		)
		if err := rows.Scan(&ac.AgentID, &agentJSON, &ac.FlowKind, &ac.SandboxID, &ac.Status, &lastMsgJSON, &metaJSON, &ac.CreatedAt, &ac.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent context: %w", err)
		}
		if err := json.Unmarshal(agentJSON, &ac.Agent); err != nil {
			return nil, fmt.Errorf("decode agent: %w", err)
		}
		if lastMsgJSON != nil {
			var lm domain.LastMessage
			if err := json.Unmarshal(lastMsgJSON, &lm); err != nil {
				return nil, fmt.Errorf("decode last message: %w", err)
			}
			ac.LastMessage = &lm
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ac.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, &ac)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agent contexts by status: %w", err)
	}
	return out, nil
}

func (p *Postgres) DeleteContext(ctx context.Context, agentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM agent_contexts WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("delete agent context: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertConversation(ctx context.Context, agentID, userID, flowID, title string, createdAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO conversations (agent_id, user_id, flow_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agent_id) DO NOTHING`,
		agentID, userID, flowID, title, createdAt)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrCreateBroadcaster(ctx context.Context, agentID string, maxBufferSize int, now time.Time) (*domain.Broadcaster, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO event_broadcasters (agent_id, current_sequence, max_buffer_size, updated_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (agent_id) DO NOTHING`, agentID, maxBufferSize, now)
	if err != nil {
		return nil, fmt.Errorf("insert-if-absent broadcaster: %w", err)
	}

	var b domain.Broadcaster
	row := p.pool.QueryRow(ctx, `
		SELECT agent_id, current_sequence, max_buffer_size, updated_at FROM event_broadcasters WHERE agent_id = $1`, agentID)
	if err := row.Scan(&b.AgentID, &b.CurrentSequence, &b.MaxBufferSize, &b.UpdatedAt); err != nil {
		return nil, fmt.Errorf("read broadcaster: %w", err)
	}
	return &b, nil
}

func (p *Postgres) Append(ctx context.Context, agentID string, event domain.AgentEvent, now time.Time, maxBufferSize int) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO event_broadcasters (agent_id, current_sequence, max_buffer_size, updated_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (agent_id) DO NOTHING`, agentID, maxBufferSize, now); err != nil {
		return 0, fmt.Errorf("insert-if-absent broadcaster: %w", err)
	}

	var currentSequence int64
	if err := tx.QueryRow(ctx, `
		SELECT current_sequence FROM event_broadcasters WHERE agent_id = $1 FOR UPDATE`, agentID,
	).Scan(&currentSequence); err != nil {
		return 0, fmt.Errorf("lock broadcaster row: %w", err)
	}

	sequence := currentSequence + 1
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO buffered_events (agent_id, sequence, event_type, event_data, timestamp)
		VALUES ($1, $2, $3, $4, $5)`, agentID, sequence, event.Kind, eventJSON, now); err != nil {
		return 0, fmt.Errorf("insert buffered event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM buffered_events WHERE agent_id = $1 AND sequence <= $2`,
		agentID, sequence-int64(maxBufferSize)); err != nil {
		return 0, fmt.Errorf("evict overflow events: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE event_broadcasters SET current_sequence = $2, updated_at = $3 WHERE agent_id = $1`,
		agentID, sequence, now); err != nil {
		return 0, fmt.Errorf("advance broadcaster sequence: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append tx: %w", err)
	}
	return sequence, nil
}

func (p *Postgres) EventsFrom(ctx context.Context, agentID string, fromSequence int64) ([]domain.BufferedEvent, error) {
	if fromSequence <= 0 {
		fromSequence = 1
	}
	rows, err := p.pool.Query(ctx, `
		SELECT sequence, event_data, timestamp FROM buffered_events
		WHERE agent_id = $1 AND sequence >= $2 ORDER BY sequence ASC`, agentID, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.BufferedEvent
	for rows.Next() {
		var (
			seq       int64
			eventJSON []byte
			ts        time.Time
		)
		if err := rows.Scan(&seq, &eventJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var event domain.AgentEvent
		if err := json.Unmarshal(eventJSON, &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, domain.BufferedEvent{AgentID: agentID, Sequence: seq, Event: event, Timestamp: ts})
	}
	return out, rows.Err()
}

func (p *Postgres) LastIsDone(ctx context.Context, agentID string) (bool, error) {
	var eventType string
	err := p.pool.QueryRow(ctx, `
		SELECT event_type FROM buffered_events WHERE agent_id = $1 ORDER BY sequence DESC LIMIT 1`, agentID,
	).Scan(&eventType)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query last event: %w", err)
	}
	return domain.EventKind(eventType) == domain.EventKindDone, nil
}

func (p *Postgres) ClearEvents(ctx context.Context, agentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM buffered_events WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteBroadcaster(ctx context.Context, agentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM event_broadcasters WHERE agent_id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("delete broadcaster: %w", err)
	}
	return nil
}

func (p *Postgres) CreateSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO event_subscribers (subscriber_id, agent_id, created_at, last_activity, is_active, heartbeat_timeout_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.AgentID, sub.CreatedAt, sub.LastActivity, sub.IsActive, sub.HeartbeatTimeoutSeconds)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (p *Postgres) TouchSubscriber(ctx context.Context, subscriberID string, now time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE event_subscribers SET last_activity = $2 WHERE subscriber_id = $1`, subscriberID, now)
	if err != nil {
		return fmt.Errorf("touch subscriber: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteSubscriber(ctx context.Context, subscriberID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM event_subscribers WHERE subscriber_id = $1`, subscriberID)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	return nil
}

func (p *Postgres) SweepExpiredSubscribers(ctx context.Context, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE event_subscribers SET is_active = FALSE
		WHERE is_active = TRUE AND $1 - last_activity > (heartbeat_timeout_seconds || ' seconds')::interval`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired subscribers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*Postgres)(nil)
