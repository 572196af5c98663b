// Package audit exposes the read side of the audit trail written by
// shared.AuditLogger.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit trail row.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    *uuid.UUID     `json:"actorId"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entityId"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Filter narrows an audit trail query. Zero values mean unfiltered.
type Filter struct {
	Entity   string
	EntityID string
	Action   string
	Limit    int
	Offset   int
}

// Repository reads audit_logs.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs
WHERE ($1 = '' OR entity = $1)
  AND ($2 = '' OR entity_id = $2)
  AND ($3 = '' OR action = $3)
ORDER BY occurred_at DESC, id DESC
LIMIT $4 OFFSET $5`, f.Entity, f.EntityID, f.Action, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
