package translog

import (
	"context"
	"database/sql"
	"time"

	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
)

// Writer appends transition records. Append always runs inside the caller's
// transaction so the log row and the state change commit as one unit.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind domain.Kind, entityID, from, to, actorID, actorRole, notes string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transitions(entity_kind,entity_id,from_status,to_status,actor_id,actor_role,notes,ts) VALUES (?,?,?,?,?,?,?,?)`,
		string(kind), entityID, from, to, actorID, actorRole, nullable(notes), ts)
	return err
}

// List returns the audit trail for one entity, oldest first.
func (w Writer) List(ctx context.Context, kind domain.Kind, entityID string) ([]domain.TransitionRecord, error) {
	rows, err := w.DB.QueryContext(ctx,
		`SELECT id,entity_kind,entity_id,from_status,to_status,actor_id,actor_role,COALESCE(notes,''),ts
		 FROM transitions WHERE entity_kind=? AND entity_id=? ORDER BY id ASC`,
		string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		var kindStr string
		if err := rows.Scan(&rec.ID, &kindStr, &rec.EntityID, &rec.FromStatus, &rec.ToStatus, &rec.ActorID, &rec.ActorRole, &rec.Notes, &rec.TS); err != nil {
			return nil, err
		}
		rec.EntityKind = domain.Kind(kindStr)
		res = append(res, rec)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
