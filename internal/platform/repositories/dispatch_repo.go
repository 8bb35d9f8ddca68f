package repositories

import (
	"context"
	"database/sql"
	"time"

	"hookline/internal/platform/models"
)

// DispatchRepository is the exactly-once ledger for downstream side effects.
type DispatchRepository struct {
	db *sql.DB
}

func NewDispatchRepository(db *sql.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Claim records the dispatch key and reports whether this call won it.
// A false result means the side effects already ran for that key.
func (r *DispatchRepository) Claim(ctx context.Context, d *models.WebhookDispatch) (bool, error) {
	if d.DispatchedAt.IsZero() {
		d.DispatchedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO webhook_dispatches (dispatch_key, event_id, linked_resource_id, dispatched_at)
		VALUES (?, ?, ?, ?)
	`, d.DispatchKey, d.EventID, nullString(d.LinkedResourceID), toMillis(d.DispatchedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *DispatchRepository) Get(ctx context.Context, key string) (*models.WebhookDispatch, error) {
	var d models.WebhookDispatch
	var linked sql.NullString
	var at int64
	err := r.db.QueryRowContext(ctx, `SELECT dispatch_key, event_id, linked_resource_id, dispatched_at FROM webhook_dispatches WHERE dispatch_key = ?`, key).
		Scan(&d.DispatchKey, &d.EventID, &linked, &at)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.LinkedResourceID = linked.String
	d.DispatchedAt = fromMillis(at)
	return &d, nil
}
