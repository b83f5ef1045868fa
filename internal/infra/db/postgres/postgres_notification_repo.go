package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct{ pool *pgxpool.Pool }

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Enqueue(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	payload, err := marshalJSON(n.Payload)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO notifications (user_id, type, message, link, event_type, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, n.UserID, string(n.Type), n.Message, n.Link, n.EventType, payload, n.CreatedAt)
	if err != nil {
		return err
	}
	return mapErr(row.Scan(&n.ID))
}

// ClaimUnpublished leases rows in one statement so the claim commits on its
// own; publishing then happens without holding row locks. Rows that reached
// maxAttempts are never selected, so they cannot crowd out fresh ones.
func (r *notificationRepo) ClaimUnpublished(ctx context.Context, tx repository.Tx, limit, maxAttempts int, lease time.Duration) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
UPDATE notifications
   SET claimed_until = NOW() + make_interval(secs => $3)
 WHERE id IN (
       SELECT id
         FROM notifications
        WHERE published_at IS NULL
          AND attempts < $2
          AND (claimed_until IS NULL OR claimed_until < NOW())
        ORDER BY id
        LIMIT $1
        FOR UPDATE SKIP LOCKED)
RETURNING id, user_id, type, message, link, event_type, payload, attempts, last_error, created_at`
	rows, err := queryRows(ctx, r.pool, tx, q, limit, maxAttempts, lease.Seconds())
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var (
			n       model.Notification
			typ     string
			payload []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &n.Link, &n.EventType, &payload, &n.Attempts, &n.LastError, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		n.Type = model.NotificationType(typ)
		n.Payload = unmarshalJSON(payload)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *notificationRepo) MarkPublished(ctx context.Context, tx repository.Tx, id int64) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE notifications SET published_at = NOW(), attempts = attempts + 1, last_error = '', claimed_until = NULL WHERE id = $1`, id)
	return mapErr(err)
}

func (r *notificationRepo) MarkFailed(ctx context.Context, tx repository.Tx, id int64, lastErr string) error {
	if len(lastErr) > 500 {
		lastErr = lastErr[:500]
	}
	_, err := execSQL(ctx, r.pool, tx, `UPDATE notifications SET attempts = attempts + 1, last_error = $2, claimed_until = NULL WHERE id = $1`, id, lastErr)
	return mapErr(err)
}
