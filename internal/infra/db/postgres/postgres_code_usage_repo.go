package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
)

var _ repository.CodeUsageRepository = (*codeUsageRepo)(nil)

// codeUsageRepo is append-only: there is no update or delete path.
type codeUsageRepo struct{ pool *pgxpool.Pool }

func NewCodeUsageRepo(pool *pgxpool.Pool) *codeUsageRepo {
	return &codeUsageRepo{pool: pool}
}

func (r *codeUsageRepo) Append(ctx context.Context, tx repository.Tx, u *model.CodeUsage) error {
	if u.ID == "" {
		u.ID = ulid.Make().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	details, err := marshalJSON(u.Details)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO code_usages (id, code_id, code, action, success, reason, actor_id, store_id, ip, user_agent, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err = execSQL(ctx, r.pool, tx, q, u.ID, u.CodeID, u.Code, string(u.Action), u.Success, u.Reason,
		u.ActorID, u.StoreID, u.IP, u.UserAgent, details, u.CreatedAt)
	return mapErr(err)
}

func (r *codeUsageRepo) CountValidationsSince(ctx context.Context, tx repository.Tx, since time.Time) (int, int, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE success) FROM code_usages WHERE action = 'validate' AND created_at >= $1`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, 0, err
	}
	var total, ok int
	if err := row.Scan(&total, &ok); err != nil {
		return 0, 0, domain.ErrReadDatabaseRow
	}
	return total, ok, nil
}
