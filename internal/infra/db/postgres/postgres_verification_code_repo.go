package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
)

var _ repository.VerificationCodeRepository = (*verificationCodeRepo)(nil)

type verificationCodeRepo struct{ pool *pgxpool.Pool }

func NewVerificationCodeRepo(pool *pgxpool.Pool) *verificationCodeRepo {
	return &verificationCodeRepo{pool: pool}
}

const codeColumns = `id, code, code_type, status, usage_limit, usage_count, max_attempts, failed_attempts,
  expires_at, created_by, store_id, subscription_id, product_id, discount_type, discount_value,
  used_at, used_by, notes, created_at, updated_at`

func (r *verificationCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.VerificationCode) error {
	const q = `
INSERT INTO verification_codes (
  code, code_type, status, usage_limit, usage_count, max_attempts, failed_attempts,
  expires_at, created_by, store_id, subscription_id, product_id, discount_type, discount_value,
  notes, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q,
		c.Code, string(c.Type), string(c.Status), c.UsageLimit, c.UsageCount, c.MaxAttempts, c.FailedAttempts,
		c.ExpiresAt, c.CreatedBy, c.StoreID, c.SubscriptionID, c.ProductID, string(c.DiscountType), c.DiscountValue,
		c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	return mapErr(row.Scan(&c.ID))
}

func (r *verificationCodeRepo) ExistsCode(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM verification_codes WHERE code = $1)`, code)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return ok, nil
}

func (r *verificationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.VerificationCode, error) {
	q := lockClause(`SELECT `+codeColumns+` FROM verification_codes WHERE code = $1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *verificationCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.VerificationCode, error) {
	q := lockClause(`SELECT `+codeColumns+` FROM verification_codes WHERE id = $1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *verificationCodeRepo) Update(ctx context.Context, tx repository.Tx, c *model.VerificationCode) error {
	const q = `
UPDATE verification_codes
   SET status = $2, usage_count = $3, failed_attempts = $4, used_at = $5, used_by = $6, notes = $7, updated_at = NOW()
 WHERE id = $1`
	cmd, err := execSQL(ctx, r.pool, tx, q, c.ID, string(c.Status), c.UsageCount, c.FailedAttempts, c.UsedAt, c.UsedBy, c.Notes)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (r *verificationCodeRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	cmd, err := execSQL(ctx, r.pool, tx, `DELETE FROM verification_codes WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (r *verificationCodeRepo) ListByStore(ctx context.Context, tx repository.Tx, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT ` + codeColumns + ` FROM verification_codes
WHERE store_id = $1
  AND ($2 = '' OR code_type = $2)
  AND ($3 = '' OR status = $3)
ORDER BY created_at DESC LIMIT $4`
	rows, err := queryRows(ctx, r.pool, tx, q, storeID, string(f.Type), string(f.Status), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*model.VerificationCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (r *verificationCodeRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE verification_codes SET status = 'expired', updated_at = NOW()
WHERE status = 'pending' AND expires_at <= $1`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *verificationCodeRepo) CountByTypeStatus(ctx context.Context, tx repository.Tx) (map[model.CodeType]map[model.CodeStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT code_type, status, COUNT(*) FROM verification_codes GROUP BY code_type, status`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := map[model.CodeType]map[model.CodeStatus]int{}
	for rows.Next() {
		var (
			typ, status string
			n           int
		)
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if out[model.CodeType(typ)] == nil {
			out[model.CodeType(typ)] = map[model.CodeStatus]int{}
		}
		out[model.CodeType(typ)][model.CodeStatus(status)] = n
	}
	return out, mapErr(rows.Err())
}

func (r *verificationCodeRepo) CountUsedSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM verification_codes WHERE used_at >= $1`, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanCode(row pgx.Row) (*model.VerificationCode, error) {
	var (
		c                         model.VerificationCode
		typ, status, discountType string
	)
	err := row.Scan(&c.ID, &c.Code, &typ, &status, &c.UsageLimit, &c.UsageCount, &c.MaxAttempts, &c.FailedAttempts,
		&c.ExpiresAt, &c.CreatedBy, &c.StoreID, &c.SubscriptionID, &c.ProductID, &discountType, &c.DiscountValue,
		&c.UsedAt, &c.UsedBy, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrCodeNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	c.Type = model.CodeType(typ)
	c.Status = model.CodeStatus(status)
	c.DiscountType = model.DiscountType(discountType)
	return &c, nil
}
