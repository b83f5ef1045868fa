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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

// FieldSealer encrypts payer contact details at rest.
type FieldSealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type paymentRepo struct {
	pool   *pgxpool.Pool
	sealer FieldSealer // nil stores payer fields in clear
}

func NewPaymentRepo(pool *pgxpool.Pool, sealer FieldSealer) *paymentRepo {
	return &paymentRepo{pool: pool, sealer: sealer}
}

const paymentColumns = `id, order_id, subscription_id, promotion_id, amount, currency, payment_method, status,
  transaction_id, external_id, payment_reference, payer_name, payer_email, payer_phone, metadata,
  paid_at, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if err := p.Target.Validate(); err != nil {
		return domain.ErrTargetMismatch
	}
	orderID, subID, promoID := p.Target.Pointers()
	meta, err := marshalJSON(p.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	name, email, phone, err := r.seal(p.Payer)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payments (
  id, order_id, subscription_id, promotion_id, amount, currency, payment_method, status,
  transaction_id, external_id, payment_reference, payer_name, payer_email, payer_phone, metadata,
  paid_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, orderID, subID, promoID, p.Amount, p.Currency, string(p.Method), string(p.Status),
		p.TransactionID, p.ExternalID, p.PaymentReference, name, email, phone, meta,
		p.PaidAt, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := lockClause(`SELECT `+paymentColumns+` FROM payments WHERE id=$1`, tx)
	return r.one(ctx, tx, q, id)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	q := lockClause(`SELECT `+paymentColumns+` FROM payments WHERE transaction_id=$1`, tx)
	return r.one(ctx, tx, q, transactionID)
}

// FindByReference matches SMS/provider references first, then transaction ids.
func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	q := lockClause(`SELECT `+paymentColumns+` FROM payments
WHERE payment_reference=$1 OR external_id=$1 OR transaction_id=$1
ORDER BY created_at DESC LIMIT 1`, tx)
	return r.one(ctx, tx, q, reference)
}

// UpdateStatusIfOpen atomically updates status only while it is 'pending' or 'processing'.
func (r *paymentRepo) UpdateStatusIfOpen(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, metadata map[string]any, paidAt *time.Time,
) (bool, error) {
	meta, err := marshalJSON(metadata)
	if err != nil {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payments
   SET status = $2,
       metadata = metadata || $3::jsonb,
       paid_at = COALESCE($4, paid_at),
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','processing')`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), meta, paidAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) RecordProviderResponse(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, externalID string, metadata map[string]any,
) error {
	meta, err := marshalJSON(metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE payments
   SET status = $2,
       external_id = COALESCE(NULLIF($3, ''), external_id),
       metadata = metadata || $4::jsonb,
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','processing')`
	_, err = execSQL(ctx, r.pool, tx, q, id, string(status), externalID, meta)
	return mapErr(err)
}

func (r *paymentRepo) ListOpenOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE status IN ('pending','processing') AND created_at < $1
ORDER BY created_at ASC LIMIT $2`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *paymentRepo) one(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return r.scan(row)
}

func (r *paymentRepo) scan(row pgx.Row) (*model.Payment, error) {
	var (
		p                       model.Payment
		orderID, subID, promoID *int64
		method, status          string
		name, email, phone      string
		meta                    []byte
	)
	err := row.Scan(&p.ID, &orderID, &subID, &promoID, &p.Amount, &p.Currency, &method, &status,
		&p.TransactionID, &p.ExternalID, &p.PaymentReference, &name, &email, &phone, &meta,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	target, err := model.TargetFromPointers(orderID, subID, promoID)
	if err != nil {
		return nil, domain.ErrTargetMismatch
	}
	p.Target = target
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	p.Metadata = unmarshalJSON(meta)
	p.Payer = r.open(name, email, phone)
	return &p, nil
}

func (r *paymentRepo) seal(p model.Payer) (string, string, string, error) {
	if r.sealer == nil {
		return p.Name, p.Email, p.Phone, nil
	}
	out := make([]string, 3)
	for i, v := range []string{p.Name, p.Email, p.Phone} {
		if v == "" {
			continue
		}
		enc, err := r.sealer.Encrypt(v)
		if err != nil {
			return "", "", "", domain.ErrOperationFailed
		}
		out[i] = enc
	}
	return out[0], out[1], out[2], nil
}

// open decrypts payer fields; values that fail to decrypt are returned as stored
// so rows written before encryption was enabled stay readable.
func (r *paymentRepo) open(name, email, phone string) model.Payer {
	if r.sealer == nil {
		return model.Payer{Name: name, Email: email, Phone: phone}
	}
	dec := func(v string) string {
		if v == "" {
			return ""
		}
		if s, err := r.sealer.Decrypt(v); err == nil {
			return s
		}
		return v
	}
	return model.Payer{Name: dec(name), Email: dec(email), Phone: dec(phone)}
}
