package repository

import (
	"context"
	"time"

	"mymedaga-payments/internal/domain/model"
)

type CodeFilter struct {
	Type   model.CodeType
	Status model.CodeStatus
	Limit  int
}

// VerificationCodeRepository is the port for manual fallback codes.
type VerificationCodeRepository interface {
	// Create inserts a code; a duplicate code string yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, c *model.VerificationCode) error
	ExistsCode(ctx context.Context, tx Tx, code string) (bool, error)
	// FindByCode locks the row when tx is a real transaction.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.VerificationCode, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.VerificationCode, error)
	// Update persists the mutable counters and status.
	Update(ctx context.Context, tx Tx, c *model.VerificationCode) error
	Delete(ctx context.Context, tx Tx, id int64) error
	ListByStore(ctx context.Context, tx Tx, storeID int64, f CodeFilter) ([]*model.VerificationCode, error)
	// ExpirePending flips every pending code past its expiry and returns how many changed.
	ExpirePending(ctx context.Context, tx Tx, now time.Time) (int, error)
	CountByTypeStatus(ctx context.Context, tx Tx) (map[model.CodeType]map[model.CodeStatus]int, error)
	CountUsedSince(ctx context.Context, tx Tx, since time.Time) (int, error)
}

// CodeUsageRepository is append-only.
type CodeUsageRepository interface {
	Append(ctx context.Context, tx Tx, u *model.CodeUsage) error
	// CountValidationsSince returns (attempts, successes) of validate actions since t.
	CountValidationsSince(ctx context.Context, tx Tx, since time.Time) (int, int, error)
}
