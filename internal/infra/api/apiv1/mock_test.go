//go:build !integration

package apiv1_test

import (
	"context"

	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/usecase"
)

type mockPaymentUC struct {
	InitiateFunc     func(ctx context.Context, in usecase.InitiateInput) (*usecase.InitiateOutput, error)
	StripeIntentFunc func(ctx context.Context, in usecase.StripeIntentInput) (*usecase.StripeIntentOutput, error)
	GetFunc          func(ctx context.Context, id string) (*model.Payment, error)
	ListMethodsFunc  func(ctx context.Context, storeID int64) ([]model.MethodInfo, error)
}

func (m *mockPaymentUC) CreatePending(context.Context, model.PayableTarget, model.PaymentMethod, decimal.Decimal, string, model.Payer) (*model.Payment, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockPaymentUC) Transition(context.Context, string, model.PaymentStatus, map[string]any) (*model.Payment, bool, error) {
	return nil, false, domain.ErrOperationFailed
}

func (m *mockPaymentUC) Initiate(ctx context.Context, in usecase.InitiateInput) (*usecase.InitiateOutput, error) {
	return m.InitiateFunc(ctx, in)
}

func (m *mockPaymentUC) StripeIntent(ctx context.Context, in usecase.StripeIntentInput) (*usecase.StripeIntentOutput, error) {
	return m.StripeIntentFunc(ctx, in)
}

func (m *mockPaymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockPaymentUC) ListMethods(ctx context.Context, storeID int64) ([]model.MethodInfo, error) {
	return m.ListMethodsFunc(ctx, storeID)
}

type mockReconcileUC struct {
	HandleWebhookFunc     func(ctx context.Context, provider string, in usecase.WebhookInput) (*usecase.WebhookResult, error)
	HandleStripeEventFunc func(ctx context.Context, payload []byte, sig string) (*usecase.WebhookResult, error)
	HandleSMSFunc         func(ctx context.Context, in usecase.WebhookInput) (*usecase.WebhookResult, error)
	PollFunc              func(ctx context.Context, id string) (*model.Payment, error)
}

func (m *mockReconcileUC) HandleWebhook(ctx context.Context, provider string, in usecase.WebhookInput) (*usecase.WebhookResult, error) {
	return m.HandleWebhookFunc(ctx, provider, in)
}

func (m *mockReconcileUC) HandleStripeEvent(ctx context.Context, payload []byte, sig string) (*usecase.WebhookResult, error) {
	return m.HandleStripeEventFunc(ctx, payload, sig)
}

func (m *mockReconcileUC) HandleSMS(ctx context.Context, in usecase.WebhookInput) (*usecase.WebhookResult, error) {
	return m.HandleSMSFunc(ctx, in)
}

func (m *mockReconcileUC) Poll(ctx context.Context, id string) (*model.Payment, error) {
	return m.PollFunc(ctx, id)
}

type mockCodeUC struct {
	GenerateFunc           func(ctx context.Context, in usecase.GenerateInput) ([]*model.VerificationCode, error)
	ValidateAndConsumeFunc func(ctx context.Context, code string, storeID int64, actor usecase.Actor) (*usecase.CodeResult, error)
	CancelFunc             func(ctx context.Context, id int64, actor usecase.Actor, reason string) error
	DeleteFunc             func(ctx context.Context, id int64, actor usecase.Actor) error
	ListByStoreFunc        func(ctx context.Context, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error)
	StatsFunc              func(ctx context.Context) (*model.CodeStats, error)
}

func (m *mockCodeUC) Generate(ctx context.Context, in usecase.GenerateInput) ([]*model.VerificationCode, error) {
	return m.GenerateFunc(ctx, in)
}

func (m *mockCodeUC) ValidateAndConsume(ctx context.Context, code string, storeID int64, actor usecase.Actor) (*usecase.CodeResult, error) {
	return m.ValidateAndConsumeFunc(ctx, code, storeID, actor)
}

func (m *mockCodeUC) RecordFailedAttempt(context.Context, string, usecase.Actor, string) error {
	return nil
}

func (m *mockCodeUC) Cancel(ctx context.Context, id int64, actor usecase.Actor, reason string) error {
	return m.CancelFunc(ctx, id, actor, reason)
}

func (m *mockCodeUC) Delete(ctx context.Context, id int64, actor usecase.Actor) error {
	return m.DeleteFunc(ctx, id, actor)
}

func (m *mockCodeUC) ListByStore(ctx context.Context, storeID int64, f repository.CodeFilter) ([]*model.VerificationCode, error) {
	return m.ListByStoreFunc(ctx, storeID, f)
}

func (m *mockCodeUC) CleanExpired(context.Context) (int, error) { return 0, nil }

func (m *mockCodeUC) Stats(ctx context.Context) (*model.CodeStats, error) {
	return m.StatsFunc(ctx)
}
