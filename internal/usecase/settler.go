package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/i18n"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/infra/metrics"
)

// Outbox event types.
const (
	EventPaymentCompleted = "payment.completed"
	EventCodeRedeemed     = "code.redeemed"
)

const dashboardLink = "/dashboard/"

// Settler applies terminal transitions to payments. Webhooks, the SMS
// matcher, polling and the initiation flow all settle through it, so a
// payment is finalized at most once whichever path arrives first.
type Settler struct {
	tm            repository.TransactionManager
	payments      repository.PaymentRepository
	targets       repository.TargetRepository
	notifications repository.NotificationRepository
	activator     *targetActivator
	tr            *i18n.Translator
	alerter       adapter.Alerter
	log           *zerolog.Logger
	now           func() time.Time
}

func NewSettler(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	targets repository.TargetRepository,
	notifications repository.NotificationRepository,
	tr *i18n.Translator,
	alerter adapter.Alerter,
	logger *zerolog.Logger,
) *Settler {
	l := logger.With().Str("component", "Settler").Logger()
	return &Settler{
		tm:            tm,
		payments:      payments,
		targets:       targets,
		notifications: notifications,
		activator:     &targetActivator{targets: targets},
		tr:            tr,
		alerter:       alerter,
		log:           &l,
		now:           time.Now,
	}
}

// Transition moves an open payment to a terminal status. It locks the row,
// applies a compare-and-swap on the status and, for completions, activates
// the target and writes the owner's notification in the same transaction.
// A payment that is already terminal is returned unchanged with applied=false.
func (s *Settler) Transition(ctx context.Context, paymentID string, status model.PaymentStatus, providerResponse map[string]any) (*model.Payment, bool, error) {
	defer logging.TraceDuration(s.log, "Settler.Transition")()
	if !status.IsTerminal() {
		return nil, false, fmt.Errorf("%w: %q is not a terminal status", domain.ErrValidation, status)
	}

	var (
		out     *model.Payment
		applied bool
	)
	now := s.now()
	err := s.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		p, err := s.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		out = p
		if p.Status.IsTerminal() {
			return nil
		}

		var paidAt *time.Time
		if status == model.PaymentStatusCompleted {
			paidAt = &now
		}
		ok, err := s.payments.UpdateStatusIfOpen(ctx, tx, p.ID, status, providerResponse, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		p.Status = status
		p.PaidAt = paidAt
		p.UpdatedAt = now
		p.MergeMetadata(providerResponse)

		switch status {
		case model.PaymentStatusCompleted:
			act, err := s.activator.activate(ctx, tx, p.Target, p.Method, now)
			if err != nil {
				return fmt.Errorf("activate %s %d: %w", p.Target.Type, p.Target.ID, err)
			}
			return s.notifications.Enqueue(ctx, tx, s.completionNotice(p, act))
		case model.PaymentStatusFailed:
			if p.Target.Type == model.TargetOrder {
				return s.targets.SetOrderPaymentStatus(ctx, tx, p.Target.ID, string(model.PaymentStatusFailed), p.Method)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("transition payment %s: %w", paymentID, err)
	}

	log := logging.With(logging.WithPaymentID(ctx, out.ID), s.log)
	if !applied {
		log.Debug().Str("status", string(out.Status)).Msg("payment already settled, no-op")
		return out, false, nil
	}
	metrics.IncPayment(string(out.Method), string(status))
	log.Info().Str("status", string(status)).Str("method", string(out.Method)).Str("transaction_id", out.TransactionID).Msg("payment settled")
	if status == model.PaymentStatusCompleted {
		metrics.AddPaymentRevenue(out.Currency, out.Amount)
		s.alert(ctx, s.tr.T("alert_payment_completed", out.TransactionID, out.Amount.String(), out.Currency, out.Method.DisplayName()))
	}
	return out, true, nil
}

// alert is best effort; operators are never on the critical path.
func (s *Settler) alert(ctx context.Context, text string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, text); err != nil {
		s.log.Warn().Err(err).Msg("admin alert failed")
	}
}

func (s *Settler) completionNotice(p *model.Payment, act *Activation) *model.Notification {
	n := &model.Notification{
		UserID:    act.OwnerID,
		Link:      dashboardLink,
		EventType: EventPaymentCompleted,
		Payload:   paymentPayload(p),
	}
	switch p.Target.Type {
	case model.TargetOrder:
		n.Type = model.NotificationOrder
		n.Message = s.tr.T("notify_order_paid", p.Target.ID, p.Amount.String(), p.Currency)
	case model.TargetSubscription:
		n.Type = model.NotificationSubscription
		n.Message = s.tr.T("notify_subscription_active", act.PlanType, act.ExpiresAt.Format("02/01/2006"))
	case model.TargetPromotion:
		n.Type = model.NotificationPromotion
		n.Message = s.tr.T("notify_promotion_active", p.Target.ID, act.ExpiresAt.Format("02/01/2006"))
	}
	return n
}

func paymentPayload(p *model.Payment) map[string]any {
	return map[string]any{
		"payment_id":     p.ID,
		"transaction_id": p.TransactionID,
		"method":         string(p.Method),
		"status":         string(p.Status),
		"amount":         p.Amount.String(),
		"currency":       p.Currency,
		"target_type":    string(p.Target.Type),
		"target_id":      p.Target.ID,
	}
}
