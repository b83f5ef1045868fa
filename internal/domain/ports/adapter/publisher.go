package adapter

import (
	"context"

	"mymedaga-payments/internal/domain/model"
)

// NotificationPublisher delivers a committed notification to downstream consumers.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// Alerter pushes operator-facing messages (security events, completions).
type Alerter interface {
	Alert(ctx context.Context, text string) error
}
