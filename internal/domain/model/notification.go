package model

import "time"

type NotificationType string

const (
	NotificationOrder        NotificationType = "order"
	NotificationSubscription NotificationType = "subscription"
	NotificationPromotion    NotificationType = "promotion"
)

// Notification is an in-app message that doubles as an outbox row until published.
type Notification struct {
	ID          int64
	UserID      int64
	Type        NotificationType
	Message     string
	Link        string
	EventType   string
	Payload     map[string]any
	PublishedAt *time.Time
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}
