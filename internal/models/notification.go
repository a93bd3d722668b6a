package models

import "time"

// NotificationType groups notifications for client rendering.
type NotificationType string

const (
	NotificationTypeRequest   NotificationType = "request"
	NotificationTypeResponse  NotificationType = "response"
	NotificationTypeInfo      NotificationType = "info"
	NotificationTypeAlert     NotificationType = "alert"
	NotificationTypeTimetable NotificationType = "timetable"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Type        NotificationType `db:"type" json:"type"`
	Link        string           `db:"link" json:"link,omitempty"`
	RelatedID   string           `db:"related_id" json:"related_id,omitempty"`
	Read        bool             `db:"read" json:"read"`
	ActionTaken bool             `db:"action_taken" json:"action_taken"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a recipient's inbox.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}
