package entity

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationOTPIssued     NotificationType = "otp_issued"
	NotificationMFAChanged    NotificationType = "mfa_changed"
	NotificationPasswordReset NotificationType = "password_reset"
)

type Notification struct {
	BaseSimple
	UserID uuid.UUID        `db:"user_id"`
	Type   NotificationType `db:"type"`
	Title  string           `db:"title"`
	Body   string           `db:"body"`
	ReadAt *time.Time       `db:"read_at"`
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
