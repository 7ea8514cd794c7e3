package model

import "time"

// PushSubscription holds a supervisor's browser push subscription. Subscribers
// receive a notification when a patrol session completes or a shift resets.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
