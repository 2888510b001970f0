package models

import (
	"time"
)

const (
	CallbackRejected = 0
	CallbackAccepted = 1
)

// CallbackLog is an append-only audit row per inbound gateway notification,
// kept whether or not the notification could be reconciled.
type CallbackLog struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Request           string    `gorm:"column:request;type:longtext" json:"request"`
	Response          string    `gorm:"column:response;type:longtext" json:"response"`
	Status            int       `gorm:"column:status;default:0" json:"status"`
	RequestType       string    `gorm:"column:request_type;size:50" json:"request_type"`
	CheckoutRequestID string    `gorm:"column:checkout_request_id;size:100;index" json:"checkout_request_id"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}
