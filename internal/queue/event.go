// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

import (
	"time"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

// DeliveryQueueName is the default durable queue carrying passcodes
// waiting to be emailed.
const DeliveryQueueName = "otp.delivery"

// OTPDeliveryEvent is published when a passcode has been stored and must
// be sent out of band.  It carries everything the consumer needs so it
// never touches the primary database.
type OTPDeliveryEvent struct {
	MessageID   string        `json:"message_id"`
	AccountID   uint64        `json:"account_id"`
	Destination string        `json:"destination"`
	Purpose     model.Purpose `json:"purpose"`
	Code        string        `json:"code"`
	IssuedAt    time.Time     `json:"issued_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// NewOTPDeliveryEvent wraps msg for publishing.
func NewOTPDeliveryEvent(msg model.OutOfBandMessage, at time.Time) OTPDeliveryEvent {
	return OTPDeliveryEvent{
		MessageID:   msg.ID,
		AccountID:   msg.AccountID,
		Destination: msg.Destination,
		Purpose:     msg.Purpose,
		Code:        msg.Code,
		IssuedAt:    at.UTC(),
		ExpiresAt:   msg.ExpiresAt.UTC(),
	}
}

// Message converts the event back into the delivery collaborator's input.
func (e OTPDeliveryEvent) Message() model.OutOfBandMessage {
	return model.OutOfBandMessage{
		ID:          e.MessageID,
		AccountID:   e.AccountID,
		Destination: e.Destination,
		Purpose:     e.Purpose,
		Code:        e.Code,
		ExpiresAt:   e.ExpiresAt,
	}
}
