package amqp

import (
	"encoding/json"
	"time"
)

// PaymentEventMessage announces that a payment row changed. It carries only
// the ID and the version that was written; the worker reloads the row, so a
// stale message can never overwrite a newer state in the mirror.
type PaymentEventMessage struct {
	PaymentID int64     `json:"payment_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPaymentEventMessage(paymentID, version int64) *PaymentEventMessage {
	return &PaymentEventMessage{
		PaymentID: paymentID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *PaymentEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentEventMessageFromJSON(data []byte) (*PaymentEventMessage, error) {
	var msg PaymentEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
