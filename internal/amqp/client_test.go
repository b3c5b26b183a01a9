package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.want {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), true},
		{"connection closed", fmt.Errorf("connection closed by server"), true},
		{"channel closed", fmt.Errorf("delivery channel closed"), true},
		{"unexpected EOF", fmt.Errorf("read: unexpected EOF"), true},
		{"broken pipe", fmt.Errorf("write: broken pipe"), true},
		{"closed network connection", fmt.Errorf("use of closed network connection"), true},
		{"unrelated error", fmt.Errorf("some other error"), false},
		{"validation error", fmt.Errorf("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClientCircuitBreaker(t *testing.T) {
	newClient := func() *Client {
		return &Client{
			url:          "amqp://localhost",
			exchangeName: "test_exchange",
			queueName:    "test_queue",
		}
	}

	t.Run("starts closed", func(t *testing.T) {
		client := newClient()
		if client.isCircuitOpen() {
			t.Error("new client's circuit should be closed")
		}
	})

	t.Run("success resets failures", func(t *testing.T) {
		client := newClient()
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if got := atomic.LoadInt64(&client.failureCount); got != 0 {
			t.Errorf("failureCount = %d after success, want 0", got)
		}
		if got := atomic.LoadInt32(&client.state); got != StateClosed {
			t.Errorf("state = %d after success, want StateClosed", got)
		}
	})

	t.Run("opens after max failures", func(t *testing.T) {
		client := newClient()
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}

		if got := atomic.LoadInt32(&client.state); got != StateOpen {
			t.Errorf("state = %d after %d failures, want StateOpen", got, maxFailures)
		}
		if !client.isCircuitOpen() {
			t.Error("circuit should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		client := newClient()
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("circuit should allow a probe after the open timeout")
		}
		if got := atomic.LoadInt32(&client.state); got != StateHalfOpen {
			t.Errorf("state = %d after timeout, want StateHalfOpen", got)
		}
	})

	t.Run("remains open within timeout", func(t *testing.T) {
		client := newClient()
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		if !client.isCircuitOpen() {
			t.Error("circuit should stay open before the timeout elapses")
		}
	})
}

func TestPublishPaymentUpsertCircuitOpen(t *testing.T) {
	client := &Client{
		url:          "amqp://localhost",
		exchangeName: "test_exchange",
		queueName:    "test_queue",
	}
	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()

	err := client.PublishPaymentUpsert(context.Background(), 42, 1)
	if err == nil {
		t.Fatal("expected error when circuit is open")
	}
	if !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("error = %q, want mention of open circuit breaker", err)
	}
}

func TestPublishPaymentUpsertCancelledContext(t *testing.T) {
	client := &Client{
		url:          "amqp://localhost",
		exchangeName: "test_exchange",
		queueName:    "test_queue",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.PublishPaymentUpsert(ctx, 42, 1)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewPaymentEventMessage(t *testing.T) {
	before := time.Now()
	msg := NewPaymentEventMessage(7, 3)
	after := time.Now()

	if msg.PaymentID != 7 {
		t.Errorf("PaymentID = %d, want 7", msg.PaymentID)
	}
	if msg.Version != 3 {
		t.Errorf("Version = %d, want 3", msg.Version)
	}
	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Errorf("Timestamp = %v, want between %v and %v", msg.Timestamp, before, after)
	}
}

func TestPaymentEventMessageJSON(t *testing.T) {
	original := &PaymentEventMessage{
		PaymentID: 91,
		Version:   4,
		Timestamp: time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC),
	}

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if _, ok := raw["payment_id"]; !ok {
		t.Error("JSON missing payment_id field")
	}

	decoded, err := PaymentEventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if decoded.PaymentID != original.PaymentID {
		t.Errorf("PaymentID = %d, want %d", decoded.PaymentID, original.PaymentID)
	}
	if decoded.Version != original.Version {
		t.Errorf("Version = %d, want %d", decoded.Version, original.Version)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
}

func TestPaymentEventMessageInvalidJSON(t *testing.T) {
	_, err := PaymentEventMessageFromJSON([]byte(`{"payment_id": "not_a_number", "version": 1}`))
	if err == nil {
		t.Error("expected error for mistyped payment_id")
	}

	_, err = PaymentEventMessageFromJSON([]byte(`not json at all`))
	if err == nil {
		t.Error("expected error for malformed JSON")
	}
}
