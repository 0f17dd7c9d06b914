// Package ledger submits product hashes to the anchoring pipeline for
// tamper-evidence.
//
// The anchoring service is treated as at-least-once and eventually
// consistent: submissions are published to a broker topic consumed by the
// ledger gateway. A failed or slow submission never blocks product
// registration -- the caller records the product with a pending anchor
// status and moves on.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// AnchorPayload is the record submitted for anchoring.
type AnchorPayload struct {
	TransactionID string    `json:"transaction_id"`
	ProductID     string    `json:"product_id"`
	CompanyID     string    `json:"company_id"`
	QRHash        string    `json:"qr_hash"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AnchorResult identifies a completed submission.
type AnchorResult struct {
	TransactionID string `json:"transaction_id"`
	TopicID       string `json:"topic_id"`
}

// Anchorer submits product payloads for ledger anchoring.
type Anchorer interface {
	Submit(ctx context.Context, productID, companyID, qrHash string) (*AnchorResult, error)
	Close() error
}

// KafkaAnchorer publishes anchor submissions to a Kafka topic. The
// transaction id is a client-generated UUID echoed inside the published
// record, so the gateway and the record store agree on identity even with
// at-least-once delivery.
type KafkaAnchorer struct {
	writer  *kafka.Writer
	topic   string
	timeout time.Duration
}

// NewKafkaAnchorer builds an anchorer for the given brokers and topic. The
// timeout bounds each submission; a hung broker surfaces as an error after
// it elapses rather than stalling the caller.
func NewKafkaAnchorer(brokers, topic string, timeout time.Duration) *KafkaAnchorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaAnchorer{writer: writer, topic: topic, timeout: timeout}
}

func (a *KafkaAnchorer) Submit(ctx context.Context, productID, companyID, qrHash string) (*AnchorResult, error) {
	payload := AnchorPayload{
		TransactionID: uuid.New().String(),
		ProductID:     productID,
		CompanyID:     companyID,
		QRHash:        qrHash,
		SubmittedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode anchor payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(qrHash),
		Value: value,
		Time:  payload.SubmittedAt,
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to submit anchor: %w", err)
	}

	return &AnchorResult{TransactionID: payload.TransactionID, TopicID: a.topic}, nil
}

func (a *KafkaAnchorer) Close() error {
	return a.writer.Close()
}

// Noop is an Anchorer for environments without a broker; every submission
// succeeds with a synthetic transaction id.
type Noop struct{}

func (Noop) Submit(ctx context.Context, productID, companyID, qrHash string) (*AnchorResult, error) {
	return &AnchorResult{TransactionID: uuid.New().String(), TopicID: "noop"}, nil
}

func (Noop) Close() error { return nil }
