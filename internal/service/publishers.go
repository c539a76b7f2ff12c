package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/streetgottalent/vote-payments/internal/models"
)

// KafkaAuditPublisher writes verification and effect outcomes to the audit
// topic, keyed by reference so one payment's events stay ordered.
type KafkaAuditPublisher struct {
	writer *kafka.Writer
}

func NewKafkaAuditPublisher(writer *kafka.Writer) *KafkaAuditPublisher {
	return &KafkaAuditPublisher{writer: writer}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Reference),
		Value: payload,
	})
}

// NatsTallyPublisher fans out live vote totals on votes.updated.<contestant>.
type NatsTallyPublisher struct {
	nc *nats.Conn
}

func NewNatsTallyPublisher(nc *nats.Conn) *NatsTallyPublisher {
	return &NatsTallyPublisher{nc: nc}
}

func (p *NatsTallyPublisher) PublishVoteTally(contestantID string, votes int64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"contestant_id": contestantID,
		"votes":         votes,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(fmt.Sprintf("votes.updated.%s", contestantID), payload)
}
