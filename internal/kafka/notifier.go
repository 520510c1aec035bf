package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/maauso/scenereel/internal/job"
)

// CompletionNotifier publishes job completions to a topic, keyed by request
// ID so updates for one request stay ordered.
type CompletionNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewCompletionNotifier connects a synchronous producer to brokers.
func NewCompletionNotifier(brokers []string, topic string) (*CompletionNotifier, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return NewCompletionNotifierWithProducer(producer, topic), nil
}

// NewCompletionNotifierWithProducer wraps an existing producer.
func NewCompletionNotifierWithProducer(producer sarama.SyncProducer, topic string) *CompletionNotifier {
	return &CompletionNotifier{producer: producer, topic: topic}
}

// NotifyComplete implements job.Notifier.
func (n *CompletionNotifier) NotifyComplete(_ context.Context, c job.Completion) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}

	key := c.RequestID
	if key == "" {
		key = c.JobID
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish completion for %s: %w", c.JobID, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (n *CompletionNotifier) Close() error {
	return n.producer.Close()
}

var _ job.Notifier = (*CompletionNotifier)(nil)
