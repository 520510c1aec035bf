// Package kafka connects the movie service to Kafka: creation requests are
// consumed from one topic and completions are published to another.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/maauso/scenereel/internal/retry"
)

var errUnmarked = errors.New("handler left message unmarked")

// MessageHandler processes one consumed message. When shouldMark is false
// the message is retried, and if it keeps failing the claim is abandoned so
// the group resumes from the last committed offset.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  *slog.Logger
	// Retry bounds in-session retries of a failing message.
	// DefaultRetryPolicy is used when MaxAttempts is zero.
	Retry retry.Policy
}

// DefaultRetryPolicy retries a failing message three times with backoff.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Delay: time.Second, Multiplier: 2}
}

// Consumer reads a topic as part of a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	retry   retry.Policy
	topic   string
	groupID string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer group client for cfg.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return newConsumer(group, cfg), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		retry:   policy,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		logger:  logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
}

// Start consumes in the background until ctx is cancelled. It returns once
// the first session is set up, or with ctx's error if that never happens.
func (c *Consumer) Start(ctx context.Context) error {
	ready := make(chan struct{})
	handler := &groupHandler{handler: c.handler, retry: c.retry, logger: c.logger, ready: ready}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
					return
				}
				c.logger.Error("consume failed", slog.Any("error", err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", slog.Any("error", err))
		}
	}()

	select {
	case <-ready:
		c.logger.Info("kafka consumer started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the group and waits for the background loops.
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	handler MessageHandler
	retry   retry.Policy
	logger  *slog.Logger

	once  sync.Once
	ready chan struct{}
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.logger.Debug("message received",
				slog.Int("partition", int(message.Partition)),
				slog.Int64("offset", message.Offset),
				slog.String("key", string(message.Key)),
			)

			shouldMark, err := h.handle(session.Context(), message)
			if shouldMark {
				if err != nil {
					h.logger.Warn("skipping message",
						slog.Int64("offset", message.Offset),
						slog.Any("error", err),
					)
				}
				session.MarkMessage(message, "")
				continue
			}
			if session.Context().Err() != nil {
				return nil
			}

			// Marking a later offset would commit past this message, so the
			// claim stops here and the partition is replayed from it.
			h.logger.Error("failed to handle message, abandoning claim",
				slog.Int("partition", int(message.Partition)),
				slog.Int64("offset", message.Offset),
				slog.Any("error", err),
			)
			return fmt.Errorf("handle message at %s/%d/%d: %w", message.Topic, message.Partition, message.Offset, err)

		case <-session.Context().Done():
			return nil
		}
	}
}

// handle runs the handler under the retry policy until it asks for the
// message to be marked.
func (h *groupHandler) handle(ctx context.Context, message *sarama.ConsumerMessage) (bool, error) {
	var mark bool
	err := retry.Do(ctx, h.retry, func(ctx context.Context, attempt int) error {
		var err error
		mark, err = h.handler.HandleMessage(ctx, message.Value)
		if mark {
			return retry.Permanent(err)
		}
		if err == nil {
			err = errUnmarked
		}
		if attempt < h.retry.MaxAttempts {
			h.logger.Warn("retrying message",
				slog.Int64("offset", message.Offset),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return err
	})
	return mark, err
}

// TypedMessageHandler decodes JSON messages into T before processing them.
type TypedMessageHandler[T any] struct {
	// Validate rejects messages that must not be processed.
	Validate func(msg *T) error
	// Process handles a decoded, valid message.
	Process func(ctx context.Context, msg *T) error
	// AlwaysMark marks undecodable and invalid messages so they are skipped.
	AlwaysMark bool
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		return h.AlwaysMark, fmt.Errorf("decode message: %w", err)
	}

	if h.Validate != nil {
		if err := h.Validate(&msg); err != nil {
			return h.AlwaysMark, fmt.Errorf("invalid message: %w", err)
		}
	}

	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}

var _ MessageHandler = (*TypedMessageHandler[struct{}])(nil)
