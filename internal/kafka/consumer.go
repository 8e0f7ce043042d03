package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Consumer reads the spot event feed for the worker process. Group
// coordination knobs come from config so a facility running many
// worker replicas can trade rebalance speed against broker chatter.
type Consumer struct {
	reader *kafka.Reader
}

type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topic             string
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
}

const (
	defaultHeartbeatInterval = 3 * time.Second
	defaultSessionTimeout    = 30 * time.Second
)

func NewConsumer(cfg ConsumerConfig) *Consumer {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	session := cfg.SessionTimeout
	if session <= 0 {
		session = defaultSessionTimeout
	}

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           cfg.Brokers,
			GroupID:           cfg.GroupID,
			Topic:             cfg.Topic,
			HeartbeatInterval: heartbeat,
			SessionTimeout:    session,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads messages until the context is canceled or the handler
// fails. A handler error stops the loop so the worker restarts from the
// committed offset rather than skipping the event.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}
