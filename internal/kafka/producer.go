package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// SpotEvent is the audit feed entry published on every spot status
// change, movement or reservation transition. Reporting and ticketing
// collaborators consume it.
type SpotEvent struct {
	Type            string    `json:"type"`
	FacilityID      int64     `json:"facility_id"`
	SpotNumber      int       `json:"spot_number,omitempty"`
	Plate           string    `json:"plate,omitempty"`
	OccupancyID     string    `json:"occupancy_id,omitempty"`
	ReservationCode string    `json:"reservation_code,omitempty"`
	PriorStatus     string    `json:"prior_status,omitempty"`
	NewStatus       string    `json:"new_status,omitempty"`
	Actor           string    `json:"actor,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
