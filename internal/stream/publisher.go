package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/agentstation/placemap/internal/server/events"
	"github.com/agentstation/placemap/pkg/errors"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterConfig configures the events topic writer.
type WriterConfig struct {
	Brokers []string
	Topic   string
	Logger  *zerolog.Logger
}

// NewWriter creates an asynchronous writer keyed by place id so that events
// for one place stay ordered within a partition. Delivery failures are logged.
func NewWriter(cfg WriterConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.NewConfigError("kafka", "brokers and topic are required", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(msgs)).Msg("Failed to deliver link events")
			}
		},
	}, nil
}

// Publisher forwards broker events to a Kafka topic. It implements
// events.Subscriber.
type Publisher struct {
	writer  MessageWriter
	logger  *zerolog.Logger
	timeout time.Duration
}

var _ events.Subscriber = (*Publisher)(nil)

// NewPublisher wraps w.
func NewPublisher(w MessageWriter, logger *zerolog.Logger) *Publisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{writer: w, logger: logger, timeout: 5 * time.Second}
}

// Send encodes the event as JSON and writes it with the event type as a
// header and the place id, when known, as the key.
func (p *Publisher) Send(event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.WrapParse("json", "", err)
	}

	msg := kafka.Message{
		Key:   []byte(placeKey(event.Data)),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to publish event")
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// placeKey extracts the place id from event payloads shaped like
// {"place": {"id": ...}}. Unknown shapes yield an empty key.
func placeKey(data any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	var probe struct {
		Place struct {
			ID string `json:"id"`
		} `json:"place"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Place.ID
}
