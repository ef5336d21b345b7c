// Package stream connects the linker to Kafka: a consumer links observed
// places read from a topic, and a publisher forwards link events to a topic.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/places"
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Linker resolves an observed place against the catalog. placemap.Client
// satisfies it.
type Linker interface {
	Link(ctx context.Context, p *places.Place, source string) (*places.Place, linker.Outcome, error)
}

// Observation is one message on the observations topic.
type Observation struct {
	Source string        `json:"source"`
	Place  *places.Place `json:"place"`
}

// ReaderConfig configures a Kafka consumer group reader.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader creates a group reader with manual commits.
func NewReader(cfg ReaderConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.NewConfigError("kafka", "brokers, topic and group id are required", nil)
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0, // commits are synchronous and explicit
		MinBytes:       1,
		MaxBytes:       10e6,
	}), nil
}

// Stats counts what a consumer has processed.
type Stats struct {
	Messages int                    `json:"messages" yaml:"messages"`
	Invalid  int                    `json:"invalid" yaml:"invalid"`
	Failed   int                    `json:"failed" yaml:"failed"`
	Outcomes map[linker.Outcome]int `json:"-" yaml:"-"`
}

// Consumer links every observation read from Kafka.
type Consumer struct {
	reader  Reader
	linker  Linker
	logger  *zerolog.Logger
	backoff time.Duration
	stats   Stats
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *zerolog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBackoff sets the pause after a failed fetch.
func WithBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.backoff = d
	}
}

// NewConsumer creates a consumer.
func NewConsumer(r Reader, l Linker, opts ...ConsumerOption) *Consumer {
	nop := zerolog.Nop()
	c := &Consumer{
		reader:  r,
		linker:  l,
		logger:  &nop,
		backoff: time.Second,
		stats:   Stats{Outcomes: map[linker.Outcome]int{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches, links and commits until ctx is done, then closes the reader.
// Every fetched message is committed after processing, including those that
// could not be decoded or linked; those are logged and counted.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close Kafka reader")
		}
	}()

	c.logger.Info().Msg("Observation consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Int("messages", c.stats.Messages).Msg("Observation consumer stopped")
				return nil
			}
			c.logger.Error().Err(err).Msg("Failed to fetch message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.Handle(ctx, msg)

		// Commit with a detached context so a shutdown after processing still
		// records the offset.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		err = c.reader.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			c.logger.Error().Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Failed to commit offset")
		}
	}
}

// Handle decodes and links one message.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	c.stats.Messages++
	logger := c.logger.With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	var obs Observation
	if err := json.Unmarshal(msg.Value, &obs); err != nil {
		c.stats.Invalid++
		logger.Warn().Err(err).Msg("Skipping undecodable observation")
		return
	}
	if obs.Source == "" || obs.Place == nil {
		c.stats.Invalid++
		logger.Warn().Msg("Skipping observation without source or place")
		return
	}

	place, outcome, err := c.linker.Link(ctx, obs.Place, obs.Source)
	c.stats.Outcomes[outcome]++
	if err != nil {
		c.stats.Failed++
		logger.Warn().Err(err).
			Str("source", obs.Source).
			Str("name", obs.Place.Name).
			Msg("Failed to link observation")
		return
	}
	logger.Debug().
		Str("source", obs.Source).
		Str("place_id", place.ID).
		Stringer("outcome", outcome).
		Msg("Observation linked")
}

// Stats returns a copy of the counters. It is not safe to call while Run is
// active.
func (c *Consumer) Stats() Stats {
	s := c.stats
	s.Outcomes = make(map[linker.Outcome]int, len(c.stats.Outcomes))
	for k, v := range c.stats.Outcomes {
		s.Outcomes[k] = v
	}
	return s
}
