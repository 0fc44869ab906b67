// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/encorehq/encore/internal/metrics"
	"github.com/encorehq/encore/internal/models"
)

// DefaultTopic is the subject vote-cast events are published on.
const DefaultTopic = "votes.cast"

// Consumer reads vote-cast events from a Watermill subscriber and feeds
// them to the aggregator. It implements suture.Service.
type Consumer struct {
	subscriber message.Subscriber
	topic      string
	aggregator *Aggregator
	logger     zerolog.Logger
}

// NewConsumer creates a consumer for the given subscriber and topic.
// An empty topic uses DefaultTopic.
func NewConsumer(sub message.Subscriber, topic string, agg *Aggregator, logger zerolog.Logger) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Consumer{
		subscriber: sub,
		topic:      topic,
		aggregator: agg,
		logger:     logger,
	}
}

// Serve consumes vote events until the context is canceled.
//
// Malformed payloads are acked and dropped with a warning rather than
// redelivered forever; the raw vote store of record lives outside the
// engine, so a dropped signal only delays a velocity update.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	c.logger.Info().Str("topic", c.topic).Msg("vote consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			c.handle(msg)
		}
	}
}

// handle decodes and records a single vote message.
func (c *Consumer) handle(msg *message.Message) {
	var sig models.VoteSignal
	if err := json.Unmarshal(msg.Payload, &sig); err != nil {
		metrics.VoteEventsMalformed.Inc()
		c.logger.Warn().
			Err(err).
			Str("message_id", msg.UUID).
			Msg("dropping malformed vote event")
		msg.Ack()
		return
	}

	c.aggregator.Record(sig)
	msg.Ack()
}

func (c *Consumer) String() string { return "vote-consumer" }
