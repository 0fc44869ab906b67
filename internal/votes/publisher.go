// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/encorehq/encore/internal/models"
)

// Publisher emits vote signals onto the event bus. The voting service
// embeds one of these; tests and backfill tooling use it against the
// embedded server.
type Publisher struct {
	publisher message.Publisher
	topic     string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps an existing watermill publisher. An empty topic
// defaults to DefaultTopic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{publisher: pub, topic: topic}
}

// NewNATSPublisher creates a JetStream publisher with message-ID
// deduplication enabled.
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1 // retry forever
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("vote publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("vote publisher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return NewPublisher(pub, DefaultTopic), nil
}

// PublishVote marshals and publishes a vote signal. The message UUID
// doubles as the Nats-Msg-Id so JetStream deduplicates redelivered
// publishes.
func (p *Publisher) PublishVote(signal models.VoteSignal) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("vote publisher is closed")
	}
	p.mu.RUnlock()

	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal vote signal: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish vote signal: %w", err)
	}
	return nil
}

// Close closes the underlying publisher. Subsequent publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
