// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package votes

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConfig holds the JetStream subscriber settings.
type NATSConfig struct {
	// URL is the NATS server address. Ignored when Embedded is true.
	URL string

	// Embedded starts an in-process JetStream server instead of
	// connecting to URL (standalone mode).
	Embedded bool

	// StoreDir is the JetStream storage directory for the embedded
	// server.
	StoreDir string

	// DurableName is the durable consumer prefix.
	DurableName string

	// QueueGroup balances consumption across engine instances.
	QueueGroup string

	// SubscribersCount is the number of parallel subscriptions.
	SubscribersCount int

	// AckWaitTimeout bounds redelivery of unacked messages.
	AckWaitTimeout time.Duration

	// MaxReconnects and ReconnectWait tune connection recovery.
	MaxReconnects int
	ReconnectWait time.Duration
}

// EmbeddedServer wraps an in-process NATS JetStream server for standalone
// deployments without external infrastructure.
type EmbeddedServer struct {
	server *natsserver.Server
}

// NewEmbeddedServer creates and starts an embedded NATS server with
// JetStream enabled. Returns an error if the server is not ready within
// 30 seconds.
func NewEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &natsserver.Options{
		ServerName: "encore-votes",
		Host:       "127.0.0.1",
		Port:       -1, // random free port
		JetStream:  true,
		StoreDir:   storeDir,
		NoLog:      true,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Shutdown stops the server, waiting for completion or context expiry.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NewNATSSubscriber creates a durable JetStream subscriber for vote
// events, configured for queue-based load balancing across instances.
func NewNATSSubscriber(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.SubscribersCount <= 0 {
		cfg.SubscribersCount = 4
	}
	if cfg.AckWaitTimeout <= 0 {
		cfg.AckWaitTimeout = 30 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1 // retry forever
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.DurableName == "" {
		cfg.DurableName = "vote-aggregator"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "aggregators"
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("vote subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("vote subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return sub, nil
}
