// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
events.go - Update Completion Events

After each region's update pass the orchestrator publishes an event
describing what was refreshed: the season, the queue/league task
contexts, and whether the data is "fresh" (current season, fetched via
the standard route, no redirects). Downstream services (clan tracking,
role sync, archival) consume these to react without polling.

Transport is Watermill: NATS JetStream in production, an in-process Go
channel in tests and single-binary deployments.
*/

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/logging"
	"github.com/sc2-pulse/laddersync/internal/metrics"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// UpdateEvent describes one completed region update pass.
type UpdateEvent struct {
	ID          string                    `json:"id"`
	Region      models.Region             `json:"region"`
	Season      models.Season             `json:"season"`
	TaskContext *models.LadderTaskContext `json:"taskContext,omitempty"`

	// Fresh is true only when the current season was refreshed through
	// the standard route; consumers use it to decide whether the data is
	// authoritative for real-time features.
	Fresh bool `json:"fresh"`

	CompletedAt time.Time `json:"completedAt"`
}

// Publisher publishes update events to a topic.
type Publisher struct {
	pub   message.Publisher
	topic string
}

// NewNATSPublisher connects to the configured NATS server and returns a
// publisher over JetStream with message-id deduplication.
func NewNATSPublisher(cfg config.NATSConfig) (*Publisher, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return &Publisher{pub: pub, topic: cfg.Topic}, nil
}

// NewChannelPublisher returns an in-process publisher plus the subscriber
// side of the same channel. Used in tests and when NATS is disabled.
func NewChannelPublisher(topic string) (*Publisher, message.Subscriber) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewStdLogger(false, false))
	return &Publisher{pub: ch, topic: topic}, ch
}

// PublishUpdate publishes one update event. Failures are surfaced to the
// caller but must not abort the update run that produced them.
func (p *Publisher) PublishUpdate(ctx context.Context, event UpdateEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("failure").Inc()
		return fmt.Errorf("marshal update event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("region", event.Region.String())
	msg.Metadata.Set("fresh", fmt.Sprintf("%t", event.Fresh))

	if err := p.pub.Publish(p.topic, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("failure").Inc()
		return fmt.Errorf("publish update event for %s: %w", event.Region, err)
	}

	metrics.EventsPublished.WithLabelValues("success").Inc()
	logging.Debug().
		Str("event_id", event.ID).
		Str("region", event.Region.String()).
		Bool("fresh", event.Fresh).
		Msg("update event published")
	return nil
}

// Close releases the underlying transport.
func (p *Publisher) Close() error {
	return p.pub.Close()
}
