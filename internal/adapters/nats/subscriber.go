package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// Subscriber consumes service events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeCatalogueUpdated calls handler for each catalogue update published
// after the subscription starts. Every subscriber instance gets every event.
func (s *Subscriber) SubscribeCatalogueUpdated(ctx context.Context, handler func(ctx context.Context, result *domain.ImportResult) error) error {
	sub, err := s.js.Subscribe(SubjectCatalogueUpdated, func(msg *nats.Msg) {
		var res domain.ImportResult
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &res); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
