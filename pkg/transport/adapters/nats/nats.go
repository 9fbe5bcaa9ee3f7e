// Package nats implements transport.Transport over nats.go core pub/sub.
package nats

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/nats-io/nats.go"
)

// Config configures the NATS transport.
type Config struct {
	URL string `env:"NATS_URL" env-default:"nats://localhost:4222"`
}

// Transport implements transport.Transport over a nats.Conn.
type Transport struct {
	conn *nats.Conn
}

// New dials the NATS server at cfg.URL.
func New(cfg Config) (*Transport, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, transport.ErrConnectionFailed(err)
	}
	return &Transport{conn: conn}, nil
}

// envelopeTypeHeader carries the message's type discriminator out-of-band
// on the NATS message header, per spec.md §6.
const envelopeTypeHeader = "Envelope-Type"

func (t *Transport) Publish(ctx context.Context, env envelope.Envelope, destination string, envelopeType string) error {
	data, err := env.Marshal()
	if err != nil {
		return transport.ErrPublishFailed(err)
	}
	msg := &nats.Msg{Subject: destination, Data: data, Header: nats.Header{envelopeTypeHeader: []string{envelopeType}}}
	if err := t.conn.PublishMsg(msg); err != nil {
		return transport.ErrPublishFailed(err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, destination string, handler transport.Handler) (transport.Subscription, error) {
	sub := &subscription{}

	natsSub, err := t.conn.Subscribe(destination, func(msg *nats.Msg) {
		if sub.isPaused() {
			return
		}
		env, err := envelope.Unmarshal(msg.Data)
		if err != nil {
			return
		}
		_ = handler(context.Background(), env, msg.Header.Get(envelopeTypeHeader))
	})
	if err != nil {
		return nil, transport.ErrSubscribeFailed(err)
	}

	sub.natsSub = natsSub
	return sub, nil
}

func (t *Transport) Capabilities() transport.Capability {
	return transport.PublishSubscribe | transport.RequestResponse
}

func (t *Transport) Ready(ctx context.Context) bool {
	return t.conn.IsConnected()
}

func (t *Transport) Close() error {
	t.conn.Close()
	return nil
}

// Send implements transport.Responder using NATS's native request/reply.
func (t *Transport) Send(ctx context.Context, env envelope.Envelope, destination string) (envelope.Envelope, error) {
	data, err := env.Marshal()
	if err != nil {
		return envelope.Envelope{}, transport.ErrPublishFailed(err)
	}

	msg, err := t.conn.RequestWithContext(ctx, destination, data)
	if err != nil {
		return envelope.Envelope{}, transport.ErrPublishFailed(err)
	}

	return envelope.Unmarshal(msg.Data)
}

type subscription struct {
	natsSub *nats.Subscription

	mu     sync.Mutex
	paused bool
}

func (s *subscription) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *subscription) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *subscription) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

func (s *subscription) Dispose() error {
	if !s.natsSub.IsValid() {
		return nil
	}
	return s.natsSub.Unsubscribe()
}
