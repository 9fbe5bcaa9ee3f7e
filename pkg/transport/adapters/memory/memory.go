// Package memory is an in-process Transport, used in tests and for
// single-process deployments where outbox and inbox share an address space.
package memory

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
)

// Transport is an in-memory transport.Transport.
type Transport struct {
	mu   sync.RWMutex
	subs map[string][]*subscription
}

// New returns an empty in-memory transport.
func New() *Transport {
	return &Transport{subs: make(map[string][]*subscription)}
}

func (t *Transport) Publish(ctx context.Context, env envelope.Envelope, destination string, envelopeType string) error {
	t.mu.RLock()
	subs := append([]*subscription(nil), t.subs[destination]...)
	t.mu.RUnlock()

	for _, sub := range subs {
		if sub.isPaused() {
			continue
		}
		if err := sub.handler(ctx, env, envelopeType); err != nil {
			return transport.ErrPublishFailed(err)
		}
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, destination string, handler transport.Handler) (transport.Subscription, error) {
	sub := &subscription{transport: t, destination: destination, handler: handler}

	t.mu.Lock()
	t.subs[destination] = append(t.subs[destination], sub)
	t.mu.Unlock()

	return sub, nil
}

func (t *Transport) Capabilities() transport.Capability {
	return transport.PublishSubscribe
}

func (t *Transport) Ready(ctx context.Context) bool {
	return true
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = make(map[string][]*subscription)
	return nil
}

type subscription struct {
	transport   *Transport
	destination string
	handler     transport.Handler

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
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	subs := s.transport.subs[s.destination]
	for i, other := range subs {
		if other == s {
			s.transport.subs[s.destination] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
