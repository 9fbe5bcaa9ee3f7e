// Package kafka adapts pkg/messaging's Sarama-backed broker into a
// transport.Transport, giving the outbox/inbox workers a durable,
// at-least-once Reliable transport without a second Kafka client wiring.
package kafka

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/messaging"
	kafkamessaging "github.com/chris-alexander-pop/streamwork/pkg/messaging/adapters/kafka"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
)

// envelopeTypeHeader carries the message's type discriminator out-of-band
// on the transport message, per spec.md §6.
const envelopeTypeHeader = "envelope-type"

// Config configures the Kafka-backed transport.
type Config = kafkamessaging.Config

// Transport adapts a messaging.Broker to transport.Transport.
type Transport struct {
	broker *kafkamessaging.Broker
}

// New dials Kafka and returns a transport.Transport.
func New(cfg Config) (*Transport, error) {
	broker, err := kafkamessaging.New(cfg)
	if err != nil {
		return nil, transport.ErrConnectionFailed(err)
	}
	return &Transport{broker: broker}, nil
}

func (t *Transport) Publish(ctx context.Context, env envelope.Envelope, destination string, envelopeType string) error {
	data, err := env.Marshal()
	if err != nil {
		return transport.ErrPublishFailed(err)
	}

	producer, err := t.broker.Producer(destination)
	if err != nil {
		return transport.ErrPublishFailed(err)
	}
	defer producer.Close()

	if err := producer.Publish(ctx, &messaging.Message{
		ID:      env.MessageID,
		Topic:   destination,
		Payload: data,
		Headers: map[string]string{"message-id": env.MessageID, envelopeTypeHeader: envelopeType},
	}); err != nil {
		return transport.ErrPublishFailed(err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, destination string, handler transport.Handler) (transport.Subscription, error) {
	consumer, err := t.broker.Consumer(destination, "")
	if err != nil {
		return nil, transport.ErrSubscribeFailed(err)
	}

	sub := &subscription{consumer: consumer}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		_ = consumer.Consume(sub.ctx(), func(ctx context.Context, msg *messaging.Message) error {
			if sub.isPaused() {
				return nil
			}
			env, err := envelope.Unmarshal(msg.Payload)
			if err != nil {
				return err
			}
			return handler(ctx, env, msg.Headers[envelopeTypeHeader])
		})
	}()
	return sub, nil
}

func (t *Transport) Capabilities() transport.Capability {
	return transport.PublishSubscribe | transport.Reliable
}

func (t *Transport) Ready(ctx context.Context) bool {
	return t.broker.Healthy(ctx)
}

func (t *Transport) Close() error {
	return t.broker.Close()
}

type subscription struct {
	consumer messaging.Consumer

	mu       sync.Mutex
	paused   bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	disposed bool
}

func (s *subscription) ctx() context.Context {
	c, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return c
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
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := s.consumer.Close()
	s.wg.Wait()
	return err
}
