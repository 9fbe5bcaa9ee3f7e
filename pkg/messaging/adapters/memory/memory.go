// Package memory provides an in-process Broker implementation of
// pkg/messaging, used for tests and for single-instance deployments that
// don't need a real broker.
package memory

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/messaging"
	"github.com/google/uuid"
)

// Config configures the in-memory broker.
type Config struct {
	// BufferSize is the channel buffer depth for each topic.
	BufferSize int
}

// Broker implements messaging.Broker with in-process channels.
type Broker struct {
	cfg Config

	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	ch chan *messaging.Message
}

// New creates a new in-memory broker.
func New(cfg Config) *Broker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Broker{cfg: cfg, topics: make(map[string]*topic)}
}

func (b *Broker) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{ch: make(chan *messaging.Message, b.cfg.BufferSize)}
		b.topics[name] = t
	}
	return t
}

func (b *Broker) Producer(topicName string) (messaging.Producer, error) {
	return &producer{broker: b, topic: topicName}, nil
}

func (b *Broker) Consumer(topicName string, group string) (messaging.Consumer, error) {
	return &consumer{broker: b, topic: topicName, stop: make(chan struct{})}, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, t := range b.topics {
		close(t.ch)
	}
	return nil
}

func (b *Broker) Healthy(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

type producer struct {
	broker *Broker
	topic  string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	t := p.broker.topicFor(p.topic)
	select {
	case t.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) PublishBatch(ctx context.Context, msgs []*messaging.Message) error {
	for _, m := range msgs {
		if err := p.Publish(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *producer) Close() error { return nil }

type consumer struct {
	broker *Broker
	topic  string
	stop   chan struct{}
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	t := c.broker.topicFor(c.topic)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case msg, ok := <-t.ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (c *consumer) Close() error {
	close(c.stop)
	return nil
}
