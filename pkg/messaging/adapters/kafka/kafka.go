// Package kafka provides a Kafka-backed implementation of pkg/messaging
// using IBM/sarama.
package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/chris-alexander-pop/streamwork/pkg/messaging"
)

// Config configures the Kafka broker.
type Config struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	GroupID string   `env:"KAFKA_GROUP_ID" env-default:"default"`
}

// Broker implements messaging.Broker backed by a Sarama client.
type Broker struct {
	cfg    Config
	client sarama.Client
}

// New dials the given Kafka brokers and returns a Broker.
func New(cfg Config) (*Broker, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}

	return &Broker{cfg: cfg, client: client}, nil
}

func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	syncProducer, err := sarama.NewSyncProducerFromClient(b.client)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	return &producer{broker: b, topic: topic, producer: syncProducer}, nil
}

func (b *Broker) Consumer(topic string, group string) (messaging.Consumer, error) {
	if group == "" {
		group = b.cfg.GroupID
	}
	consumerGroup, err := sarama.NewConsumerGroupFromClient(group, b.client)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	return &groupConsumer{topic: topic, group: consumerGroup}, nil
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func (b *Broker) Healthy(ctx context.Context) bool {
	return !b.client.Closed()
}

// groupConsumer adapts a sarama.ConsumerGroup to messaging.Consumer.
type groupConsumer struct {
	topic string
	group sarama.ConsumerGroup
}

func (c *groupConsumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	h := &consumerGroupHandler{handler: handler}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			return messaging.ErrConsumeFailed(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *groupConsumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler messaging.MessageHandler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			m := &messaging.Message{
				Topic:   msg.Topic,
				Key:     msg.Key,
				Payload: msg.Value,
				Headers: headerMap(msg.Headers),
				Metadata: messaging.MessageMetadata{
					Partition: msg.Partition,
					Offset:    msg.Offset,
					Raw:       msg,
				},
			}
			for _, h := range msg.Headers {
				if string(h.Key) == "message-id" {
					m.ID = string(h.Value)
				}
			}

			if err := h.handler(session.Context(), m); err != nil {
				return err
			}
			session.MarkMessage(msg, "")
		}
	}
}

func headerMap(headers []*sarama.RecordHeader) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[string(h.Key)] = string(h.Value)
	}
	return out
}
