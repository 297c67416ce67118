package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"buildwatch/src/logger"
)

const (
	// clientID identifies buildwatch in broker logs and quotas.
	clientID = "buildwatch"

	// deliveryTimeout bounds how long one event may wait for acknowledgement.
	// Transition events are small and rare; a stuck broker must not pile them up.
	deliveryTimeout = 10 * time.Second

	// pingTimeout bounds the connectivity check made on construction.
	pingTimeout = 5 * time.Second

	// consumerBuffer is the channel depth handed to subscribers.
	consumerBuffer = 64
)

var errClosed = errors.New("broker is closed")

// RedpandaBroker is a Kafka-compatible broker using franz-go. One producer
// client is shared by all publishers; each subscription gets its own
// consumer-group client that is closed when the subscription's context ends.
type RedpandaBroker struct {
	client  *kgo.Client
	brokers []string
	log     logger.Logger

	mu        sync.Mutex
	consumers map[string]*kgo.Client // topic:group
	closed    bool
}

// NewRedpandaBroker connects to the given seed brokers (e.g. "localhost:19092")
// and fails fast when none of them answer.
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating Kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("no broker reachable at %v: %w", brokers, err)
	}

	log.Info("[Redpanda] connected to %v", brokers)
	return &RedpandaBroker{
		client:    client,
		brokers:   brokers,
		log:       log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish produces value to topic synchronously so the caller sees delivery
// failures. The key selects the partition, which keeps one build's
// transitions in order.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errClosed
	}

	record := &kgo.Record{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: "content-type", Value: []byte("application/json")}},
	}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins groupID on topic, starting at the end of the log: only
// events produced from now on are delivered. The channel closes when ctx is
// done or the broker is closed.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errClosed
	}

	key := topic + ":" + groupID
	if _, exists := b.consumers[key]; exists {
		return nil, fmt.Errorf("already subscribed to %s as group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating consumer for %s: %w", topic, err)
	}
	b.consumers[key] = consumer

	out := make(chan Message, consumerBuffer)
	go b.consume(ctx, key, consumer, out)
	return out, nil
}

func (b *RedpandaBroker) consume(ctx context.Context, key string, consumer *kgo.Client, out chan<- Message) {
	defer close(out)
	defer b.release(key, consumer)

	for ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				b.log.Warn("[Redpanda] fetch error on %s/%d: %v", topic, partition, err)
			}
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			r := iter.Next()
			msg := Message{
				Topic:     r.Topic,
				Key:       string(r.Key),
				Value:     r.Value,
				Offset:    r.Offset,
				Partition: r.Partition,
				Timestamp: r.Timestamp.UnixMilli(),
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// release forgets a finished subscription and leaves its consumer group.
func (b *RedpandaBroker) release(key string, consumer *kgo.Client) {
	b.mu.Lock()
	current, ok := b.consumers[key]
	if ok && current == consumer {
		delete(b.consumers, key)
	}
	b.mu.Unlock()

	if ok && current == consumer {
		consumer.Close()
	}
}

// Close shuts down every consumer and the producer. Safe to call twice.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := b.consumers
	b.consumers = make(map[string]*kgo.Client)
	b.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	b.client.Close()
	return nil
}
