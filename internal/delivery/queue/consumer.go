package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
)

const (
	connectionTag = "fleetview"
	consumerTag   = "position-consumer"
	batchSize     = 50
	batchTimeout  = time.Second
	pollDuration  = time.Second
)

// PositionConsumer decodes JSON position updates from a Redis queue and
// publishes them. A single batch consumer keeps the queue's order, which
// is the order updates of one vehicle must be applied in.
type PositionConsumer struct {
	publisher domain.Publisher
	ctx       context.Context
}

// NewPositionConsumer creates a consumer publishing to publisher
func NewPositionConsumer(ctx context.Context, publisher domain.Publisher) *PositionConsumer {
	return &PositionConsumer{publisher: publisher, ctx: ctx}
}

// Consume implements rmq.BatchConsumer
func (c *PositionConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		c.consumeOne(delivery)
	}
}

func (c *PositionConsumer) consumeOne(delivery rmq.Delivery) {
	var u domain.PositionUpdate
	if err := json.Unmarshal([]byte(delivery.Payload()), &u); err != nil {
		log.Warn().Err(err).Msg("Rejecting undecodable position update")
		observability.QueueDeliveries.WithLabelValues("reject").Inc()
		if err := delivery.Reject(); err != nil {
			log.Error().Err(err).Msg("Failed to reject delivery")
		}
		return
	}

	n := c.publisher.Publish(c.ctx, u)
	log.Debug().Str("vehicle", u.VehicleID).Int("sessions", n).Msg("Position update consumed")

	observability.QueueDeliveries.WithLabelValues("ack").Inc()
	if err := delivery.Ack(); err != nil {
		log.Error().Err(err).Str("vehicle", u.VehicleID).Msg("Failed to ack delivery")
	}
}

// Transport owns the rmq connection feeding a PositionConsumer
type Transport struct {
	conn  rmq.Connection
	queue rmq.Queue

	// done ends the connection error logger
	done     chan struct{}
	stopOnce sync.Once
}

// Open connects rmq to the Redis client and opens queueName
func Open(client *goredis.Client, queueName string) (*Transport, error) {
	errs := make(chan error, 16)
	done := make(chan struct{})
	go logConnectionErrors(queueName, errs, done)

	conn, err := rmq.OpenConnectionWithRedisClient(connectionTag, client, errs)
	if err != nil {
		close(done)
		return nil, fmt.Errorf("queue: failed to open connection: %w", err)
	}
	q, err := conn.OpenQueue(queueName)
	if err != nil {
		close(done)
		return nil, fmt.Errorf("queue: failed to open queue %s: %w", queueName, err)
	}
	return &Transport{conn: conn, queue: q, done: done}, nil
}

// logConnectionErrors logs errs until done is closed. errs stays open since
// rmq's background goroutines may still write to it.
func logConnectionErrors(queueName string, errs <-chan error, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case err := <-errs:
			log.Warn().Err(err).Str("queue", queueName).Msg("Queue connection error")
		}
	}
}

// Start begins delivering queued updates to consumer
func (t *Transport) Start(consumer rmq.BatchConsumer) error {
	if err := t.queue.StartConsuming(batchSize*2, pollDuration); err != nil {
		return fmt.Errorf("queue: failed to start consuming: %w", err)
	}
	if _, err := t.queue.AddBatchConsumer(consumerTag, batchSize, batchTimeout, consumer); err != nil {
		return fmt.Errorf("queue: failed to add consumer: %w", err)
	}
	log.Info().Msg("Queue consumer started")
	return nil
}

// Enqueue pushes an update onto the queue
func (t *Transport) Enqueue(u domain.PositionUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal update: %w", err)
	}
	if err := t.queue.PublishBytes(payload); err != nil {
		return fmt.Errorf("queue: failed to publish update: %w", err)
	}
	return nil
}

// Stop stops consuming and waits for in-flight batches to finish. It is
// safe to call more than once.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		<-t.conn.StopAllConsuming()
		close(t.done)
		log.Info().Msg("Queue consumer stopped")
	})
}
