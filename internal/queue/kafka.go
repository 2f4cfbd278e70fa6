package queue

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/telemetry"
)

// kafkaWriter is the subset of *kafka.Writer this package depends on,
// grounded on the teacher's internal/tools/kafka Writer interface.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaProducer enqueues items as JSON envelopes onto a Kafka topic instead
// of dispatching in-process. Use KafkaConsumer on the receiving side to
// drain the topic back into a Handler.
type KafkaProducer struct {
	writer kafkaWriter
	topic  string
}

// NewKafkaProducer builds its own *kafka.Writer for the given brokers and
// topic (least-bytes balancing); Close releases it.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}
	return &KafkaProducer{writer: w, topic: topic}
}

func (p *KafkaProducer) Enqueue(ctx context.Context, item ctxmodel.ContextItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: marshal item: %w", err)
	}
	msg := kafkago.Message{Topic: p.topic, Key: []byte(item.ID), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue: write message: %w", err)
	}
	return nil
}

// Close releases the underlying writer's connections, if it owns one.
func (p *KafkaProducer) Close() error {
	if w, ok := p.writer.(*kafkago.Writer); ok {
		return w.Close()
	}
	return nil
}

// KafkaConsumer drains a topic with a worker pool and feeds each decoded
// item into a Handler, mirroring the teacher's orchestrator Kafka consumer
// worker-pool shape (no DLQ). Each message is committed as soon as it is
// handed to a worker, before its handler runs; decode and handler failures
// are logged only, per this queue's "never surfaced" write policy.
type KafkaConsumer struct {
	reader      *kafkago.Reader
	handle      Handler
	workerCount int
}

func NewKafkaConsumer(brokers []string, groupID, topic string, workerCount int, handle Handler) *KafkaConsumer {
	if workerCount <= 0 {
		workerCount = 4
	}
	rc := kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	return &KafkaConsumer{reader: kafkago.NewReader(rc), handle: handle, workerCount: workerCount}
}

// Run blocks, fanning messages out to a worker pool, until ctx is canceled
// or the reader errors. Call in its own goroutine.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	jobs := make(chan kafkago.Message, c.workerCount*4)
	errc := make(chan error, 1)

	for i := 0; i < c.workerCount; i++ {
		go func() {
			for msg := range jobs {
				c.process(ctx, msg)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				errc <- err
				return
			}
			jobs <- msg
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				telemetry.LoggerWithTrace(ctx).Error().Err(err).Msg("queue_commit_failed")
			}
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *KafkaConsumer) process(ctx context.Context, msg kafkago.Message) {
	var item ctxmodel.ContextItem
	if err := json.Unmarshal(msg.Value, &item); err != nil {
		telemetry.LoggerWithTrace(ctx).Error().Err(err).Msg("queue_decode_failed")
		return
	}
	if c.handle == nil {
		return
	}
	if err := c.handle(ctx, item); err != nil {
		telemetry.LoggerWithTrace(ctx).Error().Err(err).Str("item_id", item.ID).Msg("longterm_write_failed")
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
