package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher publishes tasks to a topic instead of the in-process
// queue, for deployments where uploads and workers run on separate
// instances. Single-instance runs dispatch straight into the Pool.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(broker, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers: []string{broker},
			Topic:   topic,
		}),
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, t Task) error {
	const op = "jobs.KafkaDispatcher.Dispatch"

	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.ImageID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// RunConsumer reads tasks from the topic and feeds them to the pool,
// blocking per message so broker backpressure bounds in-flight work.
func RunConsumer(ctx context.Context, broker, topic, groupID string, pool *Pool) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("kafka consumer: read message: %v", err)
			continue
		}
		var t Task
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			log.Printf("kafka consumer: bad task payload: %v", err)
			continue
		}
		if err := pool.Submit(ctx, t); err != nil {
			return
		}
	}
}
