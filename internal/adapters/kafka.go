package adapters

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"clubfines/internal/amqp"
	"clubfines/internal/core"
	applog "clubfines/internal/log"
)

// DefaultKafkaTopic is used when no topic is configured.
const DefaultKafkaTopic = "ledger_changes"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes ledger changes to a Kafka topic, keyed by member
// so changes for one member stay ordered within a partition.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *applog.Logger
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return newKafkaNotifier(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, topic)
}

func newKafkaNotifier(w messageWriter, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: w,
		topic:  topic,
		logger: applog.NewLogger(applog.ComponentNotify),
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, c core.Change) error {
	msg := amqp.NewLedgerChangeMessage(c)
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.Member),
		Value: data,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(c.Op)},
			{Key: "message_id", Value: []byte(msg.MessageID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", k.topic, err)
	}

	k.logger.DebugContext(ctx, "Published change",
		applog.FieldBackend, "kafka",
		applog.FieldChangeOp, string(c.Op),
		"message_id", msg.MessageID)
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
