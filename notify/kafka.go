package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

func ConnectProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 2

	return sarama.NewSyncProducer(brokers, config)
}

// KafkaSink sends each event as a JSON message keyed by plate, so that
// sightings of the same plate land on one partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Publish ignores ctx: the sync producer bounds the call with its own
// retry and timeout settings.
func (k *KafkaSink) Publish(_ context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Plate),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
