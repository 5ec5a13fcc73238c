// Package notification publishes order/payment status events for the
// notification collaborator. Delivery is fire-and-forget: a broker outage must
// never fail a settlement transition.
package notification

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/automart/settlement/internal/logger"
)

type Notifier interface {
	Publish(event string, payload map[string]any)
}

type KafkaNotifier struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	go func() {
		for err := range producer.Errors() {
			logger.Log.Warn("notification publish failed", zap.Error(err))
		}
	}()

	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (n *KafkaNotifier) Publish(event string, payload map[string]any) {
	payload["event"] = event
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Warn("notification marshal failed", zap.Error(err))
		return
	}
	n.producer.Input() <- &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event),
		Value: sarama.ByteEncoder(bytes),
	}
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(string, map[string]any) {}
