package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	kafka "github.com/segmentio/kafka-go"

	appconfig "fareflow/config"
	"fareflow/logger"
)

// messageWriter is the part of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes one message per fare market, keyed by
// transaction and market so a market's outcomes stay on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *logger.Log
}

func NewKafkaPublisher(cfg *appconfig.Config) (*KafkaPublisher, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kp := &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: cfg.Storage.Kafka.Topic,
		log:   logger.GetLogger(),
	}
	kp.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("kafka publisher initialized")
	return kp, nil
}

func messageKey(mo MarketOutcome) []byte {
	return []byte(mo.TransactionID + "/" + strconv.Itoa(mo.FareMarket))
}

// Publish writes outcomes in one batch.
func (kp *KafkaPublisher) Publish(ctx context.Context, outcomes []MarketOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(outcomes))
	for _, mo := range outcomes {
		data, err := json.Marshal(mo)
		if err != nil {
			return fmt.Errorf("marshal fare market %d: %w", mo.FareMarket, err)
		}
		msgs = append(msgs, kafka.Message{Key: messageKey(mo), Value: data})
	}

	log := kp.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
		"topic":    kp.topic,
		"trx_id":   outcomes[0].TransactionID,
		"messages": len(msgs),
	})
	if err := kp.writer.WriteMessages(ctx, msgs...); err != nil {
		log.WithError(err).Warn("failed to write messages")
		return fmt.Errorf("publish to %s: %w", kp.topic, err)
	}
	log.Debug("outcomes published")
	return nil
}

func (kp *KafkaPublisher) Close() error {
	kp.log.WithComponent("kafka_publisher").Debug("closing kafka publisher")
	return kp.writer.Close()
}
