package sink

import (
	"context"
	"strconv"
	"time"

	"tempest_bridge/internal/models"

	"github.com/segmentio/kafka-go"
)

// kafkaWriter is the part of *kafka.Writer the sink uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes records to one topic, keyed by device id.
type KafkaSink struct {
	writer kafkaWriter
	key    []byte
}

func NewKafkaSink(brokers []string, topic, deviceID string) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaSink(w, deviceID)
}

func newKafkaSink(w kafkaWriter, deviceID string) *KafkaSink {
	return &KafkaSink{writer: w, key: []byte(deviceID)}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, rec models.ObservationRecord) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   s.key,
		Value: payload,
		Time:  time.Unix(rec.DateTime, 0).UTC(),
		Headers: []kafka.Header{
			{Key: "usUnits", Value: []byte(strconv.Itoa(int(rec.USUnits)))},
		},
	})
}

func (s *KafkaSink) Close(context.Context) error { return s.writer.Close() }
