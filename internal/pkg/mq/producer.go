// internal/pkg/mq/producer.go
package mq

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageWriter 是 *kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把领域事件序列化为 JSON 并写入 Kafka，同时注入 trace 上下文
type Producer struct {
	writer MessageWriter
}

func NewProducer(writer MessageWriter) *Producer {
	return &Producer{writer: writer}
}

// Publish 同步写入一条消息。key 决定分区，同一订单的事件保持分区内有序。
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any, headers ...kafka.Header) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal message for topic %s", topic)
	}

	carrier := KafkaHeaderCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: carrier,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write message to topic %s", topic)
	}
	return nil
}

// PublishRaw 原样转发一条消息到另一个 topic（死信转发使用）
func (p *Producer) PublishRaw(ctx context.Context, topic string, msg kafka.Message) error {
	out := kafka.Message{Topic: topic, Key: msg.Key, Value: msg.Value, Headers: msg.Headers}
	if err := p.writer.WriteMessages(ctx, out); err != nil {
		return errors.Wrapf(err, "forward message to topic %s", topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
