// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"strconv"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/metrics"
)

const (
	DeadLetterSuffix  = ".DLT"
	HeaderError       = "x-error"
	HeaderOriginTopic = "x-origin-topic"
	HeaderAttempts    = "x-attempts"
)

// MessageReader 是 *kafka.Reader 的最小子集
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc 处理一条消息。返回 error 时按配置重试，重试耗尽后转发到死信 topic。
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer 是一个驱动适配器：拉取消息、重建 trace 上下文、调用处理函数、提交 offset。
// 投递语义是至少一次，处理函数必须幂等。
type Consumer struct {
	topic      string
	reader     MessageReader
	handler    HandlerFunc
	deadLetter *Producer
	maxRetries int
	backoff    time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type ConsumerOption func(*Consumer)

// WithRetry 设置处理失败时的重试次数和间隔
func WithRetry(maxRetries int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// WithDeadLetter 设置死信转发的 producer；不设置时失败消息只记录日志后提交
func WithDeadLetter(p *Producer) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

func NewConsumer(topic string, reader MessageReader, handler HandlerFunc, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:      topic,
		reader:     reader,
		handler:    handler,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start 开始监听，立即返回
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		zlog.Info().Str("topic", c.topic).Msg("✅ Kafka consumer started")
		for {
			// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					zlog.Info().Str("topic", c.topic).Msg("🛑 Kafka consumer shutting down")
					return
				}
				zlog.Error().Err(err).Str("topic", c.topic).Msg("could not fetch message, retrying")
				sleep(ctx, time.Second)
				continue
			}

			if !c.process(ctx, msg) {
				// 停止期间中断的消息不提交，重启后重新投递
				zlog.Info().Str("topic", c.topic).Int64("offset", msg.Offset).Msg("message left uncommitted on shutdown")
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				zlog.Error().Err(err).Str("topic", c.topic).Int64("offset", msg.Offset).Msg("failed to commit message")
			}
		}
	}()
}

// Stop 优雅地停止消费者并等待当前消息处理结束
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		zlog.Warn().Err(err).Str("topic", c.topic).Msg("failed to close reader")
	}
	zlog.Info().Str("topic", c.topic).Msg("✅ Kafka consumer stopped")
}

// process 返回 false 表示处理因为消费者停止而中断，消息既没有成功也没有进入死信
func (c *Consumer) process(parentCtx context.Context, msg kafka.Message) bool {
	carrier := KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &carrier)
	ctx = logger.WithTrace(ctx)
	log := logger.Ctx(ctx)

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			sleep(ctx, c.backoff*time.Duration(attempt))
			if ctx.Err() != nil {
				return false
			}
		}
		if err = c.handler(ctx, msg); err == nil {
			metrics.MessagesConsumed.WithLabelValues(c.topic, "ok").Inc()
			return true
		}
		if ctx.Err() != nil {
			log.Warn().Err(err).Str("topic", c.topic).Int64("offset", msg.Offset).Msg("message handling interrupted by shutdown")
			return false
		}
		log.Warn().Err(err).Str("topic", c.topic).Int("attempt", attempt+1).Msg("message handler failed")
	}

	metrics.MessagesConsumed.WithLabelValues(c.topic, "dead_letter").Inc()
	log.Error().Err(err).Str("topic", c.topic).Int64("offset", msg.Offset).Msg("message handling exhausted retries")
	if c.deadLetter == nil {
		return true
	}

	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderError, Value: []byte(err.Error())},
		kafka.Header{Key: HeaderOriginTopic, Value: []byte(c.topic)},
		kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(c.maxRetries + 1))},
	)
	msg.Headers = headers
	if dltErr := c.deadLetter.PublishRaw(context.WithoutCancel(ctx), c.topic+DeadLetterSuffix, msg); dltErr != nil {
		log.Error().Err(dltErr).Str("topic", c.topic).Msg("failed to forward message to dead letter topic")
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
