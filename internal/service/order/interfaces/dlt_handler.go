// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"

	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/pkg/mq"
)

// LogDeadLetter 是死信 topic 的处理函数：只记录，不重试。
// 进入死信的支付结果需要人工处理，对应的订单最终会被对账任务按超时取消。
func LogDeadLetter(ctx context.Context, msg kafka.Message) error {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", mq.HeaderValue(msg.Headers, mq.HeaderOriginTopic)).
		Str("attempts", mq.HeaderValue(msg.Headers, mq.HeaderAttempts)).
		Str("error", mq.HeaderValue(msg.Headers, mq.HeaderError)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Int64("offset", msg.Offset).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
