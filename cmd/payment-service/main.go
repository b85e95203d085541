// cmd/payment-service/main.go
package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/database"
	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/service/payment"
	"stockflow/internal/service/payment/interfaces"
)

const serviceName = "payment-service"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8083,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			var models []any
			if cfg.Infra.MySQL.AutoMigrate {
				models = payment.Models
			}
			db, err := database.Open(cfg.Infra.MySQL.DSN, models...)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to open database")
			}

			processor, err := payment.NewProcessor(cfg.Payment, db, otel.Tracer(serviceName))
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to initialize payment processor")
			}

			producer := mq.NewProducer(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers))
			appCtx.OnShutdown("kafka-producer", func(context.Context) error { return producer.Close() })

			topic := event.TopicPaymentRequest
			appCtx.StartConsumer("payment-request-consumer", mq.NewConsumer(
				topic,
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, topic, appCtx.ConsumerGroup(serviceName, topic)),
				interfaces.NewPaymentRequestHandler(processor, producer).Handle,
				mq.WithRetry(cfg.Infra.Kafka.MaxRetries, cfg.Infra.Kafka.RetryBackoff),
				mq.WithDeadLetter(producer),
			))
			zlog.Info().Str("policy", cfg.Payment.Policy).Msg("✅ Payment processor ready")
		},
	})
}
