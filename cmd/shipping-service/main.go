// cmd/shipping-service/main.go
package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/database"
	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/service/shipping/application"
	"stockflow/internal/service/shipping/infrastructure"
	"stockflow/internal/service/shipping/interfaces"
)

const serviceName = "shipping-service"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8086,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			var models []any
			if cfg.Infra.MySQL.AutoMigrate {
				models = infrastructure.Models
			}
			db, err := database.Open(cfg.Infra.MySQL.DSN, models...)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to open database")
			}
			svc := application.NewShippingService(infrastructure.NewGormShippingRepository(db), otel.Tracer(serviceName))

			// 死信只在重试耗尽时写入
			producer := mq.NewProducer(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers))
			appCtx.OnShutdown("kafka-producer", func(context.Context) error { return producer.Close() })

			topic := event.TopicShipping
			appCtx.StartConsumer("shipping-consumer", mq.NewConsumer(
				topic,
				mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, topic, appCtx.ConsumerGroup(serviceName, topic)),
				interfaces.NewShippingEventHandler(svc).Handle,
				mq.WithRetry(cfg.Infra.Kafka.MaxRetries, cfg.Infra.Kafka.RetryBackoff),
				mq.WithDeadLetter(producer),
			))
		},
	})
}
