// cmd/order-service/main.go
package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/config"
	"stockflow/internal/pkg/database"
	"stockflow/internal/pkg/event"
	"stockflow/internal/pkg/httpclient"
	"stockflow/internal/pkg/mq"
	"stockflow/internal/pkg/nacos"
	"stockflow/internal/service/inventory"
	"stockflow/internal/service/order/application"
	"stockflow/internal/service/order/domain/port"
	orderinfra "stockflow/internal/service/order/infrastructure"
	"stockflow/internal/service/order/infrastructure/adapter"
	"stockflow/internal/service/order/interfaces"
	"stockflow/internal/service/payment"
	shipapp "stockflow/internal/service/shipping/application"
	shipinfra "stockflow/internal/service/shipping/infrastructure"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 按配置选择库存、支付、配送的接入方式，然后启动 HTTP 接口和 payment-response 消费者。
func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8081,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)

			db, err := database.Open(cfg.Infra.MySQL.DSN, models(cfg)...)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to open database")
			}

			producer := mq.NewProducer(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers))
			appCtx.OnShutdown("kafka-producer", func(context.Context) error { return producer.Close() })

			httpClient := httpclient.NewClient(tracer)
			inventorySvc := buildInventory(appCtx, cfg, db, httpClient, tracer)

			var payments port.PaymentTrigger
			if cfg.Order.PaymentMode == "event" {
				payments = adapter.NewPaymentKafkaAdapter(producer)
			} else {
				processor, err := payment.NewProcessor(cfg.Payment, db, tracer)
				if err != nil {
					zlog.Fatal().Err(err).Msg("failed to initialize payment processor")
				}
				payments = adapter.NewPaymentSyncAdapter(processor)
			}

			var shipping port.ShippingRecorder
			if cfg.Order.ShippingMode == "event" {
				shipping = adapter.NewShippingKafkaAdapter(producer)
			} else {
				shipping = adapter.NewShippingDirectAdapter(shipapp.NewShippingService(shipinfra.NewGormShippingRepository(db), tracer))
			}

			opts := []application.Option{application.WithProcessingTimeout(cfg.Order.ProcessingTimeout)}
			if cfg.Order.CartBaseURL != "" {
				opts = append(opts, application.WithCartService(adapter.NewCartHTTPAdapter(httpClient, cfg.Order.CartBaseURL)))
			}
			if cfg.Order.MemberBaseURL != "" {
				opts = append(opts, application.WithMemberDirectory(adapter.NewMemberHTTPAdapter(httpClient, cfg.Order.MemberBaseURL)))
			}
			orderSvc := application.NewOrderService(orderinfra.NewMysqlRepository(db), inventorySvc, payments, shipping, tracer, opts...)

			interfaces.NewOrderHandler(orderSvc).RegisterRoutes(appCtx.Router)

			// 事件驱动支付：消费结果，重试耗尽后进入死信 topic
			if cfg.Order.PaymentMode == "event" {
				brokers := cfg.Infra.Kafka.Brokers
				topic := event.TopicPaymentResponse
				appCtx.StartConsumer("payment-response-consumer", mq.NewConsumer(
					topic,
					mq.NewKafkaReader(brokers, topic, appCtx.ConsumerGroup(serviceName, topic)),
					interfaces.NewPaymentResponseHandler(orderSvc).Handle,
					mq.WithRetry(cfg.Infra.Kafka.MaxRetries, cfg.Infra.Kafka.RetryBackoff),
					mq.WithDeadLetter(producer),
				))
				dlt := topic + mq.DeadLetterSuffix
				appCtx.StartConsumer("payment-response-dlt-consumer", mq.NewConsumer(
					dlt,
					mq.NewKafkaReader(brokers, dlt, appCtx.ConsumerGroup(serviceName, dlt)),
					interfaces.LogDeadLetter,
					mq.WithRetry(0, 0),
				))
			}
			zlog.Info().Str("payment_mode", cfg.Order.PaymentMode).Str("shipping_mode", cfg.Order.ShippingMode).
				Str("inventory_mode", cfg.Inventory.Mode).Msg("✅ Order service wired")
		},
	})
}

func models(cfg *config.Config) []any {
	if !cfg.Infra.MySQL.AutoMigrate {
		return nil
	}
	out := append([]any{}, orderinfra.Models...)
	if cfg.Order.PaymentMode == "sync" {
		out = append(out, payment.Models...)
	}
	if cfg.Order.ShippingMode == "direct" {
		out = append(out, shipinfra.Models...)
	}
	if cfg.Inventory.Mode == "local" {
		out = append(out, inventory.Models...)
	}
	return out
}

// buildInventory 本地模式直接组装库存服务，远程模式通过 HTTP 调用，优先用 Nacos 发现实例
func buildInventory(appCtx bootstrap.AppCtx, cfg *config.Config, db *gorm.DB, client *httpclient.Client, tracer trace.Tracer) port.InventoryService {
	if cfg.Inventory.Mode == "local" {
		module, err := inventory.NewModule(cfg, db, tracer)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize inventory module")
		}
		appCtx.OnShutdown("inventory", module.Close)
		return module.Service
	}

	if cfg.Infra.Nacos.ServerAddrs == "" {
		return adapter.NewInventoryHTTPAdapter(client, adapter.StaticResolver(cfg.Inventory.BaseURL))
	}
	naming, err := nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize nacos client")
	}
	appCtx.OnShutdown("nacos-discovery", func(context.Context) error {
		naming.Close()
		return nil
	})
	return adapter.NewInventoryHTTPAdapter(client, adapter.NacosResolver(naming, cfg.Inventory.ServiceName))
}
