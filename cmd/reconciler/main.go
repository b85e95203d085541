// cmd/reconciler/main.go
// 对账进程：周期性地用数据库修正 Redis 库存缓存，并推进或超时取消停滞的订单。
package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/database"
	"stockflow/internal/service/inventory"
	"stockflow/internal/service/order/application"
	orderinfra "stockflow/internal/service/order/infrastructure"
)

const serviceName = "reconciler"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8090,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)

			db, err := database.Open(cfg.Infra.MySQL.DSN)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to open database")
			}
			module, err := inventory.NewModule(cfg, db, tracer)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to initialize inventory module")
			}

			rc := cfg.Order.Reconciler
			statusReconciler := application.NewStatusReconciler(
				orderinfra.NewMysqlRepository(db),
				module.Service,
				tracer,
				application.DefaultStatusRules(rc.PendingTimeout, rc.ShippingAfter, rc.DeliveredAfter, rc.ConfirmAfter),
				rc.ChunkSize,
			)

			// 间隔为 0 表示关闭对应的任务
			g, ctx := errgroup.WithContext(appCtx.Ctx)
			if cfg.Inventory.ReconcileInterval > 0 {
				g.Go(func() error {
					module.Service.StartReconciler(ctx, cfg.Inventory.ReconcileInterval, cfg.Inventory.ReconcileChunk)
					return nil
				})
			}
			if rc.Interval > 0 {
				g.Go(func() error {
					statusReconciler.Start(ctx, rc.Interval)
					return nil
				})
			}

			// 先等两个循环退出，再关闭库存模块的连接
			appCtx.OnShutdown("inventory", module.Close)
			appCtx.OnShutdown("reconcilers", func(context.Context) error { return g.Wait() })
		},
	})
}
