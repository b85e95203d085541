// cmd/inventory-service/main.go
package main

import (
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/database"
	"stockflow/internal/service/inventory"
	"stockflow/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

func main() {
	cfg := bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			var models []any
			if cfg.Infra.MySQL.AutoMigrate {
				models = inventory.Models
			}
			db, err := database.Open(cfg.Infra.MySQL.DSN, models...)
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to open database")
			}

			module, err := inventory.NewModule(cfg, db, otel.Tracer(serviceName))
			if err != nil {
				zlog.Fatal().Err(err).Msg("failed to initialize inventory module")
			}
			appCtx.OnShutdown("inventory", module.Close)

			interfaces.NewInventoryHandler(module.Service, cfg.Inventory.ReconcileChunk).RegisterRoutes(appCtx.Router)

			if cfg.Inventory.ReconcileInterval > 0 {
				go module.Service.StartReconciler(appCtx.Ctx, cfg.Inventory.ReconcileInterval, cfg.Inventory.ReconcileChunk)
			}
		},
	})
}
