package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/InfradynAB/procure-sdk/modules/procurement/infrastructure/persistence"
	"github.com/InfradynAB/procure-sdk/modules/procurement/presentation/controllers"
	"github.com/InfradynAB/procure-sdk/modules/procurement/services"
	"github.com/InfradynAB/procure-sdk/pkg/configuration"
	"github.com/InfradynAB/procure-sdk/pkg/eventbus"
	"github.com/InfradynAB/procure-sdk/pkg/middleware"
	"github.com/InfradynAB/procure-sdk/pkg/server"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		panic(err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		panic(err)
	}

	publisher := eventbus.NewEventPublisher(logger)

	auditRepo := persistence.NewAuditRepository()
	boqItemRepo := persistence.NewBOQItemRepository()
	instructionRepo := persistence.NewInstructionRepository()

	changeOrderService := services.NewChangeOrderService(services.ChangeOrderServiceDeps{
		ChangeOrders:   persistence.NewChangeOrderRepository(),
		PurchaseOrders: persistence.NewPurchaseOrderRepository(),
		BOQItems:       boqItemRepo,
		Projects:       persistence.NewProjectRepository(),
		Ledger:         persistence.NewLedgerRepository(),
		Milestones:     persistence.NewMilestoneRepository(),
		Instructions:   instructionRepo,
		Audit:          auditRepo,
		Publisher:      publisher,
	})
	quantityService := services.NewQuantityService(boqItemRepo, auditRepo, publisher)
	instructionService := services.NewInstructionService(instructionRepo, auditRepo)

	srv := server.NewHTTPServer(
		[]server.Controller{
			controllers.NewProcurementAPIController(changeOrderService, quantityService, instructionService),
		},
		[]mux.MiddlewareFunc{
			middleware.WithLogger(logger),
			middleware.ProvidePool(pool),
		},
	)

	if conf.Prometheus.Enabled {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle(conf.Prometheus.Path, promhttp.Handler())
			logger.WithField("address", conf.Prometheus.Address).Info("serving prometheus metrics")
			if err := http.ListenAndServe(conf.Prometheus.Address, metricsMux); err != nil {
				logger.WithError(err).Error("metrics listener stopped")
			}
		}()
	}

	logger.WithField("address", conf.SocketAddress).Info("starting server")
	if err := srv.Start(conf.SocketAddress); err != nil {
		panic(err)
	}
}
