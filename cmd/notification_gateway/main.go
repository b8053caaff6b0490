package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	adminhttp "github.com/agendazap/notification-gateway/internal/gateway_service/adapters/http"
	"github.com/agendazap/notification-gateway/internal/gateway_service/adapters/wire"
	"github.com/agendazap/notification-gateway/internal/gateway_service/app"
	"github.com/agendazap/notification-gateway/internal/gateway_service/repository/postgres"
	"github.com/agendazap/notification-gateway/internal/platform/config"
	"github.com/agendazap/notification-gateway/internal/platform/database"
	"github.com/agendazap/notification-gateway/internal/platform/logger"
	"github.com/agendazap/notification-gateway/internal/platform/messagebroker"
)

const serviceName = "notification-gateway"

func main() {
	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("starting", "http_port", cfg.HTTPPort)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to initialize database pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Repositories.
	notificationLogRepo := postgres.NewPgNotificationLogRepository(dbPool)
	bookingRepo := postgres.NewPgBookingRepository(dbPool)
	outboundRepo := postgres.NewPgOutboundMessageRepository(dbPool)
	credsRepo := postgres.NewPgSessionCredentialRepository(dbPool)
	tenantRepo := postgres.NewPgTenantRepository(dbPool)
	staffRepo := postgres.NewPgStaffRepository(dbPool)

	// Outbound path: wire client -> connection manager -> send pipeline.
	outboundStore := app.NewOutboundStore(outboundRepo, log, cfg.OutboundMemoryTTL, cfg.OutboundDurableRetention)
	bridgeClient := wire.NewBridgeClient(log, cfg.BridgeBaseURL, cfg.BridgeAPIKey, credsRepo, nil)
	connManager := app.NewConnectionManager(bridgeClient, credsRepo, outboundStore, log, app.ManagerConfig{
		BaseDelay:    cfg.ReconnectBaseDelay,
		MaxDelay:     cfg.ReconnectMaxDelay,
		MaxJitter:    cfg.ReconnectMaxJitter,
		MaxAttempts:  cfg.ReconnectMaxAttempts,
		RestartDelay: 3 * time.Second,
	})
	pipeline := app.NewSendPipeline(connManager, outboundStore, log, app.PipelineConfig{
		MinGap:      cfg.SendMinGap,
		MaxAttempts: cfg.SendMaxAttempts,
	})

	// Event sources funneling into the dispatcher.
	dispatcher := app.NewDispatcher(bookingRepo, tenantRepo, staffRepo, notificationLogRepo, pipeline, log, loc, cfg.StaffNotifyDelay)
	listener := app.NewEventListener(natsClient, dispatcher, log, app.ListenerSubjects{
		BookingCreated: cfg.BookingCreatedSubject,
		BookingUpdated: cfg.BookingUpdatedSubject,
		TenantUpdated:  cfg.TenantUpdatedSubject,
		StaffCreated:   cfg.StaffCreatedSubject,
		QueueGroup:     cfg.FeedQueueGroup,
	})
	scanner := app.NewReminderScanner(bookingRepo, notificationLogRepo, dispatcher, log, loc, app.ScannerConfig{
		Interval:        cfg.ReminderInterval,
		WindowStartHour: cfg.ReminderWindowStart,
		WindowEndHour:   cfg.ReminderWindowEnd,
		LookaheadMin:    cfg.ReminderLookaheadMin,
		LookaheadMax:    cfg.ReminderLookaheadMax,
		DispatchGap:     cfg.ReminderDispatchGap,
	})

	adminHandler := adminhttp.NewAdminHandler(connManager, pipeline, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: adminHandler.Routes(),
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		err := connManager.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := outboundStore.RunJanitor(groupCtx, 15*time.Minute)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		if err := listener.Start(groupCtx); err != nil {
			return fmt.Errorf("change feed subscription failed: %w", err)
		}
		<-groupCtx.Done()
		listener.Stop()
		return nil
	})

	g.Go(func() error {
		err := scanner.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Info("admin HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
