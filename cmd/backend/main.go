// Package main provides the entry point for the LinkTrace access-tracking service.
//
//	@title			LinkTrace API
//	@version		1.0.0
//	@description	Hashed-URL access tracking: signed tracking links, pixels and tracked emails.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Authorization header. Format: "Bearer {token}"
package main

import (
	"context"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/auth"
	"LinkTrace-Backend/internal/config"
	"LinkTrace-Backend/internal/database"
	"LinkTrace-Backend/internal/gateway"
	httpHandler "LinkTrace-Backend/internal/handler/http"
	"LinkTrace-Backend/internal/mailer"
	"LinkTrace-Backend/internal/repository/postgres"
	"LinkTrace-Backend/internal/service"
	"LinkTrace-Backend/internal/signer"
	"LinkTrace-Backend/internal/target"
	"LinkTrace-Backend/pkg/logger"
	"LinkTrace-Backend/pkg/useragent"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting LinkTrace service", zap.String("env", cfg.Env))

	// Database
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	if cfg.Database.SeedData {
		log.Info("seeding database with initial data (seed_data: true)")
		if err := database.SeedData(db, log); err != nil {
			log.Fatal("failed to seed database", zap.Error(err))
		}
	} else {
		log.Info("skipping database seeding (seed_data: false)")
	}

	// User-Agent parser; accesses are recorded without a device type when a
	// configured regexes file is unavailable
	uaParser, err := useragent.NewParser(cfg.Tracking.UARegexesPath, log)
	if err != nil {
		log.Warn("failed to initialize User-Agent parser, device detection disabled", zap.Error(err))
		uaParser = nil
	}

	// Storage and tracking core
	storage := postgres.New(db, log)
	urlSigner := signer.New(cfg.Tracking.HashSecret())

	resolvers := target.NewResolvers(storage, cfg.Tracking.PagesDir, log)
	table, err := target.DefaultTable(resolvers)
	if err != nil {
		log.Fatal("failed to build target table", zap.Error(err))
	}

	gw := gateway.New(storage, urlSigner, table, log)
	trackingService := service.NewTrackingService(storage, urlSigner, &cfg.Tracking, log)

	// Mail dispatch
	dispatcher := mailer.NewDispatcher(cfg.Mailer, mailer.NewLogSender(log), storage, log)
	if err := dispatcher.Start(); err != nil {
		log.Fatal("failed to start mail dispatcher", zap.Error(err))
	}
	mailerService := mailer.NewService(storage, trackingService, dispatcher, log)

	// Auth
	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:            cfg.JWTKey(),
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
		Issuer:               cfg.Auth.Issuer,
	})
	passwordService := auth.NewPasswordService()

	// HTTP server
	apiServer := httpHandler.NewServer(
		storage,
		gw,
		trackingService,
		mailerService,
		dispatcher,
		jwtService,
		passwordService,
		uaParser,
		cfg.Tracking.AccessPrefix,
		log,
	)

	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Address))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down LinkTrace service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Mailer.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if err := dispatcher.Stop(); err != nil {
		log.Error("failed to stop mail dispatcher", zap.Error(err))
	}
}
