package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medrex/record-registry/internal/records"
	"github.com/medrex/record-registry/pkg/config"
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (defaults to searching ./, ./config and /etc/record-registry)")
	tokenFor := flag.String("token-for", "", "print a bearer token for the given identity and exit")
	tokenRole := flag.String("token-role", string(types.RolePatient), "role claim for -token-for")
	flag.Parse()

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *tokenFor != "" {
		validator := records.NewTokenValidator(
			cfg.JWT.SecretKey,
			cfg.JWT.Issuer,
			cfg.JWT.Audience,
			time.Duration(cfg.JWT.AccessTokenTTL)*time.Second,
		)
		token, err := validator.GenerateToken(*tokenFor, types.UserRole(*tokenRole))
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token.AccessToken)
		return
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open ledger")
	}
	defer store.Close()

	service, err := records.NewService(cfg, store, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create record registry service")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.WithError(err).Error("Server stopped unexpectedly")
			store.Close()
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down record registry service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Stop(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Failed to shutdown server gracefully")
	}

	appLogger.Info("Record registry service stopped")
}
