package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/service"
	"github.com/busgate/server/internal/busgate/store/sqlite"
	"github.com/busgate/server/internal/busgate/token"
	"github.com/busgate/server/internal/config"
	dbpkg "github.com/busgate/server/internal/db"
	"github.com/busgate/server/internal/httpapi"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "busgate-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	db, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer db.Close()

	writer := dbpkg.NewWorker(db)
	defer writer.Close()

	if cfg.Env == "dev" {
		if err := dbpkg.SeedDev(ctx, db, dbpkg.SeedDevOptions{}); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	credStore := sqlite.NewCredentialStore(db, writer)
	routeStore := sqlite.NewRouteStore(db)
	eventStore := sqlite.NewBoardingEventStore(db, writer)
	heartbeatStore := sqlite.NewHeartbeatStore(db, writer)

	// Field encryption key ring
	ring, err := loadRing(cfg, logger)
	if err != nil {
		logger.Fatalf("load key ring: %v", err)
	}
	cipher := fieldcrypt.New(ring)

	// Token issuer
	signingKey, err := loadSigningKey(cfg, logger)
	if err != nil {
		logger.Fatalf("load signing key: %v", err)
	}
	issuer, err := token.NewIssuer(signingKey,
		time.Duration(cfg.DeviceTokenTTLS)*time.Second,
		time.Duration(cfg.UserTokenTTLS)*time.Second)
	if err != nil {
		logger.Fatalf("token issuer: %v", err)
	}

	// Services
	authSvc := service.NewAuthService(credStore, issuer)
	boardingSvc := service.NewBoardingService(credStore, routeStore, eventStore, cipher, cfg.FaceMatchThreshold)
	heartbeatSvc := service.NewHeartbeatService(heartbeatStore)

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		Verifier:         issuer,
		AuthService:      authSvc,
		BoardingService:  boardingSvc,
		HeartbeatService: heartbeatSvc,
	})

	go func() {
		logger.Printf("listening on %s (threshold=%.2f)", cfg.HTTPAddr, cfg.FaceMatchThreshold)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// loadRing reads the key ring file, or in dev generates an ephemeral
// single-key ring so the server can run without provisioning.  Fields
// encrypted under an ephemeral ring do not survive a restart.
func loadRing(cfg config.Config, logger *log.Logger) (*fieldcrypt.Ring, error) {
	if cfg.KeyRingPath != "" {
		return fieldcrypt.LoadRingFile(cfg.KeyRingPath)
	}
	if cfg.Env == "prod" {
		logger.Fatalf("BUSGATE_KEYRING_PATH is required in prod")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	logger.Printf("no key ring configured; using ephemeral dev ring")
	return fieldcrypt.NewRing("dev-ephemeral", map[string][]byte{"dev-ephemeral": key})
}

// loadSigningKey decodes the configured token signing key, or in dev
// generates a random one (tokens do not survive a restart).
func loadSigningKey(cfg config.Config, logger *log.Logger) ([]byte, error) {
	if cfg.TokenSigningKey != "" {
		return base64.StdEncoding.DecodeString(cfg.TokenSigningKey)
	}
	if cfg.Env == "prod" {
		logger.Fatalf("BUSGATE_TOKEN_SIGNING_KEY is required in prod")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	logger.Printf("no signing key configured; using ephemeral dev key")
	return key, nil
}
