package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/backup"
	"github.com/challengerdaily/challengerdaily/internal/billing"
	"github.com/challengerdaily/challengerdaily/internal/database"
	"github.com/challengerdaily/challengerdaily/internal/license"
	"github.com/challengerdaily/challengerdaily/internal/localstore"
	"github.com/challengerdaily/challengerdaily/internal/logging"
	"github.com/challengerdaily/challengerdaily/internal/push"
	"github.com/challengerdaily/challengerdaily/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := logging.Setup(os.Getenv("CHALLENGER_LOG_LEVEL"), os.Getenv("CHALLENGER_LOG_FORMAT"))

	port := envOr("CHALLENGER_PORT", "8080")
	dbPath := envOr("CHALLENGER_DB_PATH", "challenger.db")
	dataDir := envOr("CHALLENGER_DATA_DIR", "data")
	baseURL := envOr("CHALLENGER_BASE_URL", fmt.Sprintf("http://localhost:%s", port))

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	guests, err := localstore.New(dataDir)
	if err != nil {
		logger.Error("failed to create guest store", "error", err)
		os.Exit(1)
	}

	cfg := server.Config{
		License: license.Config{
			TrialDays: envInt("CHALLENGER_TRIAL_DAYS", license.DefaultTrialDays),
			JWTSecret: os.Getenv("CHALLENGER_JWT_SECRET"),
		},
		Billing: billing.Config{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceID:       os.Getenv("STRIPE_PRICE_ID"),
			SuccessURL:    baseURL + "/account?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     baseURL + "/upgrade",
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("CHALLENGER_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("CHALLENGER_VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("CHALLENGER_VAPID_SUBSCRIBER"),
		},
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("CHALLENGER_S3_ENDPOINT"),
				Bucket:    os.Getenv("CHALLENGER_S3_BUCKET"),
				Region:    envOr("CHALLENGER_S3_REGION", "auto"),
				AccessKey: os.Getenv("CHALLENGER_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("CHALLENGER_S3_SECRET_KEY"),
			},
			Passphrase:   os.Getenv("CHALLENGER_BACKUP_PASSPHRASE"),
			ScheduleHour: envInt("CHALLENGER_BACKUP_HOUR", 3),
		},
		RemindHour: envInt("CHALLENGER_REMIND_HOUR", 18),
	}

	srv := server.New(db, guests, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	srv.BackupManager().Start(bgCtx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(bgCtx)
	}

	// Hourly housekeeping: expired sessions and stale rate-limit buckets
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				}
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("challengerdaily starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	bgCancel()
	srv.BackupManager().Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
