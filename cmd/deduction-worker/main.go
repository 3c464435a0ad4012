package main

import (
	"context"
	"errors"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/config"
	"github.com/stacksave/stacksave-api/internal/domain/deduction"
	"github.com/stacksave/stacksave-api/internal/domain/notification"
	"github.com/stacksave/stacksave-api/internal/domain/subscription"
	"github.com/stacksave/stacksave-api/internal/domain/transaction"
	"github.com/stacksave/stacksave-api/internal/pkg/database"
	"github.com/stacksave/stacksave-api/internal/pkg/ledger"
	"github.com/stacksave/stacksave-api/internal/pkg/lock"
	"github.com/stacksave/stacksave-api/internal/pkg/logger"
	"github.com/stacksave/stacksave-api/internal/pkg/push"
)

// pushNotifier adapts the notification service to the deduction pipeline's
// notifier port
type pushNotifier struct {
	svc *notification.Service
}

func (n *pushNotifier) Notify(ctx context.Context, userID uuid.UUID, event, title, body, link string) {
	n.svc.Notify(ctx, userID, notification.Type(event), title, body, link)
}

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().Str("env", cfg.Env).Msg("Starting deduction worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	chain, err := ledger.New(ledger.Config{
		RPCURL:            cfg.ChainRPCURL,
		ChainID:           cfg.ChainID,
		VaultContract:     cfg.VaultContract,
		TokenContract:     cfg.TokenContract,
		TokenDecimals:     cfg.TokenDecimals,
		RelayerPrivateKey: cfg.RelayerPrivateKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up chain client")
	}

	var pusher notification.Pusher
	if cfg.FCMServerKey != "" {
		pusher = push.NewFCMClient(push.FCMConfig{
			ServerKey: cfg.FCMServerKey,
			ProjectID: cfg.FCMProjectID,
		})
	}

	subRepo := subscription.NewRepository(db)
	txRepo := transaction.NewRepository(db)
	notifRepo := notification.NewRepository(db)
	tokenRepo := notification.NewDeviceTokenRepository(db)
	notifService := notification.NewService(notifRepo, tokenRepo, pusher)

	orchestrator := deduction.NewOrchestrator(
		subRepo,
		txRepo,
		chain,
		chain,
		&pushNotifier{svc: notifService},
		lock.NewLease(rdb),
		deduction.NewRunRepository(db),
		deduction.Config{
			BatchSize:        cfg.BatchSize,
			BatchDelay:       cfg.BatchDelay,
			BufferPercent:    cfg.BalanceBufferPct,
			ResumeRunwayDays: cfg.ResumeRunwayDays,
			OracleFailOpen:   cfg.OracleFailOpen,
			LeaseTTL:         cfg.RunLeaseTTL,
		},
	)

	minRelayerWei := parseNativeAmount(cfg.RelayerMinBalance)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(cfg.DailyRunCron, false),
		gocron.NewTask(func() {
			defer recoverJob("daily deduction")

			summary, err := orchestrator.RunDailyDeduction(context.Background())
			if err != nil {
				if errors.Is(err, deduction.ErrRunInProgress) {
					log.Warn().Msg("Skipping daily run, previous run still holds the lease")
					return
				}
				log.Error().Err(err).Msg("Daily deduction run failed")
				return
			}
			log.Info().
				Int("processed", summary.Processed).
				Int("failed", summary.Failed).
				Int("paused", summary.Paused).
				Msg("Daily deduction run complete")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule daily run")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.AutoResumeInterval),
		gocron.NewTask(func() {
			defer recoverJob("auto-resume check")

			resumed, err := orchestrator.RunAutoResumeCheck(context.Background())
			if err != nil && !errors.Is(err, deduction.ErrRunInProgress) {
				log.Error().Err(err).Msg("Auto-resume check failed")
				return
			}
			if resumed > 0 {
				log.Info().Int("resumed", resumed).Msg("Auto-resume check complete")
			}
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule auto-resume check")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.HealthInterval),
		gocron.NewTask(func() {
			defer recoverJob("relayer health check")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			balance, err := chain.RelayerBalance(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to read relayer balance")
				return
			}
			if balance.Cmp(minRelayerWei) < 0 {
				log.Warn().
					Str("relayer", chain.RelayerAddress()).
					Str("balance_wei", balance.String()).
					Str("min_wei", minRelayerWei.String()).
					Msg("Relayer gas balance is low, top up soon")
			}
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule relayer health check")
	}

	scheduler.Start()
	log.Info().
		Str("daily_cron", cfg.DailyRunCron).
		Dur("auto_resume_every", cfg.AutoResumeInterval).
		Dur("health_every", cfg.HealthInterval).
		Msg("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker")
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
	log.Info().Msg("Worker stopped")
}

func recoverJob(name string) {
	if r := recover(); r != nil {
		log.Error().Interface("panic", r).Str("job", name).Msg("Scheduled job panicked")
	}
}

// parseNativeAmount converts a decimal native-token amount ("0.05") to wei
func parseNativeAmount(s string) *big.Int {
	f, ok := new(big.Float).SetString(s)
	if !ok {
		f = big.NewFloat(0)
	}
	wei, _ := new(big.Float).Mul(f, big.NewFloat(1e18)).Int(nil)
	return wei
}
