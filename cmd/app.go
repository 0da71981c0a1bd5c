package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/application/config"
	"github.com/qrave1/MentorCall/internal/application/logger"
	"github.com/qrave1/MentorCall/internal/application/metric"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/infra/adapters/payment"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/MentorCall/internal/infra/adapters/storage"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/MentorCall/internal/infra/ports/http/server"
	"github.com/qrave1/MentorCall/internal/infra/ports/turn"
	"github.com/qrave1/MentorCall/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	dbConn, err := postgres.NewPostgres(ctx, log, cfg.Postgres)
	if err != nil {
		log.Fatal("connect to postgres", zap.Error(err))
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepo(dbConn)
	developerRepo := repository.NewDeveloperRepo(dbConn)
	sessionRepo := repository.NewSessionRepo(dbConn)
	chatRepo := repository.NewChatRepo(dbConn)

	wsConnRepo := memory.NewWSConnectionRepository(log)
	roomRepo := memory.NewSessionRoomRepository()

	gateway := newPaymentGateway(cfg, log)
	recordings := storage.NewDiskRecordingStore(cfg.Recordings.Dir, cfg.Recordings.MaxBytes)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo, developerRepo, wsConnRepo)
	developerUsecase := usecase.NewDeveloperUsecase(userRepo, developerRepo)
	chatUsecase := usecase.NewChatUsecase(log, chatRepo, userRepo, wsConnRepo)
	sessionUsecase := usecase.NewSessionUsecase(log, sessionRepo, developerRepo, gateway, recordings, wsConnRepo)
	signalingUsecase := usecase.NewSignalingUsecase(log, sessionRepo, roomRepo, wsConnRepo, sessionUsecase, chatUsecase)

	echoSrv := server.New(cfg, log, server.Handlers{
		Auth:      handlers.NewAuthHandler(cfg, log, userUsecase),
		Session:   handlers.NewSessionHandler(log, sessionUsecase),
		Developer: handlers.NewDeveloperHandler(log, developerUsecase),
		Chat:      handlers.NewChatHandler(log, chatUsecase),
		Ice:       handlers.NewIceHandler(cfg),
		WS:        handlers.NewWebSocketHandler(cfg, log, signalingUsecase, wsConnRepo),
	})

	if cfg.Turn.Enabled() {
		turnSrv, err := turn.Start(log, cfg.Turn, cfg.CoturnServer.Secret)
		if err != nil {
			log.Fatal("start TURN server", zap.Error(err))
		}
		defer func() {
			if err := turnSrv.Close(); err != nil {
				log.Error("stop TURN server", zap.Error(err))
			}
		}()
	}

	metricsSrv := metric.NewServer(dbConn.PingContext)

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", zap.String("port", cfg.Port))
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down servers")
	case err := <-echoSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	case err := <-metricsSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("metrics server failed", zap.Error(err))
		}
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		log.Error("failed to gracefully shutdown HTTP server", zap.Error(err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		log.Error("failed to gracefully shutdown metric server", zap.Error(err))
	}
}

// newPaymentGateway - без ключа Stripe платежи подтверждаются локально
func newPaymentGateway(cfg *config.Config, log *zap.Logger) payment.Gateway {
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set, using local payment gateway")
		return payment.NewLocalGateway()
	}

	return payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
}
