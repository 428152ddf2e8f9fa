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

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/app"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/config"
	"github.com/suPer8Hu/healthchat/internal/db"
	"github.com/suPer8Hu/healthchat/internal/httpapi"
	"github.com/suPer8Hu/healthchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/healthchat/internal/logging"
	"github.com/suPer8Hu/healthchat/internal/predict"
	"github.com/suPer8Hu/healthchat/internal/store/kv"
	"github.com/suPer8Hu/healthchat/internal/store/rabbitmq"
	"github.com/suPer8Hu/healthchat/internal/store/redisstore"
	"github.com/suPer8Hu/healthchat/internal/store/sqlkv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, closeDocs, err := app.NewGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDocs()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	h := handlers.NewHandler(gw, b.chats, b.turns, b.jobs, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.Bool("hosted_chat", cfg.HostedChat),
			zap.String("chat_store", cfg.ChatStore),
			zap.Bool("predict_jobs", cfg.PredictJobs),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// backends holds the optional stores behind /me/chat and /predict/jobs.
// Disabled surfaces stay nil and answer 503.
type backends struct {
	chats   *chatlog.Store
	turns   handlers.TurnLock
	jobs    *predict.Service
	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// openBackends connects only what the enabled surfaces need, so a bare
// relay starts with nothing but the model key.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if cfg.HostedChat && cfg.ChatStore != "redis" && cfg.ChatStore != "sql" {
		return nil, fmt.Errorf("unsupported CHAT_STORE=%q", cfg.ChatStore)
	}

	var models []any
	if cfg.PredictJobs {
		models = append(models, &predict.Job{})
	}
	if cfg.HostedChat && cfg.ChatStore == "sql" {
		models = append(models, &sqlkv.Entry{})
	}
	var gdb *gorm.DB
	if len(models) > 0 {
		gdb, err = db.Connect(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			b.closers = append(b.closers, func() { _ = sqlDB.Close() })
		}
		if err := db.Migrate(gdb, models...); err != nil {
			return nil, err
		}
	}

	if cfg.HostedChat {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		b.closers = append(b.closers, func() { _ = rds.Close() })
		if err := rds.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		var backend kv.KV = rds
		if cfg.ChatStore == "sql" {
			backend = sqlkv.New(gdb)
		}
		b.chats = chatlog.NewStore(backend, chatlog.NewZapReporter(logger))
		b.turns = rds
	}

	if cfg.PredictJobs {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return nil, fmt.Errorf("rabbit publisher: %w", err)
		}
		b.closers = append(b.closers, func() { _ = pub.Close() })
		b.jobs = predict.NewService(predict.NewRepo(gdb), nil, pub, logger)
	}
	return b, nil
}
