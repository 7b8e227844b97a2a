package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"salesassistant/config"
	"salesassistant/controllers"
	"salesassistant/logging"
	"salesassistant/routes"
	"salesassistant/services"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := services.NewCompletionClient(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create completion client", zap.Error(err))
	}

	archiver, err := services.NewArchiver(ctx, cfg.Archive)
	if err != nil {
		logger.Fatal("failed to create archiver", zap.Error(err))
	}

	sessions := services.NewSessionManager(client, cfg.LLM.DefaultModel, archiver, logger)
	router := routes.SetupRouter(
		controllers.NewChatController(sessions, logger),
		controllers.NewInsightController(sessions, logger),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("model", cfg.LLM.DefaultModel),
			zap.Bool("mock_llm", cfg.UseMockLLM()),
			zap.String("archive", cfg.Archive.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
