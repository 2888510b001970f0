package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mpesa-service/internal/config"
	"mpesa-service/internal/database"
	"mpesa-service/internal/gateway"
	"mpesa-service/internal/handlers"
	"mpesa-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	config.LoadEnv(".env", "../.env")
	cfg := config.Load()
	cfg.ConfigureLogger()

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize storage
	stores, err := database.Open(context.Background(), cfg.Database, true)
	if err != nil {
		logrus.Fatal(err)
	}
	defer stores.Close()

	// Gateway
	client := gateway.NewClient(cfg.Mpesa.BaseURL, cfg.Mpesa.ConsumerKey, cfg.Mpesa.ConsumerSecret, cfg.Mpesa.Timeout)
	tokens := services.NewAccessTokenCache(client)
	builder := services.NewPaymentRequestBuilder(cfg.Mpesa.ShortCode, cfg.Mpesa.PassKey, cfg.Mpesa.CallbackURL, cfg.Mpesa.AccountReference)

	paymentService := services.NewPaymentService(stores.Transactions, client, tokens, builder)
	callbackService := services.NewCallbackService(stores.Transactions, stores.CallbackLogs)

	// Redis/Asynq Client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asynqClient.Close()

	statusService := services.NewStatusService(stores.Transactions, client, tokens, builder, asynqClient, cfg.Sweep.Grace, cfg.Sweep.Batch)

	// Start Cron Schedulers
	scheduler, err := statusService.StartScheduler(cfg.Sweep.Schedule)
	if err != nil {
		logrus.Fatal(err)
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(paymentService, callbackService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("HTTP Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("server shutdown failed")
	}
}
