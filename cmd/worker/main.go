package main

import (
	"context"

	"mpesa-service/internal/config"
	"mpesa-service/internal/database"
	"mpesa-service/internal/gateway"
	"mpesa-service/internal/services"
	"mpesa-service/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load env
	config.LoadEnv("../../.env", ".env")
	cfg := config.Load()
	cfg.ConfigureLogger()

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	stores, err := database.Open(context.Background(), cfg.Database, false)
	if err != nil {
		logrus.Fatal(err)
	}
	defer stores.Close()

	client := gateway.NewClient(cfg.Mpesa.BaseURL, cfg.Mpesa.ConsumerKey, cfg.Mpesa.ConsumerSecret, cfg.Mpesa.Timeout)
	tokens := services.NewAccessTokenCache(client)
	builder := services.NewPaymentRequestBuilder(cfg.Mpesa.ShortCode, cfg.Mpesa.PassKey, cfg.Mpesa.CallbackURL, cfg.Mpesa.AccountReference)

	// The worker only resolves tasks, so it never enqueues.
	statusService := services.NewStatusService(stores.Transactions, client, tokens, builder, nil, cfg.Sweep.Grace, cfg.Sweep.Batch)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	logrus.Info("Starting Asynq Worker...")
	if err := worker.StartWorker(redisOpt, statusService); err != nil {
		logrus.Fatal(err)
	}
}
