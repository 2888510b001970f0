package main

import (
	"context"

	"mpesa-service/internal/config"
	"mpesa-service/internal/database"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	config.LoadEnv(".env", "../.env")
	cfg := config.Load()
	cfg.ConfigureLogger()

	// Initialize Database and run migrations
	logrus.WithField("driver", cfg.Database.Driver).Info("Running database migrations...")
	stores, err := database.Open(context.Background(), cfg.Database, true)
	if err != nil {
		logrus.Fatal(err)
	}
	stores.Close()

	logrus.Info("Migrations completed successfully!")
}
