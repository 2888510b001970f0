package database

import (
	"context"
	"fmt"
	"time"

	"mpesa-service/internal/config"
	"mpesa-service/internal/models"
	"mpesa-service/internal/repository"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DSN builds the MySQL connection string.
func DSN(cfg config.Database) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

// Connect opens MySQL with duplicate key errors translated to gorm.ErrDuplicatedKey.
func Connect(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logrus.WithField("host", cfg.Host).Info("Database connection established")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Transaction{},
		&models.CallbackLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// ConnectMongo connects and pings the configured MongoDB deployment.
func ConnectMongo(ctx context.Context, cfg config.Database) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logrus.WithField("database", cfg.MongoDatabase).Info("Mongo connection established")
	return client, client.Database(cfg.MongoDatabase), nil
}

// Stores holds the configured persistence backends and how to release them.
type Stores struct {
	Transactions repository.TransactionStore
	CallbackLogs repository.CallbackLogStore
	Close        func()
}

// Open connects the backend selected by STORE_DRIVER. When migrate is set the
// schema or indexes are brought up to date first.
func Open(ctx context.Context, cfg config.Database, migrate bool) (*Stores, error) {
	switch cfg.Driver {
	case "mongo":
		client, db, err := ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		trx := repository.NewMongoTransactionStore(db)
		if migrate {
			if err := trx.EnsureIndexes(ctx); err != nil {
				client.Disconnect(context.Background())
				return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
			}
		}
		return &Stores{
			Transactions: trx,
			CallbackLogs: repository.NewMongoCallbackLogStore(db),
			Close:        func() { client.Disconnect(context.Background()) },
		}, nil
	default:
		db, err := Connect(cfg)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := Migrate(db); err != nil {
				return nil, err
			}
		}
		return &Stores{
			Transactions: repository.NewGormTransactionStore(db),
			CallbackLogs: repository.NewGormCallbackLogStore(db),
			Close: func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			},
		}, nil
	}
}
