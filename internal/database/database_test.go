package database

import (
	"path/filepath"
	"testing"

	"mpesa-service/internal/config"
	"mpesa-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{User: "root", Password: "secret", Host: "db", Port: "3306", Name: "mpesa"})
	assert.Equal(t, "root:secret@tcp(db:3306)/mpesa?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Transaction{}))
	assert.True(t, db.Migrator().HasTable(&models.CallbackLog{}))
	assert.True(t, db.Migrator().HasIndex(&models.Transaction{}, "CheckoutRequestID"))
}
