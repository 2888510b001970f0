package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setGatewayEnv(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_CONSUMER_SECRET", "secret")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_CALLBACK_URL", "https://example.com/payments/callback")
	t.Setenv("DB_NAME", "mpesa")
}

func TestLoadDefaults(t *testing.T) {
	setGatewayEnv(t)

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SandboxURL, cfg.Mpesa.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, "Payment", cfg.Mpesa.AccountReference)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Sweep.Grace)
	assert.Equal(t, 100, cfg.Sweep.Batch)
	require.NoError(t, cfg.Validate())
}

func TestLoadProductionAndOverride(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("MPESA_ENVIRONMENT", "Production")
	assert.Equal(t, ProductionURL, Load().Mpesa.BaseURL)

	t.Setenv("MPESA_BASE_URL", "http://127.0.0.1:9000/")
	assert.Equal(t, "http://127.0.0.1:9000", Load().Mpesa.BaseURL)
}

func TestValidateListsMissingKeys(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "")
	t.Setenv("MPESA_CONSUMER_SECRET", "")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "")
	t.Setenv("MPESA_CALLBACK_URL", "")
	t.Setenv("DB_NAME", "")

	err := Load().Validate()
	require.Error(t, err)
	for _, key := range []string{"MPESA_CONSUMER_KEY", "MPESA_CONSUMER_SECRET", "MPESA_PASSKEY", "MPESA_CALLBACK_URL", "DB_NAME"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.NotContains(t, err.Error(), "MPESA_SHORTCODE")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	assert.ErrorContains(t, Load().Validate(), "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "")
	assert.ErrorContains(t, Load().Validate(), "MONGO_URI")
}
