package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_EngineConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("ENGINE_LOCK_WAIT_TIMEOUT", "750ms")
	os.Setenv("ENGINE_SLOT_INTERVAL_MINUTES", "15")
	defer func() {
		os.Unsetenv("ENGINE_LOCK_WAIT_TIMEOUT")
		os.Unsetenv("ENGINE_SLOT_INTERVAL_MINUTES")
	}()

	// Load config
	cfg, err := Load()
	assert.NoError(t, err)

	// Verify engine config
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.LockWaitTimeout)
	assert.Equal(t, 15, cfg.Engine.SlotIntervalMinutes)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("ENGINE_LOCK_WAIT_TIMEOUT")
	os.Unsetenv("ENGINE_SLOT_INTERVAL_MINUTES")
	os.Unsetenv("DB_NAME")

	cfg, err := Load()
	assert.NoError(t, err)

	// Verify defaults
	assert.Equal(t, 3*time.Second, cfg.Engine.LockWaitTimeout)
	assert.Equal(t, 30, cfg.Engine.SlotIntervalMinutes)
	assert.Equal(t, 500, cfg.Engine.MaxReasonLength)
	assert.Equal(t, "vet_appointments", cfg.Database.Database)
	assert.Equal(t, "development", cfg.Env)
}

func TestLoad_RejectsBadSlotInterval(t *testing.T) {
	os.Setenv("ENGINE_SLOT_INTERVAL_MINUTES", "45")
	defer os.Unsetenv("ENGINE_SLOT_INTERVAL_MINUTES")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		Database: "vet_appointments", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=vet_appointments sslmode=disable",
		cfg.DatabaseDSN(),
	)
}
