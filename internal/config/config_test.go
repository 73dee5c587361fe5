// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.Scan.AdvanceInterval)
	assert.Equal(t, 50.0, cfg.Discovery.MinWidth)
	assert.Equal(t, 50.0, cfg.Discovery.MinHeight)
	assert.Equal(t, 500, cfg.Autofill.DefaultFillTimeoutMs)
	assert.Equal(t, 2000, cfg.Autofill.MaxFillTimeoutMs)
	assert.Equal(t, 20.0, cfg.Manual.DedupTolerancePx)
	assert.Equal(t, 1500*time.Millisecond, cfg.Manual.ToastDuration)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Browser Driver", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.Driver = "netscape"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.driver")
	})

	t.Run("Advance Interval", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Scan.AdvanceInterval = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scan.advance_interval")
	})

	t.Run("Autofill Timeouts", func(t *testing.T) {
		a := AutofillConfig{DefaultFillTimeoutMs: 500, MaxFillTimeoutMs: 2000}
		assert.NoError(t, a.Validate())

		a.DefaultFillTimeoutMs = 2500
		assert.Error(t, a.Validate())

		a.DefaultFillTimeoutMs = -1
		assert.Error(t, a.Validate())
	})

	t.Run("Store Drivers", func(t *testing.T) {
		assert.NoError(t, (&StoreConfig{Driver: StoreMemory}).Validate())
		assert.Error(t, (&StoreConfig{Driver: StoreSQLite}).Validate())
		assert.NoError(t, (&StoreConfig{Driver: StoreSQLite, Path: "/tmp/pf.db"}).Validate())

		err := (&StoreConfig{Driver: StorePostgres}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PAGEFINDER_STORE_DSN")

		assert.Error(t, (&StoreConfig{Driver: "mongo"}).Validate())
	})

	t.Run("Binding Name", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Manual.BindingName = ""
		assert.Error(t, cfg.Validate())
	})
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
browser:
  driver: rod
  headless: false
scan:
  advance_interval: 500ms
store:
  driver: memory
manual:
  dedup_tolerance_px: 12
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, DriverRod, cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.AdvanceInterval)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 12.0, cfg.Manual.DedupTolerancePx)
	// Untouched sections keep their defaults.
	assert.Equal(t, 500, cfg.Autofill.DefaultFillTimeoutMs)
}

func TestNewConfigFromViper_ExpandsStorePath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	v := viper.New()
	SetDefaults(v)
	v.Set("store.path", "~/data/pf.db")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/data/pf.db", cfg.Store.Path)
}

func TestNewConfigFromViper_InvalidFails(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("store.driver", StorePostgres)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
