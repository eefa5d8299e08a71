// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "sitepilot.log", cfg.Logger().LogFile)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 1366, cfg.Browser().Viewport["width"])
	assert.True(t, cfg.Browser().Stealth)
	assert.Equal(t, 60*time.Second, cfg.Bridge().EvalTimeout)
	assert.Equal(t, 5, cfg.Bridge().RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Bridge().RetryDelay)
	assert.Equal(t, "https://app.uniswap.org", cfg.Sites().Uniswap)
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Bridge", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BridgeCfg.RetryAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bridge.retry_attempts must be a positive integer")

		cfg = NewDefaultConfig()
		cfg.SetBridgeEvalTimeout(0)
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bridge.eval_timeout")
	})

	t.Run("Browser", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BrowserCfg.NavigationTimeout = -time.Second
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.navigation_timeout")
	})

	t.Run("Sites", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SitesCfg.LinkedIn = "linkedin.com"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sites.linkedin must be an absolute URL")
	})
}

func TestSitesURL(t *testing.T) {
	sites := NewDefaultConfig().Sites()

	u, ok := sites.URL("twitter")
	assert.True(t, ok)
	assert.Equal(t, "https://x.com", u)

	_, ok = sites.URL("myspace")
	assert.False(t, ok)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  headless: false
  exec_path: /opt/chrome/chrome
bridge:
  retry_attempts: 2
  retry_delay: 1s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, "/opt/chrome/chrome", cfg.Browser().ExecPath)
		assert.Equal(t, 2, cfg.Bridge().RetryAttempts)
		assert.Equal(t, time.Second, cfg.Bridge().RetryDelay)
		// Untouched sections keep their defaults.
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("bridge.retry_attempts", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestLoad(t *testing.T) {
	t.Run("Explicit file and environment override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sitepilot.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: debug\nbridge:\n  retry_attempts: 3\n"), 0o600))
		t.Setenv("SITEPILOT_BRIDGE_RETRY_ATTEMPTS", "7")

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.Equal(t, 7, cfg.Bridge().RetryAttempts, "environment wins over the file")
	})

	t.Run("Missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("No file found uses defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, NewDefaultConfig(), cfg)
	})
}
