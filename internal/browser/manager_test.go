// internal/browser/manager_test.go
package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sitepilot/internal/config"
)

// hasOption checks for an option by its printed form, which is enough to
// inspect flags without launching a browser.
func hasOption(opts []chromedp.ExecAllocatorOption, substring string) bool {
	for _, opt := range opts {
		if strings.Contains(fmt.Sprintf("%#v", opt), substring) {
			return true
		}
	}
	return false
}

func TestDefaultAllocatorOptions(t *testing.T) {
	t.Run("Baseline", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{Headless: true})
		assert.NotEmpty(t, opts)
		assert.False(t, hasOption(opts, "disable-cache"))
		assert.False(t, hasOption(opts, "ignore-certificate-errors"))
	})

	t.Run("CacheDisabled", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{DisableCache: true})
		assert.True(t, hasOption(opts, "disk-cache-size"))
		assert.True(t, hasOption(opts, "media-cache-size"))
		assert.True(t, hasOption(opts, "disable-cache"))
	})

	t.Run("IgnoreTLSErrors", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.True(t, hasOption(opts, "ignore-certificate-errors"))
		assert.True(t, hasOption(opts, "allow-insecure-localhost"))
	})

	t.Run("CustomArgs", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{
			Args: []string{"--custom-arg1", "--lang=en-US", "--"},
		})
		assert.True(t, hasOption(opts, "custom-arg1"))
		assert.True(t, hasOption(opts, "lang"))
		assert.True(t, hasOption(opts, "en-US"))
	})

	t.Run("Viewport", func(t *testing.T) {
		opts := DefaultAllocatorOptions(config.BrowserConfig{
			Viewport: map[string]int{"width": 1920, "height": 1080},
		})
		assert.True(t, hasOption(opts, "window-size"))

		opts = DefaultAllocatorOptions(config.BrowserConfig{Viewport: map[string]int{"width": 1920}})
		assert.False(t, hasOption(opts, "window-size"), "a partial viewport is ignored")
	})
}

func TestManager_ShutdownBeforeLaunch(t *testing.T) {
	m := NewManager(config.BrowserConfig{Headless: true}, zaptest.NewLogger(t))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_LaunchFailureIsSticky(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless: true,
		ExecPath: filepath.Join(t.TempDir(), "no-such-chrome"),
	}
	m := NewManager(cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := m.NewSession(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch browser")

	_, again := m.NewSession(ctx)
	assert.Equal(t, err, again)
}
