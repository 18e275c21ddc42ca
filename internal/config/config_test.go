package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "webpilot", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 100, cfg.Locator.BaseScore)
	assert.Equal(t, 50, cfg.Locator.IDBonus)
	assert.Equal(t, 3, cfg.Interaction.MaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("locator.resolve_timeout", "3s")
	v.Set("interaction.max_attempts", 5)
	v.Set("browser.headless", false)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Locator.ResolveTimeout)
	assert.Equal(t, 5, cfg.Interaction.MaxAttempts)
	assert.False(t, cfg.Browser.Headless)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Interaction.MaxAttempts = 0 }},
		{"negative backoff", func(c *Config) { c.Interaction.Backoff = -time.Second }},
		{"zero resolve timeout", func(c *Config) { c.Locator.ResolveTimeout = 0 }},
		{"zero settle window", func(c *Config) { c.Locator.SettleWindow = 0 }},
		{"zero nav rate", func(c *Config) { c.Network.NavigationsPerSecond = 0 }},
		{"artifacts without dir", func(c *Config) { c.Artifacts.Enabled = true; c.Artifacts.Dir = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
