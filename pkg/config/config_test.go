package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
backtest:
  tie_break: target_first
resolver:
  enabled: true
  providers:
    - name: groq
      base_url: https://api.example.com/v1
      model: llama
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "target_first", c.Backtest.TieBreak)
	assert.Equal(t, 7*24*time.Hour, c.Backtest.Horizon)
	assert.Equal(t, 15.0, c.Extraction.DefaultLeverage)
	assert.Equal(t, 0.7, c.Extraction.ConfidenceThreshold)
	assert.Equal(t, 3, c.Resolver.Attempts)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"sink":      func(c *Config) { c.Ingest.Sink = "redis" },
		"tie break": func(c *Config) { c.Backtest.TieBreak = "coin_flip" },
		"timeframe": func(c *Config) { c.Backtest.Timeframe = "1h" },
		"threshold": func(c *Config) { c.Extraction.ConfidenceThreshold = 1.5 },
		"providers": func(c *Config) { c.Resolver.Enabled = true },
		"relay":     func(c *Config) { c.Relay.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestApplyEnvProviderKeys(t *testing.T) {
	t.Setenv("OPEN_ROUTER_API_KEY", "secret")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RELAY_CHANNELS", "alpha,beta")
	t.Setenv("BACKTEST_WORKERS", "many")

	c := Default()
	c.Resolver.Providers = []Provider{{Name: "open-router", BaseURL: "http://x", Model: "m"}}
	c.ApplyEnv()

	assert.Equal(t, "secret", c.Resolver.Providers[0].APIKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, []string{"alpha", "beta"}, c.Relay.Channels)
	assert.Equal(t, Default().Backtest.Workers, c.Backtest.Workers)
}

func TestLoadDefaultWithEnv(t *testing.T) {
	t.Setenv("INGEST_SINK", "clickhouse")
	c, err := LoadDefaultWithEnv()
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", c.Ingest.Sink)

	t.Setenv("INGEST_SINK", "stdout")
	_, err = LoadDefaultWithEnv()
	assert.Error(t, err)
}
