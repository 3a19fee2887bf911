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
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8050", cfg.GetAddr())
	assert.Equal(t, "energy_consumption_data.csv", cfg.GetEnergyFile())
	assert.Equal(t, "appliance_power_consumption.csv", cfg.GetApplianceFile())
	assert.Equal(t, "csv", cfg.GetSource())
	assert.Equal(t, 5*time.Second, cfg.GetInterval())
	assert.Equal(t, 20.0, cfg.GetPricePerKWh())
	assert.Equal(t, "Ksh", cfg.GetCurrency())
	lo, hi := cfg.GetIncrementRange()
	assert.Equal(t, 0.004, lo)
	assert.Equal(t, 0.006, hi)
	assert.Equal(t, 30*time.Minute, cfg.GetIdleTimeout())
	assert.Equal(t, 7, cfg.GetTrendWindow())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Equal(t, "energydash", cfg.MQTT.GetTopicPrefix())
	assert.Equal(t, "energydash", cfg.MQTT.GetClientID())
	assert.False(t, cfg.Pie.FilterByDate)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
data:
  energy_file: data/energy.xlsx
  source: sqlite
meter:
  interval: 2s
  price_per_kwh: 25.5
  currency: USD
trend:
  window: 3
pie:
  filter_by_date: true
mqtt:
  enabled: true
  broker: "localhost:1883"
  topic_prefix: house
  client_id: den
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetAddr())
	assert.Equal(t, "data/energy.xlsx", cfg.GetEnergyFile())
	assert.Equal(t, "sqlite", cfg.GetSource())
	assert.Equal(t, 2*time.Second, cfg.GetInterval())
	assert.Equal(t, 25.5, cfg.GetPricePerKWh())
	assert.Equal(t, "USD", cfg.GetCurrency())
	assert.Equal(t, 3, cfg.GetTrendWindow())
	assert.True(t, cfg.Pie.FilterByDate)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "house", cfg.MQTT.GetTopicPrefix())
	assert.Equal(t, "den", cfg.MQTT.GetClientID())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted increments", "meter:\n  increment_min: 0.01\n  increment_max: 0.005\n"},
		{"negative price", "meter:\n  price_per_kwh: -1\n"},
		{"unknown source", "data:\n  source: postgres\n"},
		{"bad yaml", "meter: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
