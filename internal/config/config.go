package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig  `yaml:"server,omitempty"`
	Data          DataConfig    `yaml:"data,omitempty"`
	Meter         MeterConfig   `yaml:"meter,omitempty"`
	Session       SessionConfig `yaml:"session,omitempty"`
	Trend         TrendConfig   `yaml:"trend,omitempty"`
	Pie           PieConfig     `yaml:"pie,omitempty"`
	Log           LogConfig     `yaml:"log,omitempty"`
	MQTT          MQTTConfig    `yaml:"mqtt,omitempty"`
	HomeAssistant HAConfig      `yaml:"home_assistant,omitempty"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"` // e.g., ":8050"
}

// DataConfig holds the input table locations
type DataConfig struct {
	EnergyFile    string `yaml:"energy_file,omitempty"`
	ApplianceFile string `yaml:"appliance_file,omitempty"`
	Source        string `yaml:"source,omitempty"` // "csv" (files above) or "sqlite" (imported store)
}

// MeterConfig holds the running-total simulation settings
type MeterConfig struct {
	Interval     time.Duration `yaml:"interval,omitempty"`
	PricePerKWh  float64       `yaml:"price_per_kwh,omitempty"`
	Currency     string        `yaml:"currency,omitempty"`
	IncrementMin float64       `yaml:"increment_min,omitempty"`
	IncrementMax float64       `yaml:"increment_max,omitempty"`
}

// SessionConfig controls how long an idle browser session keeps its total
type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`
}

// TrendConfig holds the rolling-average chart settings
type TrendConfig struct {
	Window int `yaml:"window,omitempty"`
}

// PieConfig holds the appliance pie chart settings
type PieConfig struct {
	// FilterByDate applies the selected date range to dated appliance rows.
	// Off by default: the pie always shows the whole appliance table.
	FilterByDate bool `yaml:"filter_by_date,omitempty"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "text" or "json"
}

// MQTTConfig holds MQTT broker settings for publishing meter ticks
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.house_energy_consumption"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the getters cannot repair with a default
func (c *Config) Validate() error {
	lo, hi := c.GetIncrementRange()
	if lo > hi {
		return fmt.Errorf("invalid meter increment range: min %.4f > max %.4f", lo, hi)
	}
	if c.Meter.PricePerKWh < 0 {
		return fmt.Errorf("invalid meter price_per_kwh: %.2f", c.Meter.PricePerKWh)
	}
	switch c.GetSource() {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("invalid data source %q (available: csv, sqlite)", c.Data.Source)
	}
	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetAddr returns the listen address, defaulting to :8050
func (c *Config) GetAddr() string {
	if c.Server.Addr == "" {
		return ":8050"
	}
	return c.Server.Addr
}

// GetEnergyFile returns the energy consumption table path
func (c *Config) GetEnergyFile() string {
	if c.Data.EnergyFile == "" {
		return "energy_consumption_data.csv"
	}
	return c.Data.EnergyFile
}

// GetApplianceFile returns the appliance power table path
func (c *Config) GetApplianceFile() string {
	if c.Data.ApplianceFile == "" {
		return "appliance_power_consumption.csv"
	}
	return c.Data.ApplianceFile
}

// GetSource returns where the dashboard loads its tables from
func (c *Config) GetSource() string {
	if c.Data.Source == "" {
		return "csv"
	}
	return c.Data.Source
}

// GetInterval returns the timer tick period with a default of 5 seconds
func (c *Config) GetInterval() time.Duration {
	if c.Meter.Interval <= 0 {
		return 5 * time.Second
	}
	return c.Meter.Interval
}

// GetPricePerKWh returns the unit price, 20 when unset
func (c *Config) GetPricePerKWh() float64 {
	if c.Meter.PricePerKWh == 0 {
		return 20
	}
	return c.Meter.PricePerKWh
}

// GetCurrency returns the display currency
func (c *Config) GetCurrency() string {
	if c.Meter.Currency == "" {
		return "Ksh"
	}
	return c.Meter.Currency
}

// GetIncrementRange returns the bounds of the per-tick random increment
func (c *Config) GetIncrementRange() (float64, float64) {
	lo, hi := c.Meter.IncrementMin, c.Meter.IncrementMax
	if lo == 0 {
		lo = 0.004
	}
	if hi == 0 {
		hi = 0.006
	}
	return lo, hi
}

// GetIdleTimeout returns how long an unused session is kept
func (c *Config) GetIdleTimeout() time.Duration {
	if c.Session.IdleTimeout <= 0 {
		return 30 * time.Minute
	}
	return c.Session.IdleTimeout
}

// GetTrendWindow returns the rolling-average window size
func (c *Config) GetTrendWindow() int {
	if c.Trend.Window <= 0 {
		return 7
	}
	return c.Trend.Window
}

// GetLogLevel returns the configured log level name
func (c *Config) GetLogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}

// GetTopicPrefix returns the MQTT topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "energydash"
	}
	return m.TopicPrefix
}

// GetClientID returns the MQTT client identifier
func (m MQTTConfig) GetClientID() string {
	if m.ClientID == "" {
		return "energydash"
	}
	return m.ClientID
}
