package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the adapter. Values load from a YAML
// file first; credentials found in the environment override the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Alpaca struct {
		TradingURL string `yaml:"trading_url"`
		DataURL    string `yaml:"data_url"`
		StreamURL  string `yaml:"stream_url"`
		KeyID      string `yaml:"key_id"`
		SecretKey  string `yaml:"secret_key"`
	} `yaml:"alpaca"`

	Stream struct {
		Symbols       []string `yaml:"symbols"`        // equities, e.g. "AAPL"
		CryptoSymbols []string `yaml:"crypto_symbols"` // pairs, e.g. "BTC/USD"
		MaxRetries    int      `yaml:"max_retries"`
	} `yaml:"stream"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, then applies
// defaults, environment overrides and validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a config pointed at the paper trading endpoints
// with credentials taken from the environment.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	cfg.overrideWithEnv()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "alpaca-go"
	}
	if c.App.Version == "" {
		c.App.Version = "dev"
	}
	if c.Alpaca.TradingURL == "" {
		c.Alpaca.TradingURL = "https://paper-api.alpaca.markets"
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Alpaca.StreamURL == "" {
		c.Alpaca.StreamURL = "wss://stream.data.alpaca.markets/v2/iex"
	}
	if c.Stream.MaxRetries == 0 {
		c.Stream.MaxRetries = 10
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "ticks.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// UserAgent identifies the adapter on HTTP requests and websocket
// handshakes.
func (c *Config) UserAgent() string {
	return c.App.Name + "/" + c.App.Version
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Alpaca.TradingURL, "http://") && !strings.HasPrefix(c.Alpaca.TradingURL, "https://") {
		return fmt.Errorf("invalid trading URL: %s", c.Alpaca.TradingURL)
	}
	if !strings.HasPrefix(c.Alpaca.DataURL, "http://") && !strings.HasPrefix(c.Alpaca.DataURL, "https://") {
		return fmt.Errorf("invalid data URL: %s", c.Alpaca.DataURL)
	}
	if !strings.HasPrefix(c.Alpaca.StreamURL, "ws://") && !strings.HasPrefix(c.Alpaca.StreamURL, "wss://") {
		return fmt.Errorf("invalid stream URL: %s", c.Alpaca.StreamURL)
	}
	if c.Alpaca.KeyID == "" || c.Alpaca.SecretKey == "" {
		return fmt.Errorf("missing API credentials: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}
	if c.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream max_retries must not be negative")
	}
	return nil
}

// overrideWithEnv lets environment variables win over file values so
// credentials can stay out of the config file.
func (c *Config) overrideWithEnv() {
	if c.Alpaca.KeyID != "" || c.Alpaca.SecretKey != "" {
		fmt.Println("WARNING: API credentials found in config file.")
		fmt.Println("Prefer the APCA_API_KEY_ID and APCA_API_SECRET_KEY environment variables.")
	}

	if key := os.Getenv("APCA_API_KEY_ID"); key != "" {
		c.Alpaca.KeyID = key
	}
	if secret := os.Getenv("APCA_API_SECRET_KEY"); secret != "" {
		c.Alpaca.SecretKey = secret
	}
}
