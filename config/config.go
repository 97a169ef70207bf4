// Package config loads and validates the strategy daemon's TOML
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of the daemon configuration file.
type Config struct {
	Environment   string `toml:"Environment"`
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	JournalPath   string `toml:"JournalPath"`
	AuthTokenEnv  string `toml:"AuthTokenEnv"`

	Chain     Chain     `toml:"Chain"`
	Contracts Contracts `toml:"Contracts"`
	Routes    Routes    `toml:"Routes"`
	Fees      Fees      `toml:"Fees"`
	Harvest   Harvest   `toml:"Harvest"`
	Log       Log       `toml:"Log"`
	RateLimit RateLimit `toml:"RateLimit"`
}

// Chain describes the EVM endpoint and operator identity.
type Chain struct {
	RPCEndpoint    string `toml:"RPCEndpoint"`
	ChainID        uint64 `toml:"ChainID"`
	OperatorKeyEnv string `toml:"OperatorKeyEnv"`
}

// Contracts lists the on-chain collaborators and token identities.
type Contracts struct {
	Vault         string `toml:"Vault"`
	Owner         string `toml:"Owner"`
	Manager       string `toml:"Manager"`
	Strategist    string `toml:"Strategist"`
	Treasury      string `toml:"Treasury"`
	Want          string `toml:"Want"`
	Output        string `toml:"Output"`
	Native        string `toml:"Native"`
	Farm          string `toml:"Farm"`
	Router        string `toml:"Router"`
	SecondaryPair string `toml:"SecondaryPair"`

	PrimaryPool         uint64 `toml:"PrimaryPool"`
	SecondaryPool       uint64 `toml:"SecondaryPool"`
	PendingRewardMethod string `toml:"PendingRewardMethod"`
}

// Routes holds the configured swap paths as hex address sequences.
type Routes struct {
	OutputToNative     []string `toml:"OutputToNative"`
	OutputToLP0        []string `toml:"OutputToLP0"`
	OutputToLP1        []string `toml:"OutputToLP1"`
	NativeToSecondary0 []string `toml:"NativeToSecondary0"`
	NativeToSecondary1 []string `toml:"NativeToSecondary1"`
}

// Fees holds the harvest fee split, in fractions of 1000.
type Fees struct {
	CallFee       uint64 `toml:"CallFee"`
	StrategistFee uint64 `toml:"StrategistFee"`
	ProtocolFee   uint64 `toml:"ProtocolFee"`
}

// Harvest controls the compounding schedule.
type Harvest struct {
	Interval         duration `toml:"Interval"`
	HarvestOnDeposit bool     `toml:"HarvestOnDeposit"`
}

// Log configures optional file rotation for the JSON log stream.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RateLimit bounds the admin API request rate.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// duration decodes TOML duration strings such as "15m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads the configuration from path, applies defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "development"
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./compounder-data"
	}
	if strings.TrimSpace(c.JournalPath) == "" {
		c.JournalPath = filepath.Join(c.DataDir, "journal.db")
	}
	if strings.TrimSpace(c.AuthTokenEnv) == "" {
		c.AuthTokenEnv = "STRATEGYD_AUTH_TOKEN"
	}
	if strings.TrimSpace(c.Chain.OperatorKeyEnv) == "" {
		c.Chain.OperatorKeyEnv = "STRATEGYD_OPERATOR_KEY"
	}
	if strings.TrimSpace(c.Contracts.PendingRewardMethod) == "" {
		c.Contracts.PendingRewardMethod = "pendingReward"
	}
	if c.Harvest.Interval.Duration == 0 {
		c.Harvest.Interval.Duration = time.Hour
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}
}

// HarvestInterval returns the configured compounding cadence.
func (c *Config) HarvestInterval() time.Duration {
	return c.Harvest.Interval.Duration
}
