package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/lobby"
)

// Config is the complete server configuration.
type Config struct {
	Server Settings      `hcl:"server,block"`
	Stakes []StakeConfig `hcl:"stake,block"`
}

// Settings contains server-level configuration. HandHistoryDir enables the
// PHH archive when set; hands are written under one subdirectory per table.
type Settings struct {
	Address        string `hcl:"address,optional"`
	Port           int    `hcl:"port,optional"`
	LogLevel       string `hcl:"log_level,optional"`
	AuthURL        string `hcl:"auth_url,optional"`
	AuthSecret     string `hcl:"auth_secret,optional"`
	HandHistoryDir string `hcl:"hand_history_dir,optional"`
}

// StakeConfig defines one system table class the lobby keeps stocked.
type StakeConfig struct {
	Label       string `hcl:"label,label"`
	Variant     string `hcl:"variant"`
	BettingType string `hcl:"betting_type,optional"`
	SmallBlind  int    `hcl:"small_blind"`
	BigBlind    int    `hcl:"big_blind"`
	Ante        int    `hcl:"ante,optional"`
}

// DefaultConfig returns the configuration used when no file is present: a
// no-limit texas table and a pot-limit omaha table at 1/2.
func DefaultConfig() *Config {
	return &Config{
		Server: Settings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Stakes: []StakeConfig{
			{
				Label:       "1/2",
				Variant:     "texas",
				BettingType: "no_limit",
				SmallBlind:  1,
				BigBlind:    2,
			},
			{
				Label:       "1/2",
				Variant:     "omaha",
				BettingType: "pot_limit",
				SmallBlind:  1,
				BigBlind:    2,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	for i := range config.Stakes {
		if config.Stakes[i].BettingType == "" {
			config.Stakes[i].BettingType = "no_limit"
		}
	}

	return &config, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if len(c.Stakes) == 0 {
		return fmt.Errorf("at least one stake must be configured")
	}

	seen := make(map[string]bool, len(c.Stakes))
	for _, stake := range c.Stakes {
		if _, err := game.ParseVariant(stake.Variant); err != nil {
			return fmt.Errorf("stake %s: %w", stake.Label, err)
		}
		if _, err := game.ParseBettingType(stake.BettingType); err != nil {
			return fmt.Errorf("stake %s: %w", stake.Label, err)
		}
		if stake.SmallBlind <= 0 {
			return fmt.Errorf("stake %s: small blind must be positive", stake.Label)
		}
		if stake.BigBlind <= stake.SmallBlind {
			return fmt.Errorf("stake %s: big blind must be greater than small blind", stake.Label)
		}
		if stake.Ante < 0 {
			return fmt.Errorf("stake %s: ante cannot be negative", stake.Label)
		}
		class := stake.Variant + "/" + stake.Label
		if seen[class] {
			return fmt.Errorf("stake %s: duplicate class for variant %s", stake.Label, stake.Variant)
		}
		seen[class] = true
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// StakeDefs converts the configured stakes into lobby definitions. Call
// Validate first; parse failures surface here otherwise.
func (c *Config) StakeDefs() ([]lobby.StakeDef, error) {
	defs := make([]lobby.StakeDef, 0, len(c.Stakes))
	for _, stake := range c.Stakes {
		variant, err := game.ParseVariant(stake.Variant)
		if err != nil {
			return nil, fmt.Errorf("stake %s: %w", stake.Label, err)
		}
		betting, err := game.ParseBettingType(stake.BettingType)
		if err != nil {
			return nil, fmt.Errorf("stake %s: %w", stake.Label, err)
		}
		defs = append(defs, lobby.StakeDef{
			Variant: variant,
			Betting: betting,
			Label:   stake.Label,
			Blinds:  game.Blinds{Small: stake.SmallBlind, Big: stake.BigBlind, Ante: stake.Ante},
		})
	}
	return defs, nil
}
