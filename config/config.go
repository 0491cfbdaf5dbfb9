package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"lifemarket/native/market"
)

// Config carries the marketd service configuration.
type Config struct {
	RPCAddress       string   `toml:"RPCAddress"`
	DataDir          string   `toml:"DataDir"`
	Environment      string   `toml:"Environment"`
	Operator         string   `toml:"Operator"`
	CustodyAccount   string   `toml:"CustodyAccount"`
	CustodyModel     string   `toml:"CustodyModel"`
	FeeBps           uint32   `toml:"FeeBps"`
	MaxFeeBps        uint32   `toml:"MaxFeeBps"`
	AcceptedTokens   []string `toml:"AcceptedTokens"`
	TargetedListings bool     `toml:"TargetedListings"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./market-data"
	}
	if strings.TrimSpace(c.CustodyModel) == "" {
		c.CustodyModel = "escrow"
	}
	if c.MaxFeeBps == 0 {
		c.MaxFeeBps = market.AbsoluteMaxFeeBps
	}
	if c.AcceptedTokens == nil {
		c.AcceptedTokens = []string{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:       ":8545",
		DataDir:          "./market-data",
		Environment:      "local",
		CustodyModel:     "escrow",
		MaxFeeBps:        market.AbsoluteMaxFeeBps,
		AcceptedTokens:   []string{},
		TargetedListings: true,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Validate checks the configuration for internal consistency without
// resolving addresses.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Operator) == "" {
		return fmt.Errorf("config: Operator address required")
	}
	if _, err := parseAddress(c.Operator); err != nil {
		return fmt.Errorf("config: Operator: %w", err)
	}
	if strings.TrimSpace(c.CustodyAccount) == "" {
		return fmt.Errorf("config: CustodyAccount address required")
	}
	if _, err := parseAddress(c.CustodyAccount); err != nil {
		return fmt.Errorf("config: CustodyAccount: %w", err)
	}
	if _, err := market.ParseCustodyModel(c.CustodyModel); err != nil {
		return err
	}
	feeCfg := market.FeeConfig{FeeBps: c.FeeBps, MaxFeeBps: c.MaxFeeBps}
	if err := feeCfg.Validate(); err != nil {
		return err
	}
	for _, token := range c.AcceptedTokens {
		if _, err := parseAddress(token); err != nil {
			return fmt.Errorf("config: AcceptedTokens entry %q: %w", token, err)
		}
	}
	return nil
}

// OperatorAddress returns the parsed operator account.
func (c *Config) OperatorAddress() ([20]byte, error) {
	return parseAddress(c.Operator)
}

// CustodyAddress returns the parsed custody account.
func (c *Config) CustodyAddress() ([20]byte, error) {
	return parseAddress(c.CustodyAccount)
}

// Custody returns the parsed custody model.
func (c *Config) Custody() (market.CustodyModel, error) {
	return market.ParseCustodyModel(c.CustodyModel)
}

// TokenAddresses returns the parsed fungible-token allow-list.
func (c *Config) TokenAddresses() ([][20]byte, error) {
	tokens := make([][20]byte, 0, len(c.AcceptedTokens))
	for _, raw := range c.AcceptedTokens {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("config: AcceptedTokens entry %q: %w", raw, err)
		}
		tokens = append(tokens, addr)
	}
	return tokens, nil
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return [20]byte{}, fmt.Errorf("address must be non-zero")
	}
	return addr, nil
}
