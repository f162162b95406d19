// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/luxfi/adledger/pkg/catalog"
	"github.com/luxfi/adledger/pkg/ids"
	"github.com/luxfi/adledger/pkg/registry"
	"github.com/luxfi/adledger/pkg/sponsorship"
)

// Config is the daemon configuration. Flags override file values.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	DB       string `yaml:"db"`
	APIPort  int    `yaml:"api_port"`
	OpsPort  int    `yaml:"ops_port"`
	LogLevel string `yaml:"log_level"`

	// Operators may create ad spots and verify ad views.
	Operators []string `yaml:"operators"`

	// Genesis balances minted at startup, hex account to amount.
	Genesis map[string]uint64 `yaml:"genesis"`

	MinDeposit uint64 `yaml:"min_deposit"`
	MinFee     uint64 `yaml:"min_fee"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:    "/tmp/adledgerd",
		DB:         "badger",
		APIPort:    8080,
		OpsPort:    9090,
		LogLevel:   "info",
		MinDeposit: registry.DefaultParams().MinDeposit,
		MinFee:     sponsorship.DefaultParams().MinFee,
	}
}

// LoadConfig reads a yaml config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c Config) registryParams() registry.Params {
	p := registry.DefaultParams()
	if c.MinDeposit > 0 {
		p.MinDeposit = c.MinDeposit
	}
	return p
}

func (c Config) catalogParams() catalog.Params {
	return catalog.DefaultParams()
}

func (c Config) sponsorshipParams() sponsorship.Params {
	p := sponsorship.DefaultParams()
	if c.MinFee > 0 {
		p.MinFee = c.MinFee
	}
	return p
}

func (c Config) operatorIDs() ([]ids.AccountID, error) {
	operators := make([]ids.AccountID, 0, len(c.Operators))
	for _, raw := range c.Operators {
		account, err := ids.AccountIDFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing operator %q: %w", raw, err)
		}
		operators = append(operators, account)
	}
	return operators, nil
}

func (c Config) genesisBalances() (map[ids.AccountID]uint64, error) {
	balances := make(map[ids.AccountID]uint64, len(c.Genesis))
	for raw, amount := range c.Genesis {
		account, err := ids.AccountIDFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing genesis account %q: %w", raw, err)
		}
		balances[account] = amount
	}
	return balances, nil
}
