package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Names of the supported chain families.
const (
	ChainEthereum  = "ethereum"
	ChainSubstrate = "substrate"
	ChainMock      = "mock"
)

// Substrate generic address format, used when the configuration does not
// set one.
const DefaultSS58Prefix uint16 = 42

// ChainConfig contains the information about the blockchain configuration file
type ChainConfig struct {
	Name         string        `yaml:"name"`                   // Chain family (ethereum, substrate, mock)
	Nodes        []string      `yaml:"nodes"`                  // RPC endpoints, the first one is used
	ChainID      uint64        `yaml:"chainId,omitempty"`      // Expected EVM chain id, 0 accepts the node's
	SS58Prefix   *uint16       `yaml:"ss58Prefix,omitempty"`   // Substrate address format
	TransferCall string        `yaml:"transferCall,omitempty"` // Substrate call used for transfers
	GasLimit     uint64        `yaml:"gasLimit,omitempty"`     // EVM gas limit, 0 uses the driver default
	Confirm      ConfirmConfig `yaml:"confirm,omitempty"`      // Bounded wait for confirmation
	Keys         []ChainKey    `yaml:"keys,flow"`              // Key information
}

// ConfirmConfig bounds the confirmation wait.
type ConfirmConfig struct {
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // Total wait once submitted
	Interval time.Duration `yaml:"interval,omitempty"` // Receipt poll period (EVM)
}

// Endpoint returns the node the driver talks to.
func (c *ChainConfig) Endpoint() string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return c.Nodes[0]
}

// AddressFormat returns the SS58 prefix to use for substrate addresses.
func (c *ChainConfig) AddressFormat() uint16 {
	if c.SS58Prefix == nil {
		return DefaultSS58Prefix
	}
	return *c.SS58Prefix
}

// Validate checks the fields which do not depend on the chain family.
func (c *ChainConfig) Validate() error {
	switch c.Name {
	case ChainEthereum, ChainSubstrate:
		if c.Endpoint() == "" {
			return fmt.Errorf("chain '%s' needs at least one node", c.Name)
		}
	case ChainMock:
	case "":
		return errors.New("missing chain name")
	default:
		return fmt.Errorf("unknown chain '%s'", c.Name)
	}

	if c.Confirm.Timeout < 0 {
		return fmt.Errorf("negative confirm timeout %s", c.Confirm.Timeout)
	}

	if c.Confirm.Interval < 0 {
		return fmt.Errorf("negative confirm interval %s", c.Confirm.Interval)
	}

	for i := range c.Keys {
		for j := 0; j < i; j++ {
			if c.Keys[i].Name != "" && c.Keys[i].Name == c.Keys[j].Name {
				return fmt.Errorf("duplicate key name '%s'", c.Keys[i].Name)
			}
		}
	}

	return nil
}

// FindKey returns the key entry called `name`.
// An empty name selects the first entry. A name which starts with "//" and
// matches no entry is taken as a derivation path from the development
// seed, the way development accounts are addressed on substrate nodes.
func (c *ChainConfig) FindKey(name string) (*ChainKey, error) {
	if name == "" {
		if len(c.Keys) == 0 {
			return nil, errors.New("no key configured")
		}
		return &c.Keys[0], nil
	}

	for i := range c.Keys {
		if c.Keys[i].Name == name {
			return &c.Keys[i], nil
		}
	}

	if strings.HasPrefix(name, "//") {
		return &ChainKey{Name: name, Path: name}, nil
	}

	return nil, fmt.Errorf("unknown key '%s'", name)
}
