package configs

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Prefix of values read from the environment instead of the file.
const envPrefix = "env:"

// ChainKey describes where the signing material of one account comes from.
// Either Private is set (raw key) or Path is set, optionally with a Seed
// (derived key, an empty seed meaning the development seed).
// Private and Seed may be "env:NAME" references; they are only expanded
// when the key is resolved and are never printed.
type ChainKey struct {
	Name    string `yaml:"name"`    // Label used on the command line
	Private string `yaml:"private"` // Raw private key, hex
	Seed    string `yaml:"seed"`    // Mnemonic or hex seed, empty for the dev seed
	Path    string `yaml:"path"`    // Derivation path, e.g. //Alice
	Address string `yaml:"address"` // Optional expected address, checked on resolve
}

// IsRaw tells if the key is a raw private key.
func (ck *ChainKey) IsRaw() bool {
	return ck.Private != ""
}

// PrivateKey returns the raw private key with env references expanded.
func (ck *ChainKey) PrivateKey() (string, error) {
	return expand(ck.Private)
}

// SeedPhrase returns the seed with env references expanded.
func (ck *ChainKey) SeedPhrase() (string, error) {
	return expand(ck.Seed)
}

// String never shows secret material.
func (ck ChainKey) String() string {
	if ck.Path != "" {
		return fmt.Sprintf("%s(%s)", ck.Name, ck.Path)
	}
	return ck.Name
}

// GoString keeps %#v from dumping the fields.
func (ck ChainKey) GoString() string {
	return "configs.ChainKey{" + ck.String() + "}"
}

// Naive check if the prefixed PrivateKey has "0x" leading.
func checkPrefix(keyHex string) bool {
	return len(keyHex) >= 2 && // Length must be 0x or more
		keyHex[0] == '0' && // Starts with 0
		(keyHex[1] == 'x' || keyHex[1] == 'X') // followed by an x or X
}

// TrimHexPrefix removes a leading 0x or 0X.
func TrimHexPrefix(value string) string {
	if checkPrefix(value) {
		return value[2:]
	}
	return value
}

func expand(value string) (string, error) {
	var name string
	var ok bool

	if !strings.HasPrefix(value, envPrefix) {
		return value, nil
	}

	name = strings.TrimPrefix(value, envPrefix)
	if name == "" {
		return "", errors.New("empty environment variable name")
	}

	value, ok = os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}

	return value, nil
}

func (ck *ChainKey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var c struct {
		Name    string `yaml:"name"`
		Private string `yaml:"private"`
		Seed    string `yaml:"seed"`
		Path    string `yaml:"path"`
		Address string `yaml:"address"`
	}
	err := unmarshal(&c)

	if err != nil {
		return err
	}

	if c.Private != "" && (c.Seed != "" || c.Path != "") {
		return fmt.Errorf("key '%s' mixes a private key with a seed or path", c.Name)
	}

	if c.Private == "" && c.Path == "" && c.Seed == "" {
		return fmt.Errorf("key '%s' has neither private key nor derivation path", c.Name)
	}

	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("key '%s' has invalid derivation path '%s'", c.Name, c.Path)
	}

	(*ck).Name = c.Name
	(*ck).Private = c.Private
	(*ck).Seed = c.Seed
	(*ck).Path = c.Path
	(*ck).Address = c.Address

	return nil
}
