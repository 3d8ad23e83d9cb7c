package parsers

import (
	"benchdriver/core/configs"
	"bytes"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse the chain configuration file.
// This function both (a) reads the file from disk, and (b) calls the YAML
// to be parsed.
func ParseChainConfig(filePath string) (*configs.ChainConfig, error) {

	// Get the bytes of the file
	configFileBytes, err := os.ReadFile(filePath)

	if err != nil {
		return nil, err
	}

	return parseChainYaml(configFileBytes)
}

// Parse the chain configuration in the YAML files.
// Unknown fields are refused so that a typo in a key entry does not
// silently drop it.
func parseChainYaml(fileContents []byte) (*configs.ChainConfig, error) {
	var chainConfig configs.ChainConfig

	decoder := yaml.NewDecoder(bytes.NewReader(fileContents))
	decoder.KnownFields(true)

	err := decoder.Decode(&chainConfig)

	if err != nil {
		return nil, err
	}

	err = chainConfig.Validate()
	if err != nil {
		return nil, err
	}

	return &chainConfig, nil
}

// MockChainConfig is the configuration used when no file is given and the
// mock chain is selected.
func MockChainConfig() *configs.ChainConfig {
	return &configs.ChainConfig{
		Name: configs.ChainMock,
		Keys: []configs.ChainKey{
			{Name: "mock", Path: "//Mock"},
		},
	}
}

// ErrNoChainConfig is returned when neither a file nor a chain name is
// available.
var ErrNoChainConfig = errors.New("no chain configuration given")
