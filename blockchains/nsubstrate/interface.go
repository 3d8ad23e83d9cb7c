package nsubstrate


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"context"
	"strings"
)


type BlockchainInterface struct {
}

// Keys are derived from a seed (empty for the development phrase) and a
// derivation path. Raw private keys are not accepted on this chain.
//
func (this *BlockchainInterface) ResolveCredential(key *configs.ChainKey, config *configs.ChainConfig) (core.Credential, error) {
	var ring *keyring
	var seed string
	var err error

	if key.IsRaw() {
		return nil, invalidCredential("key "+key.String()+" is a raw "+
			"private key, expected a seed and a path", nil)
	}

	seed, err = key.SeedPhrase()
	if err != nil {
		return nil, invalidCredential("key "+key.String()+": "+
			err.Error(), nil)
	}

	ring, err = newKeyring(seed, key.Path, config.AddressFormat())
	if err != nil {
		return nil, err
	}

	if key.Address != "" {
		err = ring.matches(key.Address)
		if err != nil {
			return nil, err
		}
	}

	return ring, nil
}

func (this *BlockchainInterface) Adapter(ctx context.Context, config *configs.ChainConfig, logger core.Logger) (core.ProtocolAdapter, error) {
	var params *chainParams
	var endpoint string
	var node *gsrpcNode
	var err error

	endpoint = config.Endpoint()
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}

	logger.Debugf("use endpoint '%s'", endpoint)

	node, err = dialNode(ctx, endpoint)
	if err != nil {
		return nil, core.NewError(core.STEP_FETCH,
			core.ErrAccountStateFetchFailed, "", err)
	}

	params, err = node.params(ctx, config.TransferCall,
		config.AddressFormat())
	if err != nil {
		node.close()
		return nil, core.NewError(core.STEP_FETCH,
			core.ErrAccountStateFetchFailed, "", err)
	}

	logger.Debugf("genesis %s, spec version %d, transaction version %d",
		params.genesis.Hex(), params.specVersion, params.txVersion)

	return newAdapter(logger, node, params), nil
}
