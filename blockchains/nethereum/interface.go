package nethereum


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
)


type BlockchainInterface struct {
}

// Only raw private keys are valid on this chain.
// The key is taken from the configuration (or the environment variable it
// references) and never from a built-in table.
//
func (this *BlockchainInterface) ResolveCredential(key *configs.ChainKey, config *configs.ChainConfig) (core.Credential, error) {
	var private string
	var err error

	if !key.IsRaw() {
		return nil, invalidCredential("key "+key.String()+" is not "+
			"a raw private key", nil)
	}

	private, err = key.PrivateKey()
	if err != nil {
		return nil, invalidCredential("key "+key.String()+": "+
			err.Error(), nil)
	}

	return newAccount(private, key.Address)
}

func (this *BlockchainInterface) Adapter(ctx context.Context, config *configs.ChainConfig, logger core.Logger) (core.ProtocolAdapter, error) {
	var client *ethclient.Client
	var endpoint string
	var adapter *Adapter
	var err error

	endpoint = config.Endpoint()
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}

	logger.Debugf("use endpoint '%s'", endpoint)

	client, err = ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, core.NewError(core.STEP_FETCH,
			core.ErrAccountStateFetchFailed, "", err)
	}

	adapter, err = NewAdapter(ctx, logger, client, config)
	if err != nil {
		client.Close()
		return nil, err
	}

	adapter.closer = client.Close

	return adapter, nil
}
