package nethereum


import (
	"benchdriver/core"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)


const transfer_amount_bits int = 256


type transactionBuilder struct {
	provider  parameterProvider
	gasLimit  uint64
}

// A zero `gasLimit` selects a default depending on the intent.
//
func newTransactionBuilder(provider parameterProvider, gasLimit uint64) *transactionBuilder {
	return &transactionBuilder{
		provider: provider,
		gasLimit: gasLimit,
	}
}

func (this *transactionBuilder) Build(intent core.TransactionIntent, state core.AccountState) (core.UnsignedTransaction, error) {
	switch v := intent.(type) {
	case *core.DeployContract:
		return this.buildDeploy(v, state)
	case *core.Transfer:
		return this.buildTransfer(v, state)
	}

	return nil, encodingError(fmt.Sprintf("unsupported intent %v", intent),
		nil)
}

func (this *transactionBuilder) buildDeploy(intent *core.DeployContract, state core.AccountState) (*unsignedTransaction, error) {
	var params *parameters = this.provider.getParams()
	var tx *types.Transaction
	var code []byte
	var err error

	code, err = deploymentCode(intent.Artifact(), intent.ConstructorArgs())
	if err != nil {
		return nil, err
	}

	tx = types.NewTx(&types.LegacyTx{
		Nonce: state.Nonce,
		GasPrice: params.gasPrice,
		Gas: this.limit(deploy_gas_limit),
		To: nil,
		Value: big.NewInt(0),
		Data: code,
	})

	return newUnsignedTransaction(intent, params.chainId,
		common.HexToAddress(state.Account), tx), nil
}

func (this *transactionBuilder) buildTransfer(intent *core.Transfer, state core.AccountState) (*unsignedTransaction, error) {
	var params *parameters = this.provider.getParams()
	var amount *big.Int = intent.Amount()
	var tx *types.Transaction
	var to common.Address
	var err error

	err = core.CheckAmount(amount, transfer_amount_bits)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(intent.Recipient()) {
		return nil, encodingError(fmt.Sprintf("invalid recipient '%s'",
			intent.Recipient()), nil)
	}

	to = common.HexToAddress(intent.Recipient())

	tx = types.NewTx(&types.LegacyTx{
		Nonce: state.Nonce,
		GasPrice: params.gasPrice,
		Gas: this.limit(transfer_gas_limit),
		To: &to,
		Value: amount,
	})

	return newUnsignedTransaction(intent, params.chainId,
		common.HexToAddress(state.Account), tx), nil
}

func (this *transactionBuilder) limit(fallback uint64) uint64 {
	if this.gasLimit == 0 {
		return fallback
	}

	return this.gasLimit
}
