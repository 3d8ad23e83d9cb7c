package nethereum


import (
	"benchdriver/core"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)


const (
	transfer_gas_limit uint64 = 21000
	deploy_gas_limit   uint64 = 2000000

	// The suggested gas price is raised by 1/8 so that it stays valid
	// for transactions included a few blocks later.
	gas_price_headroom int64 = 8
)


type unsignedTransaction struct {
	intent  core.TransactionIntent
	chain   *big.Int
	from    common.Address
	tx      *types.Transaction
}

func newUnsignedTransaction(intent core.TransactionIntent, chain *big.Int, from common.Address, tx *types.Transaction) *unsignedTransaction {
	return &unsignedTransaction{
		intent: intent,
		chain: chain,
		from: from,
		tx: tx,
	}
}

// Copy of this transaction with a gas limit of `gas`.
//
func (this *unsignedTransaction) withGas(gas uint64) *unsignedTransaction {
	var tx *types.Transaction

	tx = types.NewTx(&types.LegacyTx{
		Nonce: this.tx.Nonce(),
		GasPrice: this.tx.GasPrice(),
		Gas: gas,
		To: this.tx.To(),
		Value: this.tx.Value(),
		Data: this.tx.Data(),
	})

	return newUnsignedTransaction(this.intent, this.chain, this.from, tx)
}

// The message `eth_estimateGas` runs for this transaction.
// The gas price is left out so that the estimate does not depend on the
// account balance covering the fee.
//
func (this *unsignedTransaction) callMsg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From: this.from,
		To: this.tx.To(),
		Value: this.tx.Value(),
		Data: this.tx.Data(),
	}
}

func (this *unsignedTransaction) Intent() core.TransactionIntent {
	return this.intent
}

func (this *unsignedTransaction) Nonce() uint64 {
	return this.tx.Nonce()
}


type signedTransaction struct {
	intent  core.TransactionIntent
	from    common.Address
	tx      *types.Transaction
	raw     []byte
}

func newSignedTransaction(intent core.TransactionIntent, from common.Address, tx *types.Transaction) (*signedTransaction, error) {
	var raw []byte
	var err error

	raw, err = tx.MarshalBinary()
	if err != nil {
		return nil, signEncodingError("cannot encode signed "+
			"transaction", err)
	}

	return &signedTransaction{
		intent: intent,
		from: from,
		tx: tx,
		raw: raw,
	}, nil
}

func (this *signedTransaction) Intent() core.TransactionIntent {
	return this.intent
}

func (this *signedTransaction) Account() string {
	return this.from.Hex()
}

func (this *signedTransaction) Nonce() uint64 {
	return this.tx.Nonce()
}

func (this *signedTransaction) Hash() string {
	return this.tx.Hash().Hex()
}

func (this *signedTransaction) Bytes() []byte {
	return append([]byte{}, this.raw...)
}


// Recover the signer of `tx` and check it is `identity`.
//
func VerifySignature(tx core.SignedTransaction, identity string) error {
	var stx *signedTransaction
	var sender common.Address
	var err error
	var ok bool

	stx, ok = tx.(*signedTransaction)
	if !ok {
		return fmt.Errorf("not an %s transaction", protocol_name)
	}

	sender, err = types.Sender(types.LatestSignerForChainID(
		stx.tx.ChainId()), stx.tx)
	if err != nil {
		return err
	}

	if !common.IsHexAddress(identity) ||
		(common.HexToAddress(identity) != sender) {
		return fmt.Errorf("transaction signed by %s, not %s",
			sender.Hex(), identity)
	}

	return nil
}


// Chain parameters which do not change over the life of an adapter.
//
type parameters struct {
	chainId   *big.Int
	gasPrice  *big.Int
}

type parameterProvider interface {
	getParams() *parameters
}

type staticParameterProvider struct {
	params  parameters
}

func newStaticParameterProvider(params *parameters) *staticParameterProvider {
	return &staticParameterProvider{
		params: *params,
	}
}

// Fetch the parameters from the node once.
// A non zero `expectedChain` must match what the node reports so that a
// transaction is never signed for another network than the configured one.
//
func makeStaticParameterProvider(ctx context.Context, client backend, expectedChain uint64) (*staticParameterProvider, error) {
	var params parameters
	var err error

	params.chainId, err = client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	if (expectedChain != 0) && (params.chainId.Cmp(
		new(big.Int).SetUint64(expectedChain)) != 0) {
		return nil, fmt.Errorf("node serves chain %s, expected %d",
			params.chainId, expectedChain)
	}

	params.gasPrice, err = client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	params.gasPrice = withHeadroom(params.gasPrice)

	return newStaticParameterProvider(&params), nil
}

func (this *staticParameterProvider) getParams() *parameters {
	return &this.params
}

func withHeadroom(price *big.Int) *big.Int {
	var extra *big.Int = new(big.Int).Quo(price,
		big.NewInt(gas_price_headroom))

	return new(big.Int).Add(price, extra)
}
