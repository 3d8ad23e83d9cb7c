package nethereum


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)


const default_poll_interval time.Duration = 1 * time.Second


// The part of the node API the adapter uses.
// Both `*ethclient.Client` and the simulated backend client provide it.
//
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)

	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)

	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	SendTransaction(ctx context.Context, tx *types.Transaction) error

	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}


type Adapter struct {
	logger    core.Logger
	client    backend
	closer    func()
	builder   *transactionBuilder
	interval  time.Duration
}

// Build an adapter over an already connected `client`.
// The chain parameters are fetched once here: a failure to do so is
// reported as an account state fetch failure since no invocation can
// proceed without them.
//
func NewAdapter(ctx context.Context, logger core.Logger, client backend, config *configs.ChainConfig) (*Adapter, error) {
	var provider *staticParameterProvider
	var interval time.Duration
	var err error

	provider, err = makeStaticParameterProvider(ctx, client,
		config.ChainID)
	if err != nil {
		return nil, core.NewError(core.STEP_FETCH,
			core.ErrAccountStateFetchFailed, "", err)
	}

	logger.Debugf("chain %s, gas price %s",
		provider.getParams().chainId, provider.getParams().gasPrice)

	interval = config.Confirm.Interval
	if interval == 0 {
		interval = default_poll_interval
	}

	return &Adapter{
		logger: logger,
		client: client,
		builder: newTransactionBuilder(provider, config.GasLimit),
		interval: interval,
	}, nil
}

func (this *Adapter) Close() error {
	if this.closer != nil {
		this.closer()
		this.closer = nil
	}

	return nil
}

func (this *Adapter) Builder() core.TransactionBuilder {
	return this.builder
}

func (this *Adapter) FetchAccountState(ctx context.Context, cred core.Credential) (core.AccountState, error) {
	var from *account
	var nonce uint64
	var err error

	from, err = asAccount(cred)
	if err != nil {
		return core.AccountState{}, err
	}

	nonce, err = this.client.PendingNonceAt(ctx, from.address)
	if err != nil {
		return core.AccountState{}, err
	}

	this.logger.Tracef("pending nonce for '%s' = %d", from.address.Hex(),
		nonce)

	return core.AccountState{
		Account: from.address.Hex(),
		Nonce: nonce,
	}, nil
}

// Replace the default gas limit of `tx` with the estimate of the node,
// unless the chain configuration sets a limit. When the node cannot
// estimate, the default limit is kept and a failing execution shows up at
// confirmation.
//
func (this *Adapter) Estimate(ctx context.Context, tx core.UnsignedTransaction) (core.UnsignedTransaction, error) {
	var utx *unsignedTransaction
	var gas uint64
	var err error
	var ok bool

	utx, ok = tx.(*unsignedTransaction)
	if !ok {
		return nil, encodingError(fmt.Sprintf("cannot estimate "+
			"foreign transaction %T", tx), nil)
	}

	if this.builder.gasLimit != 0 {
		return utx, nil
	}

	gas, err = this.client.EstimateGas(ctx, utx.callMsg())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		this.logger.Debugf("cannot estimate gas, keep %d: %s",
			utx.tx.Gas(), err.Error())
		return utx, nil
	}

	this.logger.Tracef("estimated gas %d", gas)

	return utx.withGas(gas), nil
}

func (this *Adapter) Sign(tx core.UnsignedTransaction, cred core.Credential) (core.SignedTransaction, error) {
	var utx *unsignedTransaction
	var stx *types.Transaction
	var from *account
	var err error
	var ok bool

	from, err = asAccount(cred)
	if err != nil {
		return nil, err
	}

	utx, ok = tx.(*unsignedTransaction)
	if !ok {
		return nil, signEncodingError(fmt.Sprintf("cannot sign "+
			"foreign transaction %T", tx), nil)
	}

	stx, err = types.SignTx(utx.tx, types.NewEIP155Signer(utx.chain),
		from.private)
	if err != nil {
		return nil, err
	}

	return newSignedTransaction(utx.intent, from.address, stx)
}

func (this *Adapter) Submit(ctx context.Context, tx core.SignedTransaction) (*core.Submission, error) {
	var stx *signedTransaction
	var err error
	var ok bool

	stx, ok = tx.(*signedTransaction)
	if !ok {
		return nil, fmt.Errorf("cannot submit foreign transaction %T",
			tx)
	}

	this.logger.Tracef("submit transaction %s", stx.Hash())

	err = this.client.SendTransaction(ctx, stx.tx)
	if err != nil {
		return nil, err
	}

	return &core.Submission{
		Transaction: stx,
		Hash: stx.Hash(),
	}, nil
}

// Poll for the receipt until it shows up or `ctx` is done.
// Receipts only exist for included transactions so the first receipt is
// the confirmation. A receipt with a failed status means the transaction
// consumed its nonce but its execution reverted.
//
func (this *Adapter) Confirm(ctx context.Context, sub *core.Submission) (*core.SubmissionResult, error) {
	var receipt *types.Receipt
	var stx *signedTransaction
	var block string
	var err error
	var ok bool

	stx, ok = sub.Transaction.(*signedTransaction)
	if !ok {
		return nil, fmt.Errorf("cannot confirm foreign transaction %T",
			sub.Transaction)
	}

	receipt, err = this.waitReceipt(ctx, stx.tx.Hash())
	if err != nil {
		return nil, err
	}

	block = receipt.BlockHash.Hex()

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, core.NewError(core.STEP_CONFIRM,
			core.ErrExecutionFailed, fmt.Sprintf("transaction %s "+
			"reverted in block %s", stx.Hash(), block), nil)
	}

	this.logger.Tracef("transaction %s included in block %s",
		stx.Hash(), block)

	if stx.intent.Kind() == core.INTENT_DEPLOY {
		return core.NewDeployedResult(stx,
			receipt.ContractAddress.Hex(), block), nil
	}

	return core.NewIncludedResult(stx, block), nil
}

func (this *Adapter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	var timer *time.Timer
	var err error

	for {
		receipt, err = this.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		timer = time.NewTimer(this.interval)

		select {
		case <- timer.C:
		case <- ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
