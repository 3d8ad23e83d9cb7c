package nsubstrate


import (
	"benchdriver/core"
	"context"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)


type Adapter struct {
	logger   core.Logger
	node     node
	builder  *transactionBuilder
}

func newAdapter(logger core.Logger, node node, params *chainParams) *Adapter {
	return &Adapter{
		logger: logger,
		node: node,
		builder: newTransactionBuilder(params),
	}
}

func (this *Adapter) Close() error {
	this.node.close()
	return nil
}

func (this *Adapter) Builder() core.TransactionBuilder {
	return this.builder
}

func (this *Adapter) FetchAccountState(ctx context.Context, cred core.Credential) (core.AccountState, error) {
	var ring *keyring
	var nonce uint64
	var err error

	ring, err = asKeyring(cred)
	if err != nil {
		return core.AccountState{}, err
	}

	nonce, err = this.node.accountNonce(ctx, ring.pair.PublicKey)
	if err != nil {
		return core.AccountState{}, err
	}

	this.logger.Tracef("account nonce for '%s' = %d", ring.Identity(),
		nonce)

	return core.AccountState{
		Account: ring.Identity(),
		Nonce: nonce,
	}, nil
}

func (this *Adapter) Sign(tx core.UnsignedTransaction, cred core.Credential) (core.SignedTransaction, error) {
	var utx *unsignedTransaction
	var ring *keyring
	var err error
	var ok bool

	ring, err = asKeyring(cred)
	if err != nil {
		return nil, err
	}

	utx, ok = tx.(*unsignedTransaction)
	if !ok {
		return nil, signEncodingError(fmt.Sprintf("cannot sign "+
			"foreign transaction %T", tx), nil)
	}

	return utx.sign(ring)
}

// Submission is acknowledged: the node validates the extrinsic before
// answering, so an invalid one fails here with the node's reason.
//
func (this *Adapter) Submit(ctx context.Context, tx core.SignedTransaction) (*core.Submission, error) {
	var stx *signedTransaction
	var w watch
	var err error
	var ok bool

	stx, ok = tx.(*signedTransaction)
	if !ok {
		return nil, fmt.Errorf("cannot submit foreign transaction %T",
			tx)
	}

	this.logger.Tracef("submit extrinsic %s", stx.Hash())

	w, err = this.node.submitAndWatch(ctx, stx.ext)
	if err != nil {
		return nil, err
	}

	return &core.Submission{
		Transaction: stx,
		Hash: stx.Hash(),
		Watch: w,
	}, nil
}

// Follow the status stream until the extrinsic is finalized.
// Being in a block is not enough, the block may still be retracted.
// The subscription is always closed on return but the extrinsic is left
// to the node.
//
func (this *Adapter) Confirm(ctx context.Context, sub *core.Submission) (*core.SubmissionResult, error) {
	var status types.ExtrinsicStatus
	var stx *signedTransaction
	var err error
	var w watch
	var ok bool

	stx, ok = sub.Transaction.(*signedTransaction)
	if !ok {
		return nil, fmt.Errorf("cannot confirm foreign transaction %T",
			sub.Transaction)
	}

	w, ok = sub.Watch.(watch)
	if !ok {
		return nil, fmt.Errorf("submission of %s has no status stream",
			sub.Hash)
	}

	defer w.Unsubscribe()

	for {
		select {
		case status, ok = <- w.Chan():
			if !ok {
				return nil, fmt.Errorf("status stream of %s "+
					"closed", sub.Hash)
			}
		case err, ok = <- w.Err():
			if !ok || (err == nil) {
				return nil, fmt.Errorf("status stream of %s "+
					"closed", sub.Hash)
			}
			return nil, err
		case <- ctx.Done():
			return nil, ctx.Err()
		}

		switch {
		case status.IsFinalized:
			this.logger.Tracef("extrinsic %s finalized in %s",
				sub.Hash, status.AsFinalized.Hex())
			return core.NewIncludedResult(stx,
				status.AsFinalized.Hex()), nil
		case status.IsInBlock:
			this.logger.Tracef("extrinsic %s in block %s",
				sub.Hash, status.AsInBlock.Hex())
		case status.IsRetracted:
			this.logger.Tracef("extrinsic %s retracted from %s",
				sub.Hash, status.AsRetracted.Hex())
		case status.IsInvalid:
			return nil, rejected(sub.Hash, "invalid")
		case status.IsDropped:
			return nil, rejected(sub.Hash, "dropped")
		case status.IsUsurped:
			return nil, rejected(sub.Hash, fmt.Sprintf("usurped "+
				"by %s", status.AsUsurped.Hex()))
		case status.IsFinalityTimeout:
			// Still in a block and may finalize later.
			return nil, core.NewError(core.STEP_CONFIRM,
				core.ErrConfirmationTimeout, fmt.Sprintf(
				"extrinsic %s: finality timeout in block %s",
				sub.Hash, status.AsFinalityTimeout.Hex()), nil)
		default:
			this.logger.Tracef("extrinsic %s pending", sub.Hash)
		}
	}
}

// The node gave up on the extrinsic after it acknowledged it.
//
func rejected(hash, reason string) error {
	return core.NewError(core.STEP_CONFIRM, core.ErrSubmissionRejected,
		fmt.Sprintf("extrinsic %s %s", hash, reason), nil)
}
