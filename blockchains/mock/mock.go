package mock


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)


const default_delay time.Duration = 1 * time.Second


type BlockchainInterface struct {
}

func (this *BlockchainInterface) ResolveCredential(key *configs.ChainKey, config *configs.ChainConfig) (core.Credential, error) {
	if key.IsRaw() || !strings.HasPrefix(key.Path, "//") {
		return nil, core.NewError(core.STEP_RESOLVE,
			core.ErrInvalidCredential, "mock accounts are named by "+
			"a derivation path", nil)
	}

	return NewAccount(key.Path), nil
}

// The mock chain includes every transaction after `confirm.interval`
// (one second by default) and never finalizes anything twice.
//
func (this *BlockchainInterface) Adapter(ctx context.Context, config *configs.ChainConfig, logger core.Logger) (core.ProtocolAdapter, error) {
	var delay time.Duration = config.Confirm.Interval

	if delay == 0 {
		delay = default_delay
	}

	logger.Debugf("new mock chain with delay %s", delay)

	return NewAdapter(logger, NewChain(delay)), nil
}


type account struct {
	name  string
}

func NewAccount(path string) core.Credential {
	return &account{ "mock" + path }
}

func (this *account) Identity() string {
	return this.name
}

func (this *account) Protocol() string {
	return configs.ChainMock
}

func (this *account) String() string {
	return configs.ChainMock + ":" + this.name
}


// In-memory ledger shared by the adapters of a test.
// Every exported field may be set before use to script failures.
//
type Chain struct {
	// Returned by `FetchAccountState` when not nil.
	//
	FailFetch   error

	// Returned by `Submit` when not nil, as a node rejection.
	//
	FailSubmit  error

	// Accept transactions but never include them.
	//
	Stall       bool

	// Include transactions but report their execution as failed.
	//
	Revert      bool

	lock        sync.Mutex
	delay       time.Duration
	height      uint64
	nonces      map[string]uint64
	calls       []string
}

func NewChain(delay time.Duration) *Chain {
	return &Chain{
		delay: delay,
		nonces: make(map[string]uint64),
		calls: make([]string, 0),
	}
}

// Return the adapter operations in the order they were called, each as
// `<operation> <account or hash>`.
//
func (this *Chain) Calls() []string {
	this.lock.Lock()
	defer this.lock.Unlock()

	return append([]string{}, this.calls...)
}

func (this *Chain) SetNonce(account string, nonce uint64) {
	this.lock.Lock()
	this.nonces[account] = nonce
	this.lock.Unlock()
}

func (this *Chain) Nonce(account string) uint64 {
	this.lock.Lock()
	defer this.lock.Unlock()

	return this.nonces[account]
}

func (this *Chain) record(format string, args ...interface{}) {
	this.lock.Lock()
	this.calls = append(this.calls, fmt.Sprintf(format, args...))
	this.lock.Unlock()
}

// Include `tx` in a new block and return the block reference.
//
func (this *Chain) include(tx *transaction) string {
	var block string

	this.lock.Lock()
	defer this.lock.Unlock()

	this.height += 1
	block = fmt.Sprintf("mock-block-%d", this.height)

	if this.nonces[tx.account] <= tx.nonce {
		this.nonces[tx.account] = tx.nonce + 1
	}

	return block
}


type transaction struct {
	intent   core.TransactionIntent
	account  string
	nonce    uint64
	signed   bool
}

func (this *transaction) Intent() core.TransactionIntent {
	return this.intent
}

func (this *transaction) Account() string {
	return this.account
}

func (this *transaction) Nonce() uint64 {
	return this.nonce
}

func (this *transaction) Bytes() []byte {
	return []byte(fmt.Sprintf("%s/%d/%s", this.account, this.nonce,
		this.intent))
}

func (this *transaction) Hash() string {
	var digest [32]byte = sha256.Sum256(this.Bytes())

	return "0x" + hex.EncodeToString(digest[:])
}


type builder struct {
}

func (this *builder) Build(intent core.TransactionIntent, state core.AccountState) (core.UnsignedTransaction, error) {
	var err error

	switch v := intent.(type) {
	case *core.Transfer:
		err = core.CheckAmount(v.Amount(), 256)
		if err != nil {
			return nil, err
		}
		if v.Recipient() == "" {
			return nil, core.NewError(core.STEP_BUILD,
				core.ErrEncoding, "missing recipient", nil)
		}
	case *core.DeployContract:
		if v.Artifact() == nil {
			return nil, core.NewError(core.STEP_BUILD,
				core.ErrEncoding, "missing contract artifact",
				nil)
		}
	default:
		return nil, core.NewError(core.STEP_BUILD, core.ErrEncoding,
			fmt.Sprintf("unsupported intent %v", intent), nil)
	}

	return &transaction{
		intent: intent,
		account: state.Account,
		nonce: state.Nonce,
	}, nil
}


type Adapter struct {
	logger  core.Logger
	chain   *Chain
	build   builder
}

func NewAdapter(logger core.Logger, chain *Chain) *Adapter {
	return &Adapter{
		logger: logger,
		chain: chain,
	}
}

func (this *Adapter) Builder() core.TransactionBuilder {
	return &this.build
}

func (this *Adapter) FetchAccountState(ctx context.Context, cred core.Credential) (core.AccountState, error) {
	this.chain.record("fetch %s", cred.Identity())

	if this.chain.FailFetch != nil {
		return core.AccountState{}, this.chain.FailFetch
	}

	return core.AccountState{
		Account: cred.Identity(),
		Nonce: this.chain.Nonce(cred.Identity()),
	}, nil
}

func (this *Adapter) Sign(tx core.UnsignedTransaction, cred core.Credential) (core.SignedTransaction, error) {
	var mtx *transaction
	var ok bool

	mtx, ok = tx.(*transaction)
	if !ok {
		return nil, core.NewError(core.STEP_SIGN, core.ErrEncoding,
			fmt.Sprintf("cannot sign foreign transaction %T", tx), nil)
	}

	if mtx.account != cred.Identity() {
		return nil, core.NewError(core.STEP_SIGN,
			core.ErrInvalidCredential, fmt.Sprintf("%s cannot sign "+
			"for %s", cred, mtx.account), nil)
	}

	this.logger.Tracef("sign transaction '%s'", mtx.intent)

	this.chain.record("sign %s", cred.Identity())

	return &transaction{
		intent: mtx.intent,
		account: mtx.account,
		nonce: mtx.nonce,
		signed: true,
	}, nil
}

func (this *Adapter) Submit(ctx context.Context, tx core.SignedTransaction) (*core.Submission, error) {
	var mtx *transaction
	var ok bool

	this.chain.record("submit %s", tx.Hash())

	mtx, ok = tx.(*transaction)
	if !ok || !mtx.signed {
		return nil, core.NewError(core.STEP_SUBMIT,
			core.ErrSubmissionRejected, fmt.Sprintf("transaction %s "+
			"is not signed", tx.Hash()), nil)
	}

	if this.chain.FailSubmit != nil {
		return nil, this.chain.FailSubmit
	}

	this.logger.Tracef("submit transaction '%s'", tx.Hash())

	return &core.Submission{
		Transaction: tx,
		Hash: tx.Hash(),
	}, nil
}

func (this *Adapter) Confirm(ctx context.Context, sub *core.Submission) (*core.SubmissionResult, error) {
	var timer *time.Timer
	var tx *transaction
	var block string
	var ok bool

	this.chain.record("confirm %s", sub.Hash)

	tx, ok = sub.Transaction.(*transaction)
	if !ok {
		return nil, fmt.Errorf("cannot confirm foreign transaction %T",
			sub.Transaction)
	}

	if this.chain.Stall {
		<- ctx.Done()
		return nil, ctx.Err()
	}

	timer = time.NewTimer(this.chain.delay)
	defer timer.Stop()

	select {
	case <- timer.C:
	case <- ctx.Done():
		return nil, ctx.Err()
	}

	block = this.chain.include(tx)

	this.logger.Tracef("commit transaction '%s' in %s", sub.Hash, block)

	if this.chain.Revert {
		return nil, core.NewError(core.STEP_CONFIRM,
			core.ErrExecutionFailed, fmt.Sprintf("transaction %s "+
			"reverted in %s", sub.Hash, block), nil)
	}

	if tx.intent.Kind() == core.INTENT_DEPLOY {
		return core.NewDeployedResult(tx, "mock-contract-"+
			tx.Hash()[2:18], block), nil
	}

	return core.NewIncludedResult(tx, block), nil
}
