package core


import (
	"context"

	"benchdriver/core/configs"
)


// A signing capability bound to exactly one account.
// Implementations hold secret material and must never print it: `String`
// returns the public identity only.
//
type Credential interface {
	// The public identity of the account (an address in the textual
	// form of its protocol).
	//
	Identity() string

	// The name of the protocol this credential can sign for.
	//
	Protocol() string

	String() string
}


// Constructs unsigned transactions from intents.
// A builder never performs I/O: everything that depends on the node comes
// from the `AccountState` snapshot or was fixed when the adapter was built.
//
type TransactionBuilder interface {
	Build(intent TransactionIntent, state AccountState) (UnsignedTransaction, error)
}


// The four capabilities a protocol offers to the tracker.
// The tracker calls them strictly in the order fetch, sign, submit,
// confirm. How long confirmation takes and whether it polls or waits on a
// subscription is a private matter of each adapter.
//
type ProtocolAdapter interface {
	Builder() TransactionBuilder

	FetchAccountState(ctx context.Context, cred Credential) (AccountState, error)

	Sign(tx UnsignedTransaction, cred Credential) (SignedTransaction, error)

	Submit(ctx context.Context, tx SignedTransaction) (*Submission, error)

	Confirm(ctx context.Context, sub *Submission) (*SubmissionResult, error)
}


// Implemented by the adapters which complete a built transaction with
// values only the node knows, such as a gas estimate. The tracker calls
// it right after `Build`, as part of the build step.
//
type Estimator interface {
	Estimate(ctx context.Context, tx UnsignedTransaction) (UnsignedTransaction, error)
}


// A blockchain family known to the driver.
//
type BlockchainInterface interface {
	// Resolve the given key entry into a credential usable on
	// this blockchain. The chain configuration only provides protocol
	// settings such as an address format. No network access is allowed.
	//
	ResolveCredential(key *configs.ChainKey, config *configs.ChainConfig) (Credential, error)

	// Connect to the blockchain described by `config` and return an
	// adapter ready to serve invocations.
	// Adapters holding connections also implement `io.Closer`.
	//
	Adapter(ctx context.Context, config *configs.ChainConfig, logger Logger) (ProtocolAdapter, error)
}


type AccountState struct {
	Account  string
	Nonce    uint64
}


type UnsignedTransaction interface {
	Intent() TransactionIntent

	Nonce() uint64
}

type SignedTransaction interface {
	// Identity of the credential which signed this transaction.
	//
	Account() string

	Nonce() uint64

	// Protocol hash of the transaction, hex encoded with a `0x` prefix.
	//
	Hash() string

	// The encoded transaction as submitted to the node.
	//
	Bytes() []byte

	Intent() TransactionIntent
}


// What `Submit` hands to `Confirm`.
// The `Watch` is owned by the adapter which created it.
//
type Submission struct {
	Transaction  SignedTransaction
	Hash         string
	Watch        interface{}
}
