package nsubstrate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"benchdriver/core"
	"benchdriver/core/configs"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceAccount = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	bobAddress   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	bobAccount   = "8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
)

type fakeWatch struct {
	statuses chan types.ExtrinsicStatus
	errs     chan error
	lock     sync.Mutex
	closed   bool
}

func newFakeWatch() *fakeWatch {
	return &fakeWatch{
		statuses: make(chan types.ExtrinsicStatus, 16),
		errs:     make(chan error, 1),
	}
}

func (w *fakeWatch) Chan() <-chan types.ExtrinsicStatus { return w.statuses }
func (w *fakeWatch) Err() <-chan error                  { return w.errs }

func (w *fakeWatch) Unsubscribe() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.closed = true
}

func (w *fakeWatch) unsubscribed() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.closed
}

// Scripted node: every submission gets a watch which replays `script`.
type fakeNode struct {
	lock      sync.Mutex
	nonce     uint64
	nonceErr  error
	submitErr error
	script    []types.ExtrinsicStatus
	submitted []types.Extrinsic
	watches   []*fakeWatch
}

func (n *fakeNode) accountNonce(_ context.Context, account []byte) (uint64, error) {
	return n.nonce, n.nonceErr
}

func (n *fakeNode) submitAndWatch(_ context.Context, ext types.Extrinsic) (watch, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.submitErr != nil {
		return nil, n.submitErr
	}

	w := newFakeWatch()
	for _, status := range n.script {
		w.statuses <- status
	}

	n.submitted = append(n.submitted, ext)
	n.watches = append(n.watches, w)
	return w, nil
}

func (n *fakeNode) close() {}

func (n *fakeNode) submittedCount() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.submitted)
}

func testParams() *chainParams {
	return &chainParams{
		genesis:     types.NewHash(make([]byte, 32)),
		specVersion: 100,
		txVersion:   1,
		callIndex:   types.CallIndex{SectionIndex: 5, MethodIndex: 0},
		format:      configs.DefaultSS58Prefix,
	}
}

func hash(b byte) types.Hash {
	h := make([]byte, 32)
	h[31] = b
	return types.NewHash(h)
}

type fixture struct {
	node    *fakeNode
	adapter *Adapter
	cred    core.Credential
	tracker *core.Tracker
}

func newFixture(t *testing.T, node *fakeNode, timeout time.Duration) *fixture {
	t.Helper()

	cred, err := (&BlockchainInterface{}).ResolveCredential(&configs.ChainKey{Path: "//Alice"}, &configs.ChainConfig{Name: configs.ChainSubstrate})
	require.NoError(t, err)

	return &fixture{
		node:    node,
		adapter: newAdapter(core.NewNopLogger(), node, testParams()),
		cred:    cred,
		tracker: core.NewTracker(core.NewNopLogger(), core.TrackerOptions{ConfirmTimeout: timeout}),
	}
}

func TestTransferFinalized(t *testing.T) {
	node := &fakeNode{
		nonce: 3,
		script: []types.ExtrinsicStatus{
			{IsReady: true},
			{IsInBlock: true, AsInBlock: hash(1)},
			{IsFinalized: true, AsFinalized: hash(1)},
		},
	}
	f := newFixture(t, node, time.Second)

	result, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(12345)), f.cred, f.adapter)
	require.NoError(t, err)

	assert.Equal(t, core.RESULT_INCLUDED, result.Kind)
	assert.Equal(t, hash(1).Hex(), result.BlockReference)
	assert.Equal(t, aliceAddress, result.Account)
	assert.Equal(t, uint64(3), result.Nonce)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", result.TransactionHash)

	require.Equal(t, 1, node.submittedCount())
	ext := node.submitted[0]
	assert.True(t, ext.IsSigned())
	assert.Equal(t, types.CallIndex{SectionIndex: 5, MethodIndex: 0}, ext.Method.CallIndex)

	expected, err := codec.Encode(types.NewUCompact(big.NewInt(12345)))
	require.NoError(t, err)
	assert.Equal(t, "00"+bobAccount+fmt.Sprintf("%x", expected), fmt.Sprintf("%x", []byte(ext.Method.Args)))

	assert.True(t, node.watches[0].unsubscribed())
}

func TestTransferNotFinalized(t *testing.T) {
	t.Run("test in block only", func(t *testing.T) {
		node := &fakeNode{
			script: []types.ExtrinsicStatus{
				{IsInBlock: true, AsInBlock: hash(2)},
			},
		}
		f := newFixture(t, node, 50*time.Millisecond)

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(12345)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrConfirmationTimeout))
		assert.True(t, node.watches[0].unsubscribed())
	})

	t.Run("test retracted keeps waiting", func(t *testing.T) {
		node := &fakeNode{
			script: []types.ExtrinsicStatus{
				{IsInBlock: true, AsInBlock: hash(4)},
				{IsRetracted: true, AsRetracted: hash(4)},
				{IsInBlock: true, AsInBlock: hash(5)},
				{IsFinalized: true, AsFinalized: hash(5)},
			},
		}
		f := newFixture(t, node, time.Second)

		result, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(12345)), f.cred, f.adapter)
		require.NoError(t, err)

		assert.Equal(t, core.RESULT_INCLUDED, result.Kind)
		assert.Equal(t, hash(5).Hex(), result.BlockReference)
	})

	t.Run("test finality timeout", func(t *testing.T) {
		node := &fakeNode{
			script: []types.ExtrinsicStatus{
				{IsInBlock: true, AsInBlock: hash(6)},
				{IsFinalityTimeout: true, AsFinalityTimeout: hash(6)},
			},
		}
		f := newFixture(t, node, time.Minute)

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(12345)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrConfirmationTimeout))
		assert.False(t, errors.Is(err, core.ErrSubmissionRejected))
		step, _ := core.FailedStep(err)
		assert.Equal(t, core.STEP_CONFIRM, step)
		assert.True(t, node.watches[0].unsubscribed())
	})

	t.Run("test caller cancels", func(t *testing.T) {
		node := &fakeNode{}
		f := newFixture(t, node, time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := f.tracker.Execute(ctx, core.NewTransfer(bobAddress, big.NewInt(1)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrCanceled))
		assert.False(t, errors.Is(err, core.ErrConfirmationTimeout))
		assert.Equal(t, 1, node.submittedCount())
	})

	for name, status := range map[string]types.ExtrinsicStatus{
		"invalid": {IsInvalid: true},
		"dropped": {IsDropped: true},
		"usurped": {IsUsurped: true, AsUsurped: hash(3)},
	} {
		status := status
		t.Run("test "+name, func(t *testing.T) {
			node := &fakeNode{script: []types.ExtrinsicStatus{{IsReady: true}, status}}
			f := newFixture(t, node, time.Second)

			_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(1)), f.cred, f.adapter)
			require.Error(t, err)

			assert.True(t, errors.Is(err, core.ErrSubmissionRejected))
			step, _ := core.FailedStep(err)
			assert.Equal(t, core.STEP_CONFIRM, step)
		})
	}

	t.Run("test subscription error", func(t *testing.T) {
		node := &fakeNode{}
		f := newFixture(t, node, time.Second)

		go func() {
			for node.submittedCount() == 0 {
				time.Sleep(time.Millisecond)
			}
			node.lock.Lock()
			node.watches[0].errs <- errors.New("connection reset")
			node.lock.Unlock()
		}()

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(1)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrConfirmationFailed))
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestTransferFailures(t *testing.T) {
	t.Run("test rejected at submission", func(t *testing.T) {
		node := &fakeNode{submitErr: errors.New("1010: Invalid Transaction: Inability to pay some fees")}
		f := newFixture(t, node, time.Second)

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(1)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrSubmissionRejected))
		assert.Contains(t, err.Error(), "Inability to pay some fees")
	})

	t.Run("test node unreachable", func(t *testing.T) {
		node := &fakeNode{nonceErr: errors.New("dial tcp 127.0.0.1:9944: connection refused")}
		f := newFixture(t, node, time.Second)

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, big.NewInt(1)), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrAccountStateFetchFailed))
		assert.Zero(t, node.submittedCount())
	})

	amounts := map[string]*big.Int{
		"negative":  big.NewInt(-5),
		"too large": new(big.Int).Lsh(big.NewInt(1), 128),
	}

	for name, amount := range amounts {
		amount := amount
		t.Run("test amount "+name, func(t *testing.T) {
			node := &fakeNode{}
			f := newFixture(t, node, time.Second)

			_, err := f.tracker.Execute(context.Background(), core.NewTransfer(bobAddress, amount), f.cred, f.adapter)
			require.Error(t, err)

			assert.True(t, errors.Is(err, core.ErrInvalidAmount))
			assert.Zero(t, node.submittedCount())
		})
	}

	t.Run("test deploy is unsupported", func(t *testing.T) {
		node := &fakeNode{}
		f := newFixture(t, node, time.Second)

		_, err := f.tracker.Execute(context.Background(), core.NewDeployContract(&core.ContractArtifact{Name: "BenchERC20"}), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrEncoding))
		assert.Zero(t, node.submittedCount())
	})
}

func TestSignAndVerify(t *testing.T) {
	node := &fakeNode{nonce: 9}
	f := newFixture(t, node, time.Second)

	for _, amount := range []*big.Int{big.NewInt(12345), new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))} {
		stx, err := f.tracker.Prepare(context.Background(), core.NewTransfer(bobAddress, amount), f.cred, f.adapter)
		require.NoError(t, err)

		assert.NoError(t, VerifySignature(stx, aliceAddress))
		assert.Error(t, VerifySignature(stx, bobAddress))
		assert.Equal(t, uint64(9), stx.Nonce())
	}

	assert.Zero(t, node.submittedCount())
}

type foreignTransaction struct {
	intent core.TransactionIntent
}

func (this *foreignTransaction) Intent() core.TransactionIntent {
	return this.intent
}

func (this *foreignTransaction) Nonce() uint64 {
	return 0
}

func TestSignFailures(t *testing.T) {
	transfer := core.NewTransfer(bobAddress, big.NewInt(12345))

	t.Run("test foreign transaction", func(t *testing.T) {
		f := newFixture(t, &fakeNode{}, time.Second)

		_, err := f.adapter.Sign(&foreignTransaction{transfer}, f.cred)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrEncoding))
		assert.False(t, errors.Is(err, core.ErrInvalidCredential))
		step, _ := core.FailedStep(err)
		assert.Equal(t, core.STEP_SIGN, step)
	})

	t.Run("test foreign credential", func(t *testing.T) {
		f := newFixture(t, &fakeNode{}, time.Second)

		utx, err := f.adapter.Builder().Build(transfer, core.AccountState{Account: aliceAddress})
		require.NoError(t, err)

		_, err = f.adapter.Sign(utx, &foreignCredential{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInvalidCredential))
	})
}

type foreignCredential struct{}

func (c *foreignCredential) Identity() string { return "0x00" }
func (c *foreignCredential) Protocol() string { return configs.ChainEthereum }
func (c *foreignCredential) String() string   { return "ethereum:0x00" }

func TestLongPayloadIsHashed(t *testing.T) {
	utx := newUnsignedTransaction(core.NewTransfer(bobAddress, big.NewInt(1)), types.Call{
		CallIndex: types.CallIndex{SectionIndex: 0, MethodIndex: 1},
		Args:      make([]byte, 300),
	}, 0, testParams())

	payload, err := utx.payload()
	require.NoError(t, err)
	assert.Len(t, payload, 32)

	ring, err := newKeyring("", "//Alice", configs.DefaultSS58Prefix)
	require.NoError(t, err)

	stx, err := utx.sign(ring)
	require.NoError(t, err)
	assert.NoError(t, VerifySignature(stx, aliceAddress))
}
