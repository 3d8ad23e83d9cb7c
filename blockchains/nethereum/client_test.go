package nethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"benchdriver/blockchains/mock"
	"benchdriver/core"
	"benchdriver/core/configs"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scripted node: transactions are accepted (or refused with sendErr) and
// their receipt shows up after `pendingPolls` lookups.
type fakeBackend struct {
	lock         sync.Mutex
	chain        *big.Int
	nonce        uint64
	nonceErr     error
	sendErr      error
	status       uint64
	pendingPolls int
	neverInclude bool
	polls        int
	nonceCalls   int
	gas          uint64
	gasErr       error
	estimates    []ethereum.CallMsg
	sent         []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chain:  big.NewInt(1281),
		nonce:  7,
		status: types.ReceiptStatusSuccessful,
		gas:    54321,
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chain), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.estimates = append(f.estimates, call)
	return f.gas, f.gasErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}

	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.polls++
	if f.neverInclude || f.polls <= f.pendingPolls {
		return nil, ethereum.NotFound
	}

	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}

		receipt := &types.Receipt{
			Status:    f.status,
			TxHash:    hash,
			BlockHash: common.HexToHash("0xb10c"),
		}

		if tx.To() == nil {
			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				return nil, err
			}
			receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		}

		return receipt, nil
	}

	return nil, ethereum.NotFound
}

func (f *fakeBackend) sentCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return len(f.sent)
}

type fixture struct {
	backend *fakeBackend
	adapter *Adapter
	cred    core.Credential
	tracker *core.Tracker
}

func newFixture(t *testing.T, backend *fakeBackend, timeout time.Duration) *fixture {
	t.Helper()

	config := &configs.ChainConfig{
		Name:    configs.ChainEthereum,
		Nodes:   []string{"fake"},
		Confirm: configs.ConfirmConfig{Interval: time.Millisecond},
	}

	adapter, err := NewAdapter(context.Background(), core.NewNopLogger(), backend, config)
	require.NoError(t, err)

	cred, err := (&BlockchainInterface{}).ResolveCredential(&configs.ChainKey{Private: alithPrivate}, config)
	require.NoError(t, err)

	return &fixture{
		backend: backend,
		adapter: adapter,
		cred:    cred,
		tracker: core.NewTracker(core.NewNopLogger(), core.TrackerOptions{ConfirmTimeout: timeout}),
	}
}

func TestDeployContract(t *testing.T) {
	backend := newFakeBackend()
	backend.pendingPolls = 3
	f := newFixture(t, backend, time.Second)

	intent := core.NewDeployContract(loadBenchERC20(t), "1000")
	result, err := f.tracker.Execute(context.Background(), intent, f.cred, f.adapter)
	require.NoError(t, err)

	require.Equal(t, 1, backend.sentCount())
	sent := backend.sent[0]

	assert.Equal(t, core.RESULT_DEPLOYED, result.Kind)
	assert.Equal(t, crypto.CreateAddress(common.HexToAddress(alithAddress), 7).Hex(), result.ContractAddress)
	assert.True(t, common.IsHexAddress(result.ContractAddress))
	assert.Equal(t, sent.Hash().Hex(), result.TransactionHash)
	assert.Equal(t, alithAddress, result.Account)
	assert.Equal(t, uint64(7), result.Nonce)
	assert.Nil(t, sent.To())
	assert.Equal(t, backend.gas, sent.Gas())
	assert.Equal(t, big.NewInt(1281), sent.ChainId())
	assert.True(t, f.tracker.Ledger().Used(alithAddress, 7))
}

func TestTransfer(t *testing.T) {
	recipient := "0x3Cd0A705a2DC65e5b1E1205896BaA2be8A07c6e0"

	t.Run("test included", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		result, err := f.tracker.Execute(context.Background(), core.NewTransfer(recipient, big.NewInt(12345)), f.cred, f.adapter)
		require.NoError(t, err)

		assert.Equal(t, core.RESULT_INCLUDED, result.Kind)
		assert.Empty(t, result.ContractAddress)
		assert.Equal(t, common.HexToHash("0xb10c").Hex(), result.BlockReference)

		sent := backend.sent[0]
		assert.Equal(t, recipient, sent.To().Hex())
		assert.Equal(t, big.NewInt(12345), sent.Value())
		assert.Equal(t, backend.gas, sent.Gas())
	})

	invalidAmounts := map[string]*big.Int{
		"negative":   big.NewInt(-1),
		"too large":  new(big.Int).Lsh(big.NewInt(1), 256),
		"nil amount": nil,
	}

	for name, amount := range invalidAmounts {
		amount := amount
		t.Run("test "+name, func(t *testing.T) {
			backend := newFakeBackend()
			f := newFixture(t, backend, time.Second)

			_, err := f.tracker.Execute(context.Background(), core.NewTransfer(recipient, amount), f.cred, f.adapter)
			require.Error(t, err)

			assert.True(t, errors.Is(err, core.ErrInvalidAmount))
			assert.Zero(t, backend.sentCount())
		})
	}

	t.Run("test invalid recipient", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer("bob", big.NewInt(1)), f.cred, f.adapter)
		assert.True(t, errors.Is(err, core.ErrEncoding))
		assert.Zero(t, backend.sentCount())
	})

	t.Run("test largest amount", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

		_, err := f.tracker.Execute(context.Background(), core.NewTransfer(recipient, max), f.cred, f.adapter)
		require.NoError(t, err)
		assert.Equal(t, max, backend.sent[0].Value())
	})
}

func TestFailures(t *testing.T) {
	intent := func(t *testing.T) core.TransactionIntent {
		return core.NewDeployContract(loadBenchERC20(t), 1000)
	}

	t.Run("test node unreachable", func(t *testing.T) {
		backend := newFakeBackend()
		backend.nonceErr = errors.New("connection refused")
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrAccountStateFetchFailed))
		assert.Contains(t, err.Error(), "connection refused")
		assert.Zero(t, backend.sentCount())
	})

	t.Run("test rejected by node", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = errors.New("insufficient funds for gas * price + value")
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrSubmissionRejected))
		assert.Contains(t, err.Error(), "insufficient funds for gas * price + value")
		step, _ := core.FailedStep(err)
		assert.Equal(t, core.STEP_SUBMIT, step)
		assert.False(t, f.tracker.Ledger().Used(alithAddress, 7))
	})

	t.Run("test reverted", func(t *testing.T) {
		backend := newFakeBackend()
		backend.status = types.ReceiptStatusFailed
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrExecutionFailed))
		step, _ := core.FailedStep(err)
		assert.Equal(t, core.STEP_CONFIRM, step)
	})

	t.Run("test never included", func(t *testing.T) {
		backend := newFakeBackend()
		backend.neverInclude = true
		f := newFixture(t, backend, 50*time.Millisecond)

		start := time.Now()
		_, err := f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrConfirmationTimeout))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, 1, backend.sentCount())
	})

	t.Run("test reused nonce", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.NoError(t, err)

		// The node did not advance its pending nonce: a second
		// invocation would reuse nonce 7.
		_, err = f.tracker.Execute(context.Background(), intent(t), f.cred, f.adapter)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrSubmissionRejected))
		assert.Equal(t, 1, backend.sentCount())
	})
}

func TestChainMismatch(t *testing.T) {
	config := &configs.ChainConfig{Name: configs.ChainEthereum, Nodes: []string{"fake"}, ChainID: 1}

	_, err := NewAdapter(context.Background(), core.NewNopLogger(), newFakeBackend(), config)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAccountStateFetchFailed))
}

func TestVerifySignature(t *testing.T) {
	backend := newFakeBackend()
	f := newFixture(t, backend, time.Second)

	stx, err := f.tracker.Prepare(context.Background(), core.NewTransfer(alithAddress, big.NewInt(1)), f.cred, f.adapter)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature(stx, alithAddress))
	assert.Error(t, VerifySignature(stx, "0x3Cd0A705a2DC65e5b1E1205896BaA2be8A07c6e0"))
	assert.NotEmpty(t, stx.Bytes())
	assert.Zero(t, backend.sentCount())
}

func TestGas(t *testing.T) {
	recipient := "0x3Cd0A705a2DC65e5b1E1205896BaA2be8A07c6e0"
	transfer := core.NewTransfer(recipient, big.NewInt(12345))

	t.Run("test estimate", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), transfer, f.cred, f.adapter)
		require.NoError(t, err)

		require.Len(t, backend.estimates, 1)
		call := backend.estimates[0]
		assert.Equal(t, alithAddress, call.From.Hex())
		assert.Equal(t, recipient, call.To.Hex())
		assert.Equal(t, big.NewInt(12345), call.Value)
		assert.Nil(t, call.GasPrice)

		assert.Equal(t, uint64(54321), backend.sent[0].Gas())
	})

	t.Run("test estimate failure keeps default", func(t *testing.T) {
		backend := newFakeBackend()
		backend.gasErr = errors.New("execution reverted")
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), transfer, f.cred, f.adapter)
		require.NoError(t, err)
		assert.Equal(t, transfer_gas_limit, backend.sent[0].Gas())

		backend = newFakeBackend()
		backend.gasErr = errors.New("execution reverted")
		f = newFixture(t, backend, time.Second)

		_, err = f.tracker.Execute(context.Background(), core.NewDeployContract(loadBenchERC20(t), 1000), f.cred, f.adapter)
		require.NoError(t, err)
		assert.Equal(t, deploy_gas_limit, backend.sent[0].Gas())
	})

	t.Run("test configured limit", func(t *testing.T) {
		backend := newFakeBackend()
		config := &configs.ChainConfig{
			Name:     configs.ChainEthereum,
			Nodes:    []string{"fake"},
			GasLimit: 3000000,
			Confirm:  configs.ConfirmConfig{Interval: time.Millisecond},
		}

		adapter, err := NewAdapter(context.Background(), core.NewNopLogger(), backend, config)
		require.NoError(t, err)

		cred, err := (&BlockchainInterface{}).ResolveCredential(&configs.ChainKey{Private: alithPrivate}, config)
		require.NoError(t, err)

		tracker := core.NewTracker(core.NewNopLogger(), core.TrackerOptions{ConfirmTimeout: time.Second})
		_, err = tracker.Execute(context.Background(), transfer, cred, adapter)
		require.NoError(t, err)

		assert.Empty(t, backend.estimates)
		assert.Equal(t, uint64(3000000), backend.sent[0].Gas())
	})

	t.Run("test caller cancels estimate", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		utx, err := f.adapter.Builder().Build(transfer, core.AccountState{Account: alithAddress, Nonce: 7})
		require.NoError(t, err)

		cancel()
		backend.gasErr = context.Canceled

		_, err = f.adapter.Estimate(ctx, utx)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("test gas price headroom", func(t *testing.T) {
		backend := newFakeBackend()
		f := newFixture(t, backend, time.Second)

		_, err := f.tracker.Execute(context.Background(), transfer, f.cred, f.adapter)
		require.NoError(t, err)

		assert.Equal(t, big.NewInt(1125000000), backend.sent[0].GasPrice())
		assert.Equal(t, big.NewInt(9), withHeadroom(big.NewInt(8)))
		assert.Equal(t, big.NewInt(7), withHeadroom(big.NewInt(7)))
	})
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
	transfer := core.NewTransfer(alithAddress, big.NewInt(1))

	t.Run("test foreign transaction", func(t *testing.T) {
		f := newFixture(t, newFakeBackend(), time.Second)

		_, err := f.adapter.Sign(&foreignTransaction{transfer}, f.cred)
		require.Error(t, err)

		assert.True(t, errors.Is(err, core.ErrEncoding))
		assert.False(t, errors.Is(err, core.ErrInvalidCredential))
		step, _ := core.FailedStep(err)
		assert.Equal(t, core.STEP_SIGN, step)
	})

	t.Run("test foreign credential", func(t *testing.T) {
		f := newFixture(t, newFakeBackend(), time.Second)

		utx, err := f.adapter.Builder().Build(transfer, core.AccountState{Account: alithAddress, Nonce: 7})
		require.NoError(t, err)

		_, err = f.adapter.Sign(utx, mock.NewAccount("//Alice"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInvalidCredential))
	})
}
