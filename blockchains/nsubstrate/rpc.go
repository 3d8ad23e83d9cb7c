package nsubstrate


import (
	"context"
	"fmt"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)


const (
	default_transfer_call  string = "Balances.transfer"
	renamed_transfer_call  string = "Balances.transfer_allow_death"
)


// Chain parameters which do not change over the life of an adapter.
//
type chainParams struct {
	genesis      types.Hash
	specVersion  uint32
	txVersion    uint32
	callIndex    types.CallIndex
	format       uint16
}


// The part of the node RPC the adapter uses.
//
type node interface {
	accountNonce(ctx context.Context, account []byte) (uint64, error)

	submitAndWatch(ctx context.Context, ext types.Extrinsic) (watch, error)

	close()
}

// Status stream of one submitted extrinsic.
// `*author.ExtrinsicStatusSubscription` implements it.
//
type watch interface {
	Chan() <-chan types.ExtrinsicStatus

	Err() <-chan error

	Unsubscribe()
}


type gsrpcNode struct {
	api   *gsrpc.SubstrateAPI
	meta  *types.Metadata
}

func dialNode(ctx context.Context, endpoint string) (*gsrpcNode, error) {
	var api *gsrpc.SubstrateAPI
	var meta *types.Metadata
	var err error

	err = callContext(ctx, func() error {
		var cerr error

		api, cerr = gsrpc.NewSubstrateAPI(endpoint)
		if cerr != nil {
			return cerr
		}

		meta, cerr = api.RPC.State.GetMetadataLatest()
		return cerr
	})
	if err != nil {
		return nil, err
	}

	return &gsrpcNode{
		api: api,
		meta: meta,
	}, nil
}

// Fetch what every signature commits to and the index of the transfer
// call.
// When no call is configured, runtimes which renamed `transfer` are
// supported through its new name.
//
func (this *gsrpcNode) params(ctx context.Context, callName string, format uint16) (*chainParams, error) {
	var version *types.RuntimeVersion
	var params chainParams
	var err error

	err = callContext(ctx, func() error {
		var cerr error

		params.genesis, cerr = this.api.RPC.Chain.GetBlockHash(0)
		if cerr != nil {
			return cerr
		}

		version, cerr = this.api.RPC.State.GetRuntimeVersionLatest()
		return cerr
	})
	if err != nil {
		return nil, err
	}

	params.specVersion = uint32(version.SpecVersion)
	params.txVersion = uint32(version.TransactionVersion)
	params.format = format

	if callName == "" {
		params.callIndex, err = this.meta.FindCallIndex(
			default_transfer_call)
		if err != nil {
			callName = renamed_transfer_call
		}
	}

	if callName != "" {
		params.callIndex, err = this.meta.FindCallIndex(callName)
		if err != nil {
			return nil, fmt.Errorf("runtime has no call '%s': %w",
				callName, err)
		}
	}

	return &params, nil
}

// An account unknown to the chain has never sent anything: its nonce is 0.
//
func (this *gsrpcNode) accountNonce(ctx context.Context, account []byte) (uint64, error) {
	var info types.AccountInfo
	var key types.StorageKey
	var found bool
	var err error

	key, err = types.CreateStorageKey(this.meta, "System", "Account",
		account)
	if err != nil {
		return 0, err
	}

	err = callContext(ctx, func() error {
		var cerr error

		found, cerr = this.api.RPC.State.GetStorageLatest(key, &info)
		return cerr
	})
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, nil
	}

	return uint64(info.Nonce), nil
}

func (this *gsrpcNode) submitAndWatch(ctx context.Context, ext types.Extrinsic) (watch, error) {
	var done chan struct{} = make(chan struct{})
	var ret watch
	var err error

	go func() {
		ret, err = this.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
		close(done)
	}()

	select {
	case <- done:
		if err != nil {
			return nil, err
		}
		return ret, nil
	case <- ctx.Done():
		// Unsubscribe once the call returns, the extrinsic itself may
		// already be in the pool.
		go func() {
			<- done
			if err == nil {
				ret.Unsubscribe()
			}
		}()
		return nil, ctx.Err()
	}
}

func (this *gsrpcNode) close() {
	var closer interface{ Close() }
	var ok bool

	closer, ok = this.api.Client.(interface{ Close() })
	if ok {
		closer.Close()
	}
}


// The RPC client calls block without a context: run them aside and stop
// waiting when `ctx` is done.
//
func callContext(ctx context.Context, call func() error) error {
	var done chan error = make(chan error, 1)

	go func() {
		done <- call()
	}()

	select {
	case err := <- done:
		return err
	case <- ctx.Done():
		return ctx.Err()
	}
}
