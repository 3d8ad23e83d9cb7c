package nsubstrate


import (
	"benchdriver/core"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/vedhavyas/go-subkey/v2"
)


// Balances are u128 on every Substrate runtime.
//
const transfer_amount_bits int = 128


type transactionBuilder struct {
	params  *chainParams
}

func newTransactionBuilder(params *chainParams) *transactionBuilder {
	return &transactionBuilder{
		params: params,
	}
}

func (this *transactionBuilder) Build(intent core.TransactionIntent, state core.AccountState) (core.UnsignedTransaction, error) {
	switch v := intent.(type) {
	case *core.Transfer:
		return this.buildTransfer(v, state)
	case *core.DeployContract:
		return nil, encodingError("contract deployment is not "+
			"supported by the native runtime", nil)
	}

	return nil, encodingError(fmt.Sprintf("unsupported intent %v", intent),
		nil)
}

// Encode `<call index> MultiAddress::Id(dest) Compact<u128>(amount)`.
//
func (this *transactionBuilder) buildTransfer(intent *core.Transfer, state core.AccountState) (*unsignedTransaction, error) {
	var dest types.MultiAddress
	var amount, args []byte
	var recipient []byte
	var err error

	err = core.CheckAmount(intent.Amount(), transfer_amount_bits)
	if err != nil {
		return nil, err
	}

	recipient, err = parseRecipient(intent.Recipient(), this.params.format)
	if err != nil {
		return nil, err
	}

	dest, err = types.NewMultiAddressFromAccountID(recipient)
	if err != nil {
		return nil, encodingError("invalid recipient", err)
	}

	args, err = codec.Encode(dest)
	if err != nil {
		return nil, encodingError("cannot encode recipient", err)
	}

	amount, err = codec.Encode(types.NewUCompact(intent.Amount()))
	if err != nil {
		return nil, encodingError("cannot encode amount", err)
	}

	return newUnsignedTransaction(intent, types.Call{
		CallIndex: this.params.callIndex,
		Args: append(args, amount...),
	}, state.Nonce, this.params), nil
}

// A recipient is an SS58 address of any network, a `0x` hex account id or
// a development derivation path such as `//Bob`.
//
func parseRecipient(recipient string, format uint16) ([]byte, error) {
	var ring *keyring
	var ret []byte
	var err error

	if strings.HasPrefix(recipient, "//") {
		ring, err = newKeyring("", recipient, format)
		if err != nil {
			return nil, encodingError(fmt.Sprintf("invalid "+
				"recipient path '%s'", recipient), nil)
		}
		return ring.PublicKey(), nil
	}

	if strings.HasPrefix(recipient, "0x") {
		ret, err = hex.DecodeString(recipient[2:])
		if err != nil {
			return nil, encodingError(fmt.Sprintf("invalid "+
				"recipient '%s'", recipient), err)
		}
	} else {
		_, ret, err = subkey.SS58Decode(recipient)
		if err != nil {
			return nil, encodingError(fmt.Sprintf("invalid "+
				"recipient '%s'", recipient), err)
		}
	}

	if len(ret) != account_id_length {
		return nil, encodingError(fmt.Sprintf("recipient '%s' has %d "+
			"bytes instead of %d", recipient, len(ret),
			account_id_length), nil)
	}

	return ret, nil
}

func encodingError(reason string, cause error) error {
	return core.NewError(core.STEP_BUILD, core.ErrEncoding, reason, cause)
}

// Signing failures which do not come from the key.
//
func signEncodingError(reason string, cause error) error {
	return core.NewError(core.STEP_SIGN, core.ErrEncoding, reason, cause)
}
