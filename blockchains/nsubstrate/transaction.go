package nsubstrate


import (
	"benchdriver/core"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"
	"golang.org/x/crypto/blake2b"
)


// Signing payloads longer than this are signed through their blake2b-256
// digest.
//
const max_raw_payload int = 256


type unsignedTransaction struct {
	intent  core.TransactionIntent
	call    types.Call
	nonce   uint64
	params  *chainParams
}

func newUnsignedTransaction(intent core.TransactionIntent, call types.Call, nonce uint64, params *chainParams) *unsignedTransaction {
	return &unsignedTransaction{
		intent: intent,
		call: call,
		nonce: nonce,
		params: params,
	}
}

func (this *unsignedTransaction) Intent() core.TransactionIntent {
	return this.intent
}

func (this *unsignedTransaction) Nonce() uint64 {
	return this.nonce
}


// The V4 signing payload: the call then the signed extensions (immortal
// era, nonce, tip) then what they add to the signature (spec and
// transaction versions, genesis hash and the era checkpoint which is the
// genesis hash for an immortal transaction).
//
type signingPayload struct {
	Call         types.Call
	Era          types.ExtrinsicEra
	Nonce        types.UCompact
	Tip          types.UCompact
	SpecVersion  types.U32
	TxVersion    types.U32
	GenesisHash  types.Hash
	BlockHash    types.Hash
}

func (this *unsignedTransaction) payload() ([]byte, error) {
	var digest [32]byte
	var ret []byte
	var err error

	ret, err = codec.Encode(signingPayload{
		Call: this.call,
		Era: types.ExtrinsicEra{ IsImmortalEra: true },
		Nonce: types.NewUCompactFromUInt(this.nonce),
		Tip: types.NewUCompactFromUInt(0),
		SpecVersion: types.U32(this.params.specVersion),
		TxVersion: types.U32(this.params.txVersion),
		GenesisHash: this.params.genesis,
		BlockHash: this.params.genesis,
	})
	if err != nil {
		return nil, err
	}

	if len(ret) > max_raw_payload {
		digest = blake2b.Sum256(ret)
		ret = digest[:]
	}

	return ret, nil
}

func (this *unsignedTransaction) sign(ring *keyring) (*signedTransaction, error) {
	var ext types.Extrinsic
	var signer types.MultiAddress
	var payload, sig, raw []byte
	var digest [32]byte
	var err error

	payload, err = this.payload()
	if err != nil {
		return nil, signEncodingError("cannot encode signing "+
			"payload", err)
	}

	sig, err = signature.Sign(payload, ring.pair.URI)
	if err != nil {
		return nil, fmt.Errorf("cannot sign with %s", ring.Identity())
	}

	signer, err = types.NewMultiAddressFromAccountID(ring.pair.PublicKey)
	if err != nil {
		return nil, err
	}

	ext = types.NewExtrinsic(this.call)
	ext.Signature = types.ExtrinsicSignatureV4{
		Signer: signer,
		Signature: types.MultiSignature{
			IsSr25519: true,
			AsSr25519: types.NewSignature(sig),
		},
		Era: types.ExtrinsicEra{ IsImmortalEra: true },
		Nonce: types.NewUCompactFromUInt(this.nonce),
		Tip: types.NewUCompactFromUInt(0),
	}
	ext.Version |= types.ExtrinsicBitSigned

	raw, err = codec.Encode(ext)
	if err != nil {
		return nil, signEncodingError("cannot encode extrinsic", err)
	}

	digest = blake2b.Sum256(raw)

	return &signedTransaction{
		unsigned: this,
		account: ring.Identity(),
		ext: ext,
		raw: raw,
		hash: types.NewHash(digest[:]),
		signature: sig,
	}, nil
}


type signedTransaction struct {
	unsigned   *unsignedTransaction
	account    string
	ext        types.Extrinsic
	raw        []byte
	hash       types.Hash
	signature  []byte
}

func (this *signedTransaction) Intent() core.TransactionIntent {
	return this.unsigned.intent
}

func (this *signedTransaction) Account() string {
	return this.account
}

func (this *signedTransaction) Nonce() uint64 {
	return this.unsigned.nonce
}

func (this *signedTransaction) Hash() string {
	return this.hash.Hex()
}

func (this *signedTransaction) Bytes() []byte {
	return append([]byte{}, this.raw...)
}


// Check the sr25519 signature of `tx` against the public key behind the
// SS58 address `identity`.
//
func VerifySignature(tx core.SignedTransaction, identity string) error {
	var public subkey.PublicKey
	var stx *signedTransaction
	var payload, key []byte
	var err error
	var ok bool

	stx, ok = tx.(*signedTransaction)
	if !ok {
		return fmt.Errorf("not a %s transaction", protocol_name)
	}

	_, key, err = subkey.SS58Decode(identity)
	if err != nil {
		return err
	}

	public, err = sr25519.Scheme{}.FromPublicKey(key)
	if err != nil {
		return err
	}

	payload, err = stx.unsigned.payload()
	if err != nil {
		return err
	}

	if !public.Verify(payload, stx.signature) {
		return fmt.Errorf("transaction not signed by %s", identity)
	}

	return nil
}
