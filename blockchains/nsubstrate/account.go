package nsubstrate


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/vedhavyas/go-subkey/v2"
)


const (
	protocol_name string = configs.ChainSubstrate

	account_id_length int = 32
)


// An sr25519 keypair derived from a seed and a derivation path.
// The secret URI is kept only to sign and never leaves this type.
//
type keyring struct {
	pair    signature.KeyringPair
	format  uint16
}

func (this *keyring) Identity() string {
	return this.pair.Address
}

func (this *keyring) Protocol() string {
	return protocol_name
}

func (this *keyring) String() string {
	return protocol_name + ":" + this.pair.Address
}

func (this *keyring) GoString() string {
	return this.String()
}

func (this *keyring) PublicKey() []byte {
	return append([]byte{}, this.pair.PublicKey...)
}


// Derive the keypair of `seed` + `path`.
// An empty seed stands for the well known development phrase so that
// `//Alice` alone names the development account.
//
func newKeyring(seed, path string, format uint16) (*keyring, error) {
	var pair signature.KeyringPair
	var err error

	pair, err = signature.KeyringPairFromSecret(seed+path, format)
	if err != nil {
		return nil, invalidCredential(fmt.Sprintf("cannot derive "+
			"sr25519 key for path '%s'", path), nil)
	}

	if len(pair.PublicKey) != account_id_length {
		return nil, invalidCredential(fmt.Sprintf("derived public "+
			"key has %d bytes", len(pair.PublicKey)), nil)
	}

	return &keyring{
		pair: pair,
		format: format,
	}, nil
}

// Check that `address` (in any SS58 format) names the account of this
// keyring.
//
func (this *keyring) matches(address string) error {
	var public []byte
	var err error

	_, public, err = subkey.SS58Decode(address)
	if err != nil {
		return invalidCredential(fmt.Sprintf("invalid expected "+
			"address '%s'", address), err)
	}

	if !bytes.Equal(public, this.pair.PublicKey) {
		return invalidCredential(fmt.Sprintf("key controls %s, not %s",
			this.pair.Address, address), nil)
	}

	return nil
}

func invalidCredential(reason string, cause error) error {
	return core.NewError(core.STEP_RESOLVE, core.ErrInvalidCredential,
		reason, cause)
}

func asKeyring(cred core.Credential) (*keyring, error) {
	var ret *keyring
	var ok bool

	ret, ok = cred.(*keyring)
	if !ok || (ret == nil) {
		return nil, invalidCredential(fmt.Sprintf("credential %v "+
			"cannot sign for %s", cred, protocol_name), nil)
	}

	return ret, nil
}
