package nethereum


import (
	"benchdriver/core"
	"benchdriver/core/configs"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)


const (
	protocol_name string = configs.ChainEthereum

	private_key_length int = 32
)


// A raw secp256k1 key and the address it controls.
//
type account struct {
	address  common.Address
	private  *ecdsa.PrivateKey
}

func (this *account) Identity() string {
	return this.address.Hex()
}

func (this *account) Protocol() string {
	return protocol_name
}

func (this *account) String() string {
	return protocol_name + ":" + this.address.Hex()
}

func (this *account) GoString() string {
	return this.String()
}

func (this *account) Address() common.Address {
	return this.address
}


// Resolve a raw private key into an account.
// The key is hex with an optional `0x` and must be exactly 32 bytes long.
// When `expected` is not empty it must match the derived address.
//
func newAccount(keyHex string, expected string) (*account, error) {
	var private *ecdsa.PrivateKey
	var address common.Address
	var bytes []byte
	var err error

	bytes, err = hex.DecodeString(configs.TrimHexPrefix(keyHex))
	if err != nil {
		return nil, invalidCredential("private key is not hex", nil)
	}

	if len(bytes) != private_key_length {
		return nil, invalidCredential(fmt.Sprintf("private key has "+
			"%d bytes instead of %d", len(bytes),
			private_key_length), nil)
	}

	private, err = crypto.ToECDSA(bytes)
	if err != nil {
		return nil, invalidCredential("private key is not a valid "+
			"secp256k1 scalar", nil)
	}

	address = crypto.PubkeyToAddress(private.PublicKey)

	if expected != "" {
		if !common.IsHexAddress(expected) {
			return nil, invalidCredential(fmt.Sprintf("invalid "+
				"expected address '%s'", expected), nil)
		}

		if common.HexToAddress(expected) != address {
			return nil, invalidCredential(fmt.Sprintf("key "+
				"controls %s, not %s", address.Hex(),
				expected), nil)
		}
	}

	return &account{
		address: address,
		private: private,
	}, nil
}

// Never wrap the decoding errors: some of them quote the input.
//
func invalidCredential(reason string, cause error) error {
	return core.NewError(core.STEP_RESOLVE, core.ErrInvalidCredential,
		reason, cause)
}

func asAccount(cred core.Credential) (*account, error) {
	var ret *account
	var ok bool

	ret, ok = cred.(*account)
	if !ok || (ret == nil) {
		return nil, invalidCredential(fmt.Sprintf("credential %v "+
			"cannot sign for %s", cred, protocol_name), nil)
	}

	return ret, nil
}
