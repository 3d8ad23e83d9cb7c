package core


import (
	"encoding/json"
	"fmt"
	"math/big"
)


type IntentKind string

const (
	INTENT_DEPLOY   IntentKind = "deploy"
	INTENT_TRANSFER IntentKind = "transfer"
)


// What the caller wants to happen on chain.
// Only `*DeployContract` and `*Transfer` implement it.
//
type TransactionIntent interface {
	Kind() IntentKind

	String() string

	isIntent()
}


// A compiled contract as produced by an external build step.
//
type ContractArtifact struct {
	Name      string
	Bytecode  []byte
	ABI       json.RawMessage
}


type DeployContract struct {
	artifact  *ContractArtifact
	args      []interface{}
}

func NewDeployContract(artifact *ContractArtifact, args ...interface{}) *DeployContract {
	var copied []interface{} = make([]interface{}, len(args))

	copy(copied, args)

	return &DeployContract{
		artifact: artifact,
		args: copied,
	}
}

func (this *DeployContract) Artifact() *ContractArtifact {
	return this.artifact
}

// Return a copy of the constructor arguments in declaration order.
//
func (this *DeployContract) ConstructorArgs() []interface{} {
	var ret []interface{} = make([]interface{}, len(this.args))

	copy(ret, this.args)

	return ret
}

func (this *DeployContract) Kind() IntentKind {
	return INTENT_DEPLOY
}

func (this *DeployContract) String() string {
	var name string = "<nil>"

	if this.artifact != nil {
		name = this.artifact.Name
	}

	return fmt.Sprintf("deploy %s%v", name, this.args)
}

func (this *DeployContract) isIntent() {}


type Transfer struct {
	recipient  string
	amount     *big.Int
}

// The amount is copied so that later changes of `amount` by the caller do
// not leak into the intent.
// A nil amount is kept as nil and rejected when the intent is built.
//
func NewTransfer(recipient string, amount *big.Int) *Transfer {
	var copied *big.Int

	if amount != nil {
		copied = new(big.Int).Set(amount)
	}

	return &Transfer{
		recipient: recipient,
		amount: copied,
	}
}

func (this *Transfer) Recipient() string {
	return this.recipient
}

func (this *Transfer) Amount() *big.Int {
	if this.amount == nil {
		return nil
	}

	return new(big.Int).Set(this.amount)
}

func (this *Transfer) Kind() IntentKind {
	return INTENT_TRANSFER
}

func (this *Transfer) String() string {
	return fmt.Sprintf("transfer %v to %s", this.amount, this.recipient)
}

func (this *Transfer) isIntent() {}


// Check that `amount` is a non-negative integer which fits in `bits` bits.
// This is the common validation of every transfer builder.
//
func CheckAmount(amount *big.Int, bits int) error {
	if amount == nil {
		return NewError(STEP_BUILD, ErrInvalidAmount, "missing amount",
			nil)
	}

	if amount.Sign() < 0 {
		return NewError(STEP_BUILD, ErrInvalidAmount,
			fmt.Sprintf("negative amount %s", amount.String()), nil)
	}

	if amount.BitLen() > bits {
		return NewError(STEP_BUILD, ErrInvalidAmount,
			fmt.Sprintf("amount %s does not fit in %d bits",
			amount.String(), bits), nil)
	}

	return nil
}
