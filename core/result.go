package core


import (
	"fmt"
)


type ResultKind string

const (
	RESULT_DEPLOYED ResultKind = "deployed"
	RESULT_INCLUDED ResultKind = "included"
)


// Terminal success of an invocation.
// `ContractAddress` is only set for `RESULT_DEPLOYED`. `BlockReference`
// identifies the block in which the transaction landed (a block hash).
//
type SubmissionResult struct {
	Kind             ResultKind  `json:"kind"`
	ContractAddress  string      `json:"contractAddress,omitempty"`
	TransactionHash  string      `json:"transactionHash"`
	BlockReference   string      `json:"blockReference,omitempty"`
	Account          string      `json:"account"`
	Nonce            uint64      `json:"nonce"`
}

func NewDeployedResult(tx SignedTransaction, address, block string) *SubmissionResult {
	return &SubmissionResult{
		Kind: RESULT_DEPLOYED,
		ContractAddress: address,
		TransactionHash: tx.Hash(),
		BlockReference: block,
		Account: tx.Account(),
		Nonce: tx.Nonce(),
	}
}

func NewIncludedResult(tx SignedTransaction, block string) *SubmissionResult {
	return &SubmissionResult{
		Kind: RESULT_INCLUDED,
		TransactionHash: tx.Hash(),
		BlockReference: block,
		Account: tx.Account(),
		Nonce: tx.Nonce(),
	}
}

func (this *SubmissionResult) String() string {
	if this.Kind == RESULT_DEPLOYED {
		return fmt.Sprintf("deployed %s (tx %s, block %s)",
			this.ContractAddress, this.TransactionHash,
			this.BlockReference)
	}

	return fmt.Sprintf("included %s (block %s)", this.TransactionHash,
		this.BlockReference)
}
