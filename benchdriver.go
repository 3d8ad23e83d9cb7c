package main


import (
	"benchdriver/blockchains/mock"
	"benchdriver/blockchains/nethereum"
	"benchdriver/blockchains/nsubstrate"
	"benchdriver/core"
	"benchdriver/core/configs"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)


const (
	program_name string = "benchdriver"
)


func buildSystemMap() map[string]core.BlockchainInterface {
	return map[string]core.BlockchainInterface{
		configs.ChainEthereum: &nethereum.BlockchainInterface{},
		configs.ChainSubstrate: &nsubstrate.BlockchainInterface{},
		configs.ChainMock: &mock.BlockchainInterface{},
	}
}

// Local signature checks used by dry runs.
// The mock chain has no signature to check.
//
func buildVerifierMap() map[string]func(core.SignedTransaction, string) error {
	return map[string]func(core.SignedTransaction, string) error{
		configs.ChainEthereum: nethereum.VerifySignature,
		configs.ChainSubstrate: nsubstrate.VerifySignature,
	}
}


func printResult(dest io.Writer, result *core.SubmissionResult) {
	var label string

	if result.Kind == core.RESULT_DEPLOYED {
		label = color.GreenString("deployed")
	} else {
		label = color.GreenString("included")
	}

	fmt.Fprintf(dest, "%s %s\n", label, result.TransactionHash)

	if result.ContractAddress != "" {
		fmt.Fprintf(dest, "  contract: %s\n",
			color.CyanString(result.ContractAddress))
	}

	if result.BlockReference != "" {
		fmt.Fprintf(dest, "  block:    %s\n", result.BlockReference)
	}

	fmt.Fprintf(dest, "  account:  %s\n", result.Account)
	fmt.Fprintf(dest, "  nonce:    %d\n", result.Nonce)
}

func printSigned(dest io.Writer, stx core.SignedTransaction, verified bool) {
	var check string

	if verified {
		check = color.GreenString("verified")
	} else {
		check = color.YellowString("not verified")
	}

	fmt.Fprintf(dest, "%s %s (%s)\n", color.CyanString("signed"),
		stx.Hash(), check)
	fmt.Fprintf(dest, "  account:  %s\n", stx.Account())
	fmt.Fprintf(dest, "  nonce:    %d\n", stx.Nonce())
	fmt.Fprintf(dest, "  size:     %d bytes\n", len(stx.Bytes()))
}

func printAccount(dest io.Writer, state core.AccountState) {
	fmt.Fprintf(dest, "%s %s\n", color.CyanString("account"), state.Account)
	fmt.Fprintf(dest, "  nonce:    %d\n", state.Nonce)
}

// Print `err` on `dest`, naming the step which failed when known.
//
func printFailure(dest io.Writer, err error) {
	var step core.Step
	var ok bool

	step, ok = core.FailedStep(err)
	if ok {
		fmt.Fprintf(dest, "%s: %s at step %s: %s\n", program_name,
			color.RedString("failed"), step, err.Error())
	} else {
		fmt.Fprintf(dest, "%s: %s: %s\n", program_name,
			color.RedString("error"), err.Error())
	}
}


func main() {
	var ctx context.Context
	var stop context.CancelFunc
	var err error

	ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)

	err = newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)

	stop()

	if err != nil {
		printFailure(os.Stderr, err)

		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Please type '%s --help' for "+
				"more information\n", os.Args[0])
		}

		os.Exit(1)
	}
}
