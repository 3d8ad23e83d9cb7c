package main


import (
	"benchdriver/blockchains/nethereum"
	"benchdriver/core"
	"benchdriver/core/configs"
	"benchdriver/core/configs/parsers"
	"benchdriver/core/results"
	"benchdriver/core/telemetry"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)


const (
	env_prefix               string = "BENCHDRIVER"
	dotenv_file              string = ".env"

	default_account          string = "//Alice"
	default_recipient        string = "//Bob"
	default_deploy_arg       string = "1000"
	default_transfer_amount  string = "12345"

	shutdown_timeout         time.Duration = 5 * time.Second
)


// State shared by the commands of one process.
// Every setting is read through `env` so that a `BENCHDRIVER_<FLAG>`
// variable applies when the flag is not given.
//
type driver struct {
	stdout     io.Writer
	stderr     io.Writer
	env        *viper.Viper
	verbose    *verbosity
	systems    map[string]core.BlockchainInterface
	verifiers  map[string]func(core.SignedTransaction, string) error
}

// Everything one invocation needs once the configuration is loaded.
//
type session struct {
	config      *configs.ChainConfig
	configPath  string
	logger      core.Logger
	record      *results.Record
	cred        core.Credential
	adapter     core.ProtocolAdapter
	tracker     *core.Tracker
	shutdown    telemetry.ShutdownFunc
}


func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var this *driver
	var root *cobra.Command

	this = &driver{
		stdout: stdout,
		stderr: stderr,
		env: viper.New(),
		verbose: newVerbosity(core.LOG_WARN),
		systems: buildSystemMap(),
		verifiers: buildVerifierMap(),
	}

	root = &cobra.Command{
		Use: program_name,
		Short: "Submit one benchmark transaction and wait for it " +
			"to be confirmed",
		Long: `Submit one transaction to an EVM or a Substrate chain, either a
contract deployment or a native transfer, and wait until the chain
confirms it. The chain is described by a YAML file given with --chain,
or 'mock' for an in-memory chain.`,
		SilenceUsage: true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error

			err = this.bindEnvironment(root)
			if err != nil {
				return err
			}

			return this.loadEnvironment()
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	this.bindFlags(root)

	root.AddCommand(this.deployCommand())
	root.AddCommand(this.transferCommand())
	root.AddCommand(this.accountCommand())

	return root
}

func (this *driver) bindFlags(root *cobra.Command) {
	var flags = root.PersistentFlags()

	flags.StringP("chain", "c", configs.ChainMock, "chain " +
		"configuration file, or 'mock' for an in-memory chain")
	flags.StringP("account", "a", "", "key name from the chain " +
		"configuration or derivation path (default: first key, or " +
		default_account + ")")
	flags.StringP("output", "o", "", "write a JSON result record in " +
		"this directory")
	flags.String("otlp-endpoint", "", "export trace spans to this " +
		"OTLP/HTTP collector")
	flags.Duration("timeout", 0, "bound on the confirmation wait, " +
		"overrides the chain configuration (negative: unbounded)")
	flags.VarPF(this.verbose, "verbose", "v", "increment or set " +
		"verbosity (fatal=1, error=2, warning=3, info=4, debug=5, " +
		"trace=6)").NoOptDefVal = verbosity_increment
}

// Make the persistent flags of `root` readable through `env`, with a
// `BENCHDRIVER_<FLAG>` variable as fallback.
//
func (this *driver) bindEnvironment(root *cobra.Command) error {
	var key string
	var err error

	this.env.SetEnvPrefix(env_prefix)
	this.env.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	this.env.AutomaticEnv()

	// Only settable from the environment, never on the command line.
	for _, key = range []string{ "key", "seed" } {
		err = this.env.BindEnv(key)
		if err != nil {
			return fmt.Errorf("cannot bind %s to the environment: %w",
				key, err)
		}
	}

	err = this.env.BindPFlags(root.PersistentFlags())
	if err != nil {
		return fmt.Errorf("cannot bind flags to the environment: %w",
			err)
	}

	return nil
}

// Load the optional `.env` file before the environment is read, then
// apply the environment verbosity unless the flag was given.
//
func (this *driver) loadEnvironment() error {
	var err error

	_, err = os.Stat(dotenv_file)
	if err == nil {
		err = godotenv.Load(dotenv_file)
		if err != nil {
			return fmt.Errorf("cannot load %s: %w", dotenv_file, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	return this.verbose.Set(this.env.GetString("verbose"))
}


func (this *driver) deployCommand() *cobra.Command {
	var artifactPath string
	var args []string
	var dryRun bool
	var cmd *cobra.Command

	cmd = &cobra.Command{
		Use: "deploy",
		Short: "Deploy a compiled contract",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return this.invoke(cmd.Context(), core.INTENT_DEPLOY,
				dryRun, func(*configs.ChainConfig) (core.TransactionIntent, error) {
				var artifact *core.ContractArtifact
				var err error

				if artifactPath == "" {
					return nil, usageError("missing --artifact")
				}

				artifact, err = nethereum.LoadArtifact(artifactPath)
				if err != nil {
					return nil, core.NewError(core.STEP_BUILD,
						core.ErrEncoding, "", err)
				}

				return core.NewDeployContract(artifact,
					parseConstructorArgs(args)...), nil
			})
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "compiled " +
		"contract artifact (hardhat or foundry JSON)")
	cmd.Flags().StringArrayVar(&args, "arg", []string{default_deploy_arg},
		"constructor argument, repeat in declaration order")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after signing " +
		"and print the signed transaction")

	return cmd
}

func (this *driver) transferCommand() *cobra.Command {
	var recipient, amount string
	var decimals int32
	var dryRun bool
	var cmd *cobra.Command

	cmd = &cobra.Command{
		Use: "transfer",
		Short: "Transfer native currency",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return this.invoke(cmd.Context(), core.INTENT_TRANSFER,
				dryRun, func(config *configs.ChainConfig) (core.TransactionIntent, error) {
				var value *big.Int
				var to string = recipient
				var err error

				if to == "" {
					if config.Name == configs.ChainEthereum {
						return nil, usageError("missing --to")
					}
					to = default_recipient
				}

				value, err = parseAmount(amount, decimals)
				if err != nil {
					return nil, err
				}

				return core.NewTransfer(to, value), nil
			})
		},
	}

	cmd.Flags().StringVar(&recipient, "to", "", "recipient address " +
		"(default on substrate: " + default_recipient + ")")
	cmd.Flags().StringVar(&amount, "amount", default_transfer_amount,
		"amount to transfer")
	cmd.Flags().Int32Var(&decimals, "decimals", 0, "decimal places of " +
		"one unit of --amount")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after signing " +
		"and print the signed transaction")

	return cmd
}

func (this *driver) accountCommand() *cobra.Command {
	return &cobra.Command{
		Use: "account",
		Short: "Print the account address and its next nonce",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var state core.AccountState
			var s *session
			var err error

			s, err = this.open(cmd.Context(), "account")
			if s != nil {
				defer s.close()
			}
			if err != nil {
				return err
			}

			state, err = s.adapter.FetchAccountState(cmd.Context(),
				s.cred)
			if err != nil {
				if _, ok := core.FailedStep(err); !ok {
					err = core.NewError(core.STEP_FETCH,
						core.ErrAccountStateFetchFailed,
						"", err)
				}
				return err
			}

			printAccount(this.stdout, state)

			return nil
		},
	}
}


// Run one invocation: resolve, execute (or prepare on a dry run), print
// and record the outcome.
//
func (this *driver) invoke(ctx context.Context, kind core.IntentKind, dryRun bool, makeIntent func(*configs.ChainConfig) (core.TransactionIntent, error)) error {
	var result *core.SubmissionResult
	var intent core.TransactionIntent
	var stx core.SignedTransaction
	var s *session
	var err error

	s, err = this.open(ctx, string(kind))
	if s != nil {
		defer s.close()
	}
	if err != nil {
		return this.finish(s, nil, err)
	}

	s.record.DryRun = dryRun

	intent, err = makeIntent(s.config)
	if err != nil {
		return this.finish(s, nil, err)
	}

	s.logger.Infof("%s from %s", intent, s.cred.Identity())

	if !dryRun {
		result, err = s.tracker.Execute(ctx, intent, s.cred, s.adapter)
		if err == nil {
			printResult(this.stdout, result)
		}
		return this.finish(s, result, err)
	}

	stx, err = s.tracker.Prepare(ctx, intent, s.cred, s.adapter)
	if err != nil {
		return this.finish(s, nil, err)
	}

	err = this.verify(s.config.Name, stx, s.cred)
	if err != nil {
		return this.finish(s, nil, err)
	}

	s.record.Signed = stx.Hash()

	printSigned(this.stdout, stx, this.verifiers[s.config.Name] != nil)

	return this.finish(s, nil, nil)
}

func (this *driver) verify(chain string, stx core.SignedTransaction, cred core.Credential) error {
	var verify func(core.SignedTransaction, string) error
	var err error

	verify = this.verifiers[chain]
	if verify == nil {
		return nil
	}

	err = verify(stx, cred.Identity())
	if err != nil {
		return core.NewError(core.STEP_SIGN, core.ErrInvalidCredential,
			"signature does not verify", err)
	}

	return nil
}

// Close the record of `s` with the outcome and write it when an output
// directory is set. Return `err` unchanged.
//
func (this *driver) finish(s *session, result *core.SubmissionResult, err error) error {
	var output, path string
	var werr error

	if (s == nil) || (s.record == nil) {
		return err
	}

	s.record.Finish(result, err)

	output = this.env.GetString("output")
	if output == "" {
		return err
	}

	path, werr = results.WriteRecordToFile(s.record, s.configPath, output)
	if werr != nil {
		s.logger.Errorf("cannot write result record: %s", werr.Error())
		if err == nil {
			return werr
		}
		return err
	}

	s.logger.Infof("result record written to %s", path)

	return err
}


// Load the chain configuration and prepare the credential, adapter and
// tracker of one invocation.
// The returned session is not nil as soon as the configuration is loaded
// and must be closed even when an error is returned.
//
func (this *driver) open(ctx context.Context, intent string) (*session, error) {
	var system core.BlockchainInterface
	var key *configs.ChainKey
	var timeout time.Duration
	var s session
	var err error
	var ok bool

	s.shutdown = func(context.Context) error { return nil }

	s.logger, err = core.NewZapLogger(program_name, this.verbose.level)
	if err != nil {
		return nil, err
	}

	s.configPath = this.env.GetString("chain")
	if s.configPath == configs.ChainMock {
		s.config = parsers.MockChainConfig()
		s.configPath = ""
	} else if s.configPath == "" {
		return nil, parsers.ErrNoChainConfig
	} else {
		s.config, err = parsers.ParseChainConfig(s.configPath)
		if err != nil {
			return nil, usageError("cannot load chain configuration " +
				"'%s': %s", s.configPath, err.Error())
		}
	}

	s.record = results.NewRecord(s.config.Name, intent)
	s.logger = s.logger.Extend(s.record.RunID[:8])

	system, ok = this.systems[s.config.Name]
	if !ok {
		return &s, usageError("unknown chain '%s'", s.config.Name)
	}

	key, err = this.selectKey(s.config)
	if err != nil {
		return &s, err
	}

	s.cred, err = system.ResolveCredential(key, s.config)
	if err != nil {
		return &s, err
	}

	s.record.Account = s.cred.Identity()

	s.logger.Debugf("use account %s", s.cred)

	s.shutdown, err = telemetry.InitTracer(ctx, program_name,
		s.record.RunID, this.env.GetString("otlp-endpoint"))
	if err != nil {
		s.logger.Warnf("tracing disabled: %s", err.Error())
	}

	s.adapter, err = system.Adapter(ctx, s.config, s.logger)
	if err != nil {
		return &s, err
	}

	timeout = this.env.GetDuration("timeout")
	if timeout == 0 {
		timeout = s.config.Confirm.Timeout
	}

	s.tracker = core.NewTracker(s.logger, core.TrackerOptions{
		ConfirmTimeout: timeout,
		Observer: s.record.ObserveStep,
	})

	return &s, nil
}

// Pick the key entry named by `--account`, then apply the environment
// overrides: `BENCHDRIVER_KEY` replaces it with a raw key and
// `BENCHDRIVER_SEED` replaces its seed.
//
func (this *driver) selectKey(config *configs.ChainConfig) (*configs.ChainKey, error) {
	var key configs.ChainKey
	var found *configs.ChainKey
	var name, private, seed string
	var err error

	private = this.env.GetString("key")
	if private != "" {
		return &configs.ChainKey{
			Name: env_prefix + "_KEY",
			Private: private,
		}, nil
	}

	name = this.env.GetString("account")
	if (name == "") && (len(config.Keys) == 0) {
		name = default_account
	}

	found, err = config.FindKey(name)
	if err != nil {
		return nil, core.NewError(core.STEP_RESOLVE,
			core.ErrInvalidCredential, "", err)
	}

	key = *found

	seed = this.env.GetString("seed")
	if seed != "" {
		key.Private = ""
		key.Seed = seed
	}

	return &key, nil
}

func (this *session) close() {
	var closer io.Closer
	var ctx context.Context
	var cancel context.CancelFunc
	var ok bool

	if this.adapter != nil {
		closer, ok = this.adapter.(io.Closer)
		if ok {
			closer.Close()
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(),
		shutdown_timeout)
	defer cancel()

	if this.shutdown(ctx) != nil {
		this.logger.Warnf("cannot flush trace spans")
	}
}
