// Package controller implements the initializer that runs the local ledger
// network in the daemon and injects the contract services built on top of it.
package controller

import (
	"path/filepath"

	"github.com/indemnify/cman/cli"
	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/config"
	"github.com/indemnify/cman/contracts/invoke"
	"github.com/indemnify/cman/contracts/lifecycle"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/ledger/local"
	"github.com/indemnify/cman/core/ledger/traced"
	"github.com/indemnify/cman/core/store/kv"
	"github.com/indemnify/cman/crypto/ed25519"
	"github.com/indemnify/cman/crypto/loader"
	"github.com/indemnify/cman/internal/tracing"
	"golang.org/x/xerrors"
)

const (
	// DatabaseName is the name of the ledger database in the config folder.
	DatabaseName = "ledger.db"

	// KeyName is the name of the file holding the generated operator key.
	KeyName = "operator.key"

	configFileFlag = "operator-config"
	latencyFlag    = "latency"
	genesisFlag    = "genesis-balance"
)

// NewController returns the initializer of the local ledger.
func NewController() node.Initializer {
	return controller{}
}

// controller opens the local network and injects the ledger client, the
// contract lifecycle manager and the invocation service.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	builder.SetStartFlags(
		cli.StringFlag{
			Name:  configFileFlag,
			Usage: "YAML file with the operator settings, overridden by the environment",
			Env:   cli.EnvName(configFileFlag),
		},
		cli.DurationFlag{
			Name:  latencyFlag,
			Usage: "artificial delay of each transaction of the local network",
			Env:   cli.EnvName(latencyFlag),
		},
		cli.IntFlag{
			Name:  genesisFlag,
			Usage: "balance in hbar of the operator account when it is created",
			Value: int(local.DefaultGenesisBalance / ledger.Hbar(1)),
		},
	)

	cmd := builder.SetCommand("ledger")
	cmd.SetDescription("inspect the local ledger")

	sub := cmd.SetSubCommand("balance")
	sub.SetDescription("print the balance of an account")
	sub.SetFlags(cli.StringFlag{
		Name:  "account",
		Usage: "account as shard.realm.num, the operator by default",
	})
	sub.SetAction(builder.MakeAction(balanceAction{}))
}

// OnStart implements node.Initializer. It resolves the configuration, opens
// the database of the network and creates the operator account.
func (controller) OnStart(flags cli.Flags, inj node.Injector) error {
	cfg, err := loadConfig(flags.String(configFileFlag))
	if err != nil {
		return xerrors.Errorf("config: %v", err)
	}

	dir := flags.Path(node.ConfigFlag)

	signer := cfg.OperatorKey
	if !cfg.HasOperatorKey() {
		signer, err = loader.LoadSigner(loader.NewFileLoader(filepath.Join(dir, KeyName)))
		if err != nil {
			return xerrors.Errorf("operator key: %v", err)
		}
	}

	db, err := kv.New(filepath.Join(dir, DatabaseName))
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	network, err := local.Open(db, cfg.Network, local.WithLatency(flags.Duration(latencyFlag)))
	if err != nil {
		db.Close()
		return xerrors.Errorf("failed to open network: %v", err)
	}

	balance := ledger.Hbar(int64(flags.Int(genesisFlag)))
	if balance <= 0 {
		balance = local.DefaultGenesisBalance
	}

	err = network.Genesis(cfg.OperatorID, signer.GetPublicKey(), balance)
	if err != nil {
		db.Close()
		return xerrors.Errorf("genesis: %v", err)
	}

	client, err := newClient(network, cfg, signer)
	if err != nil {
		db.Close()
		return xerrors.Errorf("client: %v", err)
	}

	inj.Inject(db)
	inj.Inject(network)
	inj.Inject(client)
	inj.Inject(lifecycle.NewManager(client))
	inj.Inject(invoke.NewService(client))

	return nil
}

// OnStop implements node.Initializer. It closes the database and flushes the
// spans of the tracers.
func (controller) OnStop(inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = db.Close()
	if err != nil {
		return xerrors.Errorf("while closing db: %v", err)
	}

	err = tracing.CloseAll()
	if err != nil {
		return xerrors.Errorf("tracing: %v", err)
	}

	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}

	return config.Load(path)
}

func newClient(network *local.Network, cfg config.Config, signer ed25519.Signer) (ledger.Client, error) {
	tracer, err := tracing.GetTracer(tracing.ServiceName)
	if err != nil {
		return nil, xerrors.Errorf("failed to get tracer: %v", err)
	}

	client := local.NewClient(network, cfg.OperatorID, signer,
		local.WithTimeout(cfg.RequestTimeout),
		local.WithMaxTransactionFee(cfg.MaxTransactionFee),
		local.WithMaxQueryPayment(cfg.MaxQueryPayment))

	return traced.NewClient(client, tracer), nil
}
