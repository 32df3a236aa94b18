package node

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/indemnify/cman"
	"github.com/indemnify/cman/cli"
	"github.com/indemnify/cman/cli/ucli"
	"github.com/rs/xid"
	urfave "github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
)

// ConfigFlag is the global flag holding the path to the folder of the node,
// where the daemon socket and the ledger database live.
const ConfigFlag = "config"

// DefaultConfigDir is the folder used when the config flag is not given.
const DefaultConfigDir = ".cman"

// CLIBuilder builds the CLI that starts and controls a node.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	daemonFactory DaemonFactory
	injector      Injector
	actions       *actionMap
	startFlags    []cli.Flag
	inits         []Initializer

	// The daemon runs until a signal is received. Tests provide their own
	// channel and signal notifications are left untouched.
	notify bool
	sigs   chan os.Signal
}

// NewBuilder returns a builder writing the output of the commands to the
// standard output.
func NewBuilder(inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(nil, nil, inits...)
}

// NewBuilderWithCfg returns a builder with a specific signal channel and
// output. Nil values fall back to the process signals and stdout.
func NewBuilderWithCfg(sigs chan os.Signal, out io.Writer, inits ...Initializer) *CLIBuilder {
	if out == nil {
		out = os.Stdout
	}

	notify := sigs == nil
	if notify {
		sigs = make(chan os.Signal, 1)
	}

	injector := NewInjector()
	actions := &actionMap{}

	builder := ucli.NewBuilder("cman", "deploy and invoke smart contracts", nil,
		cli.StringFlag{
			Name:  ConfigFlag,
			Usage: "path to the folder of the node",
			Value: DefaultConfigDir,
			Env:   cli.EnvName(ConfigFlag),
		})

	return &CLIBuilder{
		Builder:  builder,
		injector: injector,
		actions:  actions,
		daemonFactory: socketFactory{
			injector: injector,
			actions:  actions,
			out:      out,
		},
		notify: notify,
		sigs:   sigs,
		inits:  inits,
	}
}

// SetStartFlags implements node.Builder.
func (b *CLIBuilder) SetStartFlags(flags ...cli.Flag) {
	b.startFlags = append(b.startFlags, flags...)
}

// MakeAction implements node.Builder. The returned action collects the flags
// of the command and its parents and sends them to the daemon.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	index := b.actions.Set(tmpl)

	return func(c cli.Flags) error {
		client, err := b.daemonFactory.ClientFromContext(c)
		if err != nil {
			return xerrors.Errorf("couldn't make client: %v", err)
		}

		fset := make(FlagSet)

		ctx, ok := c.(*urfave.Context)
		if ok {
			lookupFlags(fset, ctx)
		}

		req := Request{
			ID:     xid.New().String(),
			Action: index,
			Flags:  fset,
		}

		err = client.Send(req)
		if err != nil {
			return xerrors.Opaque(err)
		}

		return nil
	}
}

// lookupFlags collects the flags of the application and of every command of
// the lineage. Values are read from the leaf context, which looks them up in
// the closest command that defines them.
func lookupFlags(fset FlagSet, ctx *urfave.Context) {
	var flags []urfave.Flag

	for _, ancestor := range ctx.Lineage() {
		if ancestor.Command != nil {
			flags = append(flags, ancestor.Command.Flags...)
		}

		if ancestor.App != nil {
			flags = append(flags, ancestor.App.Flags...)
		}
	}

	for _, flag := range flags {
		names := flag.Names()
		if len(names) == 0 {
			continue
		}

		name := names[0]

		switch flag.(type) {
		case *urfave.StringFlag:
			fset[name] = ctx.String(name)
		case *urfave.DurationFlag:
			fset[name] = ctx.Duration(name)
		case *urfave.IntFlag:
			fset[name] = ctx.Int(name)
		case *urfave.BoolFlag:
			fset[name] = ctx.Bool(name)
		}
	}
}

// Build implements cli.Builder. It lets the initializers register their
// commands and adds the start command.
func (b *CLIBuilder) Build() cli.Application {
	for _, init := range b.inits {
		init.SetCommands(b)
	}

	cmd := b.SetCommand("start")
	cmd.SetDescription("start the daemon")
	cmd.SetFlags(b.startFlags...)
	cmd.SetAction(b.start)

	return b.Builder.Build()
}

func (b *CLIBuilder) start(flags cli.Flags) error {
	if b.notify {
		signal.Notify(b.sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(b.sigs)
	}

	dir := flags.Path(ConfigFlag)
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return xerrors.Errorf("couldn't make path: %v", err)
		}
	}

	daemon, err := b.daemonFactory.DaemonFromContext(flags)
	if err != nil {
		return xerrors.Errorf("couldn't make daemon: %v", err)
	}

	for _, init := range b.inits {
		err = init.OnStart(flags, b.injector)
		if err != nil {
			return xerrors.Errorf("couldn't run the controller: %v", err)
		}
	}

	// Actions resolve the components of the controllers, so the socket is
	// only opened once they are all started.
	err = daemon.Listen()
	if err != nil {
		return xerrors.Errorf("couldn't start the daemon: %v", err)
	}

	defer daemon.Close()

	cman.Logger.Info().Str("config", dir).Msg("daemon started")

	<-b.sigs

	// Reverse order: services stop before the ledger database they use.
	for i := len(b.inits) - 1; i >= 0; i-- {
		err = b.inits[i].OnStop(b.injector)
		if err != nil {
			return xerrors.Errorf("couldn't stop controller: %v", err)
		}
	}

	cman.Logger.Info().Msg("daemon has been stopped")

	return nil
}

// actionMap assigns an index to each action template. The CLI and the daemon
// are built from the same initializers, so the indexes match on both sides.
type actionMap struct {
	list []ActionTemplate
}

func (m *actionMap) Set(a ActionTemplate) uint16 {
	m.list = append(m.list, a)
	return uint16(len(m.list) - 1)
}

func (m *actionMap) Get(index uint16) ActionTemplate {
	if int(index) >= len(m.list) {
		return nil
	}

	return m.list[index]
}
