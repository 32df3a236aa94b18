package ucli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
	"github.com/indemnify/cman/cli"
	"golang.org/x/xerrors"
)

func TestBuilder_Build(t *testing.T) {
	builder := NewBuilder("cman", "manage contracts", nil)
	app := builder.Build().(*urfave.App)

	app.Writer = new(bytes.Buffer)

	require.Equal(t, "cman", app.Name)
	require.Equal(t, "manage contracts", app.Usage)

	err := app.Run([]string{"cman"})
	require.NoError(t, err)
}

func TestBuilder_SetCommand(t *testing.T) {
	builder := NewBuilder("cman", "", nil)

	first := builder.SetCommand("contract")
	builder.SetCommand("gateway")
	again := builder.SetCommand("contract")

	require.Same(t, first, again)

	app := builder.Build().(*urfave.App)

	require.Len(t, app.Commands, 3)
	require.Equal(t, "contract", app.Commands[0].Name)
	require.Equal(t, "gateway", app.Commands[1].Name)
	require.Equal(t, "help", app.Commands[2].Name)
}

func TestCommandBuilder_Run(t *testing.T) {
	builder := NewBuilder("cman", "", nil, cli.StringFlag{Name: "config", Value: ".cman"})

	var id, config string
	var verbose bool

	cmd := builder.SetCommand("contract")
	cmd.SetDescription("contract operations")

	sub := cmd.SetSubCommand("info")
	sub.SetFlags(
		cli.StringFlag{Name: "id", Required: true},
		cli.BoolFlag{Name: "verbose"},
	)
	sub.SetAction(func(flags cli.Flags) error {
		id = flags.String("id")
		verbose = flags.Bool("verbose")
		config = flags.Path("config")
		return nil
	})

	require.Same(t, sub, cmd.SetSubCommand("info"))

	app := builder.Build()

	err := app.Run([]string{"cman", "contract", "info", "--id", "0.0.1001", "--verbose"})
	require.NoError(t, err)
	require.Equal(t, "0.0.1001", id)
	require.True(t, verbose)
	require.Equal(t, ".cman", config)

	sub.SetAction(func(cli.Flags) error {
		return xerrors.New("oops")
	})

	err = builder.Build().Run([]string{"cman", "contract", "info", "--id", "0.0.1001"})
	require.EqualError(t, err, "oops")
}

func TestCommandBuilder_EnvFallback_Run(t *testing.T) {
	t.Setenv("CMAN_GATEWAY_ADDR", "127.0.0.1:9090")
	t.Setenv("CMAN_LATENCY", "250ms")

	builder := NewBuilder("cman", "", nil)

	var addr string
	var latency time.Duration

	sub := builder.SetCommand("gateway").SetSubCommand("start")
	sub.SetFlags(
		cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Env: cli.EnvName("gateway-addr")},
		cli.DurationFlag{Name: "latency", Env: cli.EnvName("latency")},
	)
	sub.SetAction(func(flags cli.Flags) error {
		addr = flags.String("addr")
		latency = flags.Duration("latency")
		return nil
	})

	err := builder.Build().Run([]string{"cman", "gateway", "start"})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", addr)
	require.Equal(t, 250*time.Millisecond, latency)

	// The command line wins over the environment.
	err = builder.Build().Run([]string{"cman", "gateway", "start", "--addr", ":1234"})
	require.NoError(t, err)
	require.Equal(t, ":1234", addr)
}

func TestBuildFlags(t *testing.T) {
	in := []cli.Flag{
		cli.StringFlag{Name: "name1", Usage: "usage1", Required: true, Value: "value1"},
		cli.DurationFlag{Name: "name2", Usage: "usage2", Value: time.Minute},
		cli.IntFlag{Name: "name3", Usage: "usage3", Value: 1},
		cli.BoolFlag{Name: "name4", Usage: "usage4"},
	}

	out := buildFlags(in)
	require.Len(t, out, 4)

	require.Equal(t, "name1", out[0].Names()[0])
	require.Equal(t, "name2", out[1].Names()[0])
	require.Equal(t, "name3", out[2].Names()[0])
	require.Equal(t, "name4", out[3].Names()[0])

	out = buildFlags([]cli.Flag{cli.StringFlag{Name: "config", Env: "CMAN_CONFIG"}})
	require.Equal(t, []string{"CMAN_CONFIG"}, out[0].(*urfave.StringFlag).EnvVars)
	require.Nil(t, envVars(""))
}

func TestBuildFlags_Panic(t *testing.T) {
	defer func() {
		r := recover()
		require.Equal(t, "flag type '<nil>' not supported", r)
	}()

	buildFlags([]cli.Flag{nil})
}

func TestMakeAction(t *testing.T) {
	require.Nil(t, makeAction(nil))

	called := false
	action := makeAction(func(flags cli.Flags) error {
		called = true
		return nil
	})

	err := action(nil)
	require.NoError(t, err)
	require.True(t, called)
}
