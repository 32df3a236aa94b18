// Package controller registers the command that starts the HTTP gateway in
// the daemon.
package controller

import (
	"github.com/indemnify/cman/cli"
	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/gateway/http"
	"golang.org/x/xerrors"
)

// DefaultAddr is the address of the gateway when none is given.
const DefaultAddr = "127.0.0.1:8080"

const addrFlag = "addr"

// NewController returns the initializer of the gateway.
func NewController() node.Initializer {
	return controller{}
}

// controller starts the gateway on demand and stops it with the daemon.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("gateway")
	cmd.SetDescription("serve the contract operations over HTTP")

	sub := cmd.SetSubCommand("start")
	sub.SetDescription("start the HTTP gateway and the metrics handler")
	sub.SetFlags(cli.StringFlag{
		Name:  addrFlag,
		Usage: "address of the gateway",
		Value: DefaultAddr,
		Env:   cli.EnvName("gateway-" + addrFlag),
	})
	sub.SetAction(builder.MakeAction(startAction{}))
}

// OnStart implements node.Initializer.
func (controller) OnStart(cli.Flags, node.Injector) error {
	return nil
}

// OnStop implements node.Initializer. It stops the gateway if it was started.
func (controller) OnStop(inj node.Injector) error {
	var srv *http.Server

	err := inj.Resolve(&srv)
	if err != nil {
		return nil
	}

	err = srv.Stop()
	if err != nil {
		return xerrors.Errorf("gateway: %v", err)
	}

	return nil
}
