package controller

import (
	"fmt"

	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/gateway/http"
	"golang.org/x/xerrors"
)

// startAction starts the gateway with the injected services.
//
// - implements node.ActionTemplate
type startAction struct{}

// Execute implements node.ActionTemplate.
func (startAction) Execute(ctx node.Context) error {
	var running *http.Server
	if ctx.Injector.Resolve(&running) == nil && running.GetAddr() != nil {
		return xerrors.Errorf("gateway already running on %v", running.GetAddr())
	}

	var lc http.Lifecycle
	err := ctx.Injector.Resolve(&lc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var inv http.Invoker
	err = ctx.Injector.Resolve(&inv)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	srv := http.NewServer(ctx.Flags.String(addrFlag), lc, inv)

	err = srv.Listen()
	if err != nil {
		return xerrors.Errorf("failed to start gateway: %v", err)
	}

	ctx.Injector.Inject(srv)

	fmt.Fprintf(ctx.Out, "gateway listening on %v, metrics on %s", srv.GetAddr(), http.MetricsPath)

	return nil
}
