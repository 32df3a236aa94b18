// Package main implements the contract manager daemon and its command line.
//
//	cman start --operator-config cman.yaml
//	cman contract create --bytecode ./contract.bin
//	cman contract call --id 0.0.1001 --function greet
//	cman gateway start --addr 127.0.0.1:8080
//
// The operator is configured by the OPERATOR_ID, OPERATOR_KEY and
// HEDERA_NETWORK environment variables, or by the YAML file of the start
// command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/indemnify/cman/cli/node"
	contracts "github.com/indemnify/cman/contracts/controller"
	ledger "github.com/indemnify/cman/core/ledger/local/controller"
	gateway "github.com/indemnify/cman/gateway/http/controller"
)

type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{Writer: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		ledger.NewController(),
		contracts.NewController(),
		gateway.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
