// Package controller registers the contract commands of the daemon.
//
// 	cman contract create --bytecode <file>
// 	cman contract delete --id <contract>
// 	cman contract info --id <contract>
// 	cman contract bytecode --id <contract>
// 	cman contract statesize --id <contract>
// 	cman contract execute --id <contract> --function <name> --arg <value>
// 	cman contract call --id <contract> --function <name> --arg <value>
//
// The services are injected by the ledger controller.
package controller

import (
	"github.com/indemnify/cman/cli"
	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/contracts/invoke"
	"github.com/indemnify/cman/core/ledger"
)

const (
	bytecodeFlag = "bytecode"
	hexFlag      = "hex"
	idFlag       = "id"
	functionFlag = "function"
	argFlag      = "arg"
)

// Lifecycle is the set of operations on the contracts themselves.
type Lifecycle interface {
	Create(bytecode string) (ledger.ContractID, error)
	Delete(id string) (bool, error)
	Info(id string) (ledger.ContractInfo, error)
	Bytecode(id string) ([]byte, error)
	StateSize(id string) (int64, error)
}

// Invoker is the set of operations that run the functions of a contract.
type Invoker interface {
	Execute(req invoke.CallRequest) (bool, error)
	Call(req invoke.CallRequest) (string, error)
}

// NewController returns the initializer of the contract commands.
func NewController() node.Initializer {
	return controller{}
}

// controller only contributes commands. The services it uses are injected by
// the ledger controller.
//
// - implements node.Initializer
type controller struct{}

// SetCommands implements node.Initializer.
func (controller) SetCommands(builder node.Builder) {
	idFlagDef := cli.StringFlag{
		Name:     idFlag,
		Usage:    "contract as shard.realm.num",
		Required: true,
	}

	invokeFlags := []cli.Flag{
		idFlagDef,
		cli.StringFlag{
			Name:     functionFlag,
			Usage:    "name of the function",
			Required: true,
		},
		cli.StringFlag{
			Name:  argFlag,
			Usage: "string argument of the function",
		},
	}

	cmd := builder.SetCommand("contract")
	cmd.SetDescription("deploy, inspect and invoke contracts")

	sub := cmd.SetSubCommand("create")
	sub.SetDescription("deploy a contract and print its identifier")
	sub.SetFlags(
		cli.StringFlag{
			Name:  bytecodeFlag,
			Usage: "file with the hex encoded bytecode, read by the daemon",
		},
		cli.StringFlag{
			Name:  hexFlag,
			Usage: "hex encoded bytecode, instead of a file",
		},
	)
	sub.SetAction(builder.MakeAction(createAction{}))

	sub = cmd.SetSubCommand("delete")
	sub.SetDescription("delete a contract, its balance goes to the operator")
	sub.SetFlags(idFlagDef)
	sub.SetAction(builder.MakeAction(deleteAction{}))

	sub = cmd.SetSubCommand("info")
	sub.SetDescription("print the metadata of a contract")
	sub.SetFlags(idFlagDef)
	sub.SetAction(builder.MakeAction(infoAction{}))

	sub = cmd.SetSubCommand("bytecode")
	sub.SetDescription("print the runtime bytecode of a contract")
	sub.SetFlags(idFlagDef)
	sub.SetAction(builder.MakeAction(bytecodeAction{}))

	sub = cmd.SetSubCommand("statesize")
	sub.SetDescription("print the size of the state of a contract")
	sub.SetFlags(idFlagDef)
	sub.SetAction(builder.MakeAction(stateSizeAction{}))

	sub = cmd.SetSubCommand("execute")
	sub.SetDescription("run a function in a transaction")
	sub.SetFlags(invokeFlags...)
	sub.SetAction(builder.MakeAction(executeAction{}))

	sub = cmd.SetSubCommand("call")
	sub.SetDescription("run a function in a query and print the string it returns")
	sub.SetFlags(invokeFlags...)
	sub.SetAction(builder.MakeAction(callAction{}))
}

// OnStart implements node.Initializer.
func (controller) OnStart(cli.Flags, node.Injector) error {
	return nil
}

// OnStop implements node.Initializer.
func (controller) OnStop(node.Injector) error {
	return nil
}
