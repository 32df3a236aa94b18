// Package cli describes the command line of the contract manager without
// tying it to a parser.
//
// The ledger, the contract operations and the gateway each register their
// commands and flags on the Builder. The actions only read their flags through
// the Flags interface, so that the same action runs in the process of the
// command line or in the daemon that received the forwarded flags. A flag
// missing from the command line can be provided by its environment variable:
//
// 	cmd := builder.SetCommand("contract")
// 	sub := cmd.SetSubCommand("info")
// 	sub.SetFlags(StringFlag{Name: "id", Required: true, Env: EnvName("contract-id")})
// 	sub.SetAction(func(flags Flags) error {
// 		fmt.Println(flags.String("id"))
// 		return nil
// 	})
//
// 	builder.Build().Run(os.Args)
package cli

import (
	"time"
)

// Builder collects the commands of the modules and produces the command line
// once they are all registered.
type Builder interface {
	// SetCommand creates a new command with the given name and returns its
	// builder.
	SetCommand(name string) CommandBuilder

	// Build returns the application.
	Build() Application
}

// Application runs the command line with the arguments of the process.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder defines a command, or a group of subcommands like
// "contract".
type CommandBuilder interface {
	// SetDescription sets the text printed by the help of the command.
	SetDescription(value string)

	// SetFlags appends flags to the command. Flags of a group are visible to
	// its subcommands.
	SetFlags(...Flag)

	// SetAction sets what the command does. A group usually has none.
	SetAction(Action)

	// SetSubCommand returns the subcommand of the name, created on first use.
	SetSubCommand(name string) CommandBuilder
}

// Action runs a command with its parsed flags.
type Action func(Flags) error

// Flag is implemented by the flag definitions of this package only.
type Flag interface {
	Flag()
}

// Flags reads the value of a flag by its name. A flag that is not defined
// returns the zero value.
type Flags interface {
	String(name string) string

	Duration(name string) time.Duration

	// Path returns the value of a string flag naming a file or a folder.
	Path(name string) string

	Int(name string) int

	Bool(name string) bool
}
