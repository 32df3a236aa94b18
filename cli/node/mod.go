// Package node builds the command line of a long running contract manager.
//
// The "start" command runs a daemon that owns the ledger client and the
// contract services. Every other command registered through MakeAction is
// forwarded to the daemon over a unix socket, executed there against the
// injected services, and its output is streamed back to the terminal.
package node

import (
	"io"

	"github.com/indemnify/cman/cli"
)

// Builder is provided to the initializers so that they can register their
// commands and the actions executed by the daemon.
type Builder interface {
	// SetCommand creates a new command and returns its builder.
	SetCommand(name string) cli.CommandBuilder

	// SetStartFlags appends flags to the start command.
	SetStartFlags(...cli.Flag)

	// MakeAction creates a CLI action that forwards the flags to the daemon
	// where the template is executed.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is the part of an action executed on the daemon.
type ActionTemplate interface {
	// Execute processes a command received from the CLI on the daemon.
	Execute(Context) error
}

// Context is given to an action executed on the daemon. Out is streamed to
// the terminal of the caller.
type Context struct {
	RequestID string
	Injector  Injector
	Flags     cli.Flags
	Out       io.Writer
}

// Injector is a dependency injection abstraction.
type Injector interface {
	// Resolve populates the input with the dependency if any compatible exists.
	Resolve(interface{}) error

	// Inject stores the dependency to be resolved later on.
	Inject(interface{})
}

// Initializer is implemented by the modules that contribute commands and
// components to the node.
type Initializer interface {
	// SetCommands populates the builder with the commands of the module.
	SetCommands(Builder)

	// OnStart starts the components of the module and injects them.
	OnStart(cli.Flags, Injector) error

	// OnStop stops the components and releases the resources.
	OnStop(Injector) error
}

// Client sends a request to the daemon.
type Client interface {
	Send(Request) error
}

// Daemon listens for the requests of the clients.
type Daemon interface {
	Listen() error
	Close() error
}

// DaemonFactory creates the daemon and its clients out of the flags.
type DaemonFactory interface {
	ClientFromContext(cli.Flags) (Client, error)
	DaemonFromContext(cli.Flags) (Daemon, error)
}
