// Package ucli implements the cli builder on top of urfave/cli.
package ucli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"
	"github.com/indemnify/cman/cli"
)

// Builder builds an urfave application out of the registered commands.
//
// - implements cli.Builder
type Builder struct {
	name     string
	usage    string
	action   cli.Action
	flags    []cli.Flag
	commands []*cmdBuilder
}

// NewBuilder returns a builder for an application with the given name and
// usage line. The action runs when no command is given and can be nil. The
// flags are global and visible from every command.
func NewBuilder(name, usage string, action cli.Action, flags ...cli.Flag) cli.Builder {
	return &Builder{
		name:   name,
		usage:  usage,
		action: action,
		flags:  flags,
	}
}

// Build implements cli.Builder. Commands keep the order of registration.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:                 b.name,
		Usage:                b.usage,
		EnableBashCompletion: true,
		Commands:             buildCommands(b.commands),
		Action:               makeAction(b.action),
		Flags:                buildFlags(b.flags),
	}

	app.Setup()

	return app
}

// SetCommand implements cli.Builder. A command registered twice under the same
// name returns the existing builder so that modules can share a parent.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	for _, cmd := range b.commands {
		if cmd.name == name {
			return cmd
		}
	}

	cmd := &cmdBuilder{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// cmdBuilder collects the properties of one command.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name        string
	description string
	action      cli.Action
	flags       []cli.Flag
	subcommands []*cmdBuilder
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.description = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = flags
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (b *cmdBuilder) SetSubCommand(name string) cli.CommandBuilder {
	for _, sub := range b.subcommands {
		if sub.name == name {
			return sub
		}
	}

	sub := &cmdBuilder{name: name}
	b.subcommands = append(b.subcommands, sub)

	return sub
}

func buildFlags(flags []cli.Flag) []urfave.Flag {
	res := make([]urfave.Flag, len(flags))

	for i, f := range flags {
		switch e := f.(type) {
		case cli.StringFlag:
			res[i] = &urfave.StringFlag{
				Name:     e.Name,
				Usage:    e.Usage,
				Required: e.Required,
				Value:    e.Value,
				EnvVars:  envVars(e.Env),
			}
		case cli.DurationFlag:
			res[i] = &urfave.DurationFlag{
				Name:     e.Name,
				Usage:    e.Usage,
				Required: e.Required,
				Value:    e.Value,
				EnvVars:  envVars(e.Env),
			}
		case cli.IntFlag:
			res[i] = &urfave.IntFlag{
				Name:     e.Name,
				Usage:    e.Usage,
				Required: e.Required,
				Value:    e.Value,
				EnvVars:  envVars(e.Env),
			}
		case cli.BoolFlag:
			res[i] = &urfave.BoolFlag{
				Name:    e.Name,
				Usage:   e.Usage,
				Value:   e.Value,
				EnvVars: envVars(e.Env),
			}
		default:
			panic(fmt.Sprintf("flag type '%T' not supported", f))
		}
	}

	return res
}

func envVars(name string) []string {
	if name == "" {
		return nil
	}

	return []string{name}
}

func buildCommands(cmds []*cmdBuilder) []*urfave.Command {
	commands := make([]*urfave.Command, len(cmds))

	for i, cmd := range cmds {
		commands[i] = &urfave.Command{
			Name:        cmd.name,
			Usage:       cmd.description,
			Action:      makeAction(cmd.action),
			Flags:       buildFlags(cmd.flags),
			Subcommands: buildCommands(cmd.subcommands),
		}
	}

	return commands
}

func makeAction(action cli.Action) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return action(ctx)
	}
}
