package controller

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/contracts/invoke"
	"golang.org/x/xerrors"
)

// createAction deploys the bytecode of a file or of the hex flag.
//
// - implements node.ActionTemplate
type createAction struct{}

// Execute implements node.ActionTemplate.
func (createAction) Execute(ctx node.Context) error {
	lc, err := resolveLifecycle(ctx)
	if err != nil {
		return err
	}

	bytecode := ctx.Flags.String(hexFlag)

	path := ctx.Flags.String(bytecodeFlag)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return xerrors.Errorf("failed to read bytecode: %v", err)
		}

		bytecode = string(data)
	}

	id, err := lc.Create(bytecode)
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, id)

	return nil
}

// deleteAction deletes a contract.
//
// - implements node.ActionTemplate
type deleteAction struct{}

// Execute implements node.ActionTemplate.
func (deleteAction) Execute(ctx node.Context) error {
	lc, err := resolveLifecycle(ctx)
	if err != nil {
		return err
	}

	deleted, err := lc.Delete(ctx.Flags.String(idFlag))
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, deleted)

	return nil
}

// infoAction prints the metadata of a contract in JSON.
//
// - implements node.ActionTemplate
type infoAction struct{}

// Execute implements node.ActionTemplate.
func (infoAction) Execute(ctx node.Context) error {
	lc, err := resolveLifecycle(ctx)
	if err != nil {
		return err
	}

	info, err := lc.Info(ctx.Flags.String(idFlag))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to encode info: %v", err)
	}

	ctx.Out.Write(data)

	return nil
}

// bytecodeAction prints the runtime bytecode of a contract in hex.
//
// - implements node.ActionTemplate
type bytecodeAction struct{}

// Execute implements node.ActionTemplate.
func (bytecodeAction) Execute(ctx node.Context) error {
	lc, err := resolveLifecycle(ctx)
	if err != nil {
		return err
	}

	bytecode, err := lc.Bytecode(ctx.Flags.String(idFlag))
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, hex.EncodeToString(bytecode))

	return nil
}

// stateSizeAction prints the size of the state of a contract.
//
// - implements node.ActionTemplate
type stateSizeAction struct{}

// Execute implements node.ActionTemplate.
func (stateSizeAction) Execute(ctx node.Context) error {
	lc, err := resolveLifecycle(ctx)
	if err != nil {
		return err
	}

	size, err := lc.StateSize(ctx.Flags.String(idFlag))
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, size)

	return nil
}

// executeAction runs a function in a transaction.
//
// - implements node.ActionTemplate
type executeAction struct{}

// Execute implements node.ActionTemplate.
func (executeAction) Execute(ctx node.Context) error {
	inv, req, err := prepareInvocation(ctx)
	if err != nil {
		return err
	}

	success, err := inv.Execute(req)
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, success)

	return nil
}

// callAction runs a function in a query and prints its result.
//
// - implements node.ActionTemplate
type callAction struct{}

// Execute implements node.ActionTemplate.
func (callAction) Execute(ctx node.Context) error {
	inv, req, err := prepareInvocation(ctx)
	if err != nil {
		return err
	}

	res, err := inv.Call(req)
	if err != nil {
		return err
	}

	fmt.Fprint(ctx.Out, res)

	return nil
}

func resolveLifecycle(ctx node.Context) (Lifecycle, error) {
	var lc Lifecycle

	err := ctx.Injector.Resolve(&lc)
	if err != nil {
		return nil, xerrors.Errorf("injector: %v", err)
	}

	return lc, nil
}

func prepareInvocation(ctx node.Context) (Invoker, invoke.CallRequest, error) {
	var inv Invoker

	err := ctx.Injector.Resolve(&inv)
	if err != nil {
		return nil, invoke.CallRequest{}, xerrors.Errorf("injector: %v", err)
	}

	req, err := invoke.NewCallRequest(ctx.Flags.String(idFlag),
		ctx.Flags.String(functionFlag), ctx.Flags.String(argFlag))
	if err != nil {
		return nil, req, xerrors.Errorf("invalid request: %v", err)
	}

	return inv, req, nil
}
