package controller

import (
	"fmt"

	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/ledger/local"
	"golang.org/x/xerrors"
)

// balanceAction prints the balance of an account of the local network.
//
// - implements node.ActionTemplate
type balanceAction struct{}

// Execute implements node.ActionTemplate.
func (balanceAction) Execute(ctx node.Context) error {
	var network *local.Network
	err := ctx.Injector.Resolve(&network)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	var client ledger.Client
	err = ctx.Injector.Resolve(&client)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	account := client.GetOperator().AccountID

	text := ctx.Flags.String("account")
	if text != "" {
		account, err = ledger.ParseAccountID(text)
		if err != nil {
			return xerrors.Errorf("invalid account: %v", err)
		}
	}

	balance, err := network.Balance(account)
	if err != nil {
		return xerrors.Errorf("failed to read balance of %v: %v", account, err)
	}

	fmt.Fprintf(ctx.Out, "%v: %v", account, balance)

	return nil
}
