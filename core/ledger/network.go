package ledger

import (
	"strings"

	"golang.org/x/xerrors"
)

// Network is the selector of the ledger network an operator connects to.
type Network string

const (
	// Testnet is the public test network.
	Testnet Network = "testnet"

	// Mainnet is the production network.
	Mainnet Network = "mainnet"
)

// ParseNetwork returns the network for the name. Only the test and the main
// networks are recognized.
func ParseNetwork(name string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(name))) {
	case Testnet:
		return Testnet, nil
	case Mainnet:
		return Mainnet, nil
	default:
		return "", xerrors.Errorf("unknown network '%s': %w", name, ErrInvalidArgument)
	}
}

// LedgerID returns the identifier of the ledger for the network.
func (n Network) LedgerID() string {
	switch n {
	case Mainnet:
		return "0x00"
	case Testnet:
		return "0x01"
	default:
		return ""
	}
}
