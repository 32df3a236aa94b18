package integration

import (
	"path/filepath"
	"testing"

	"github.com/indemnify/cman/contracts/invoke"
	"github.com/indemnify/cman/contracts/lifecycle"
	"github.com/indemnify/cman/core/chunk"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/ledger/local"
	"github.com/indemnify/cman/core/store/kv"
	"github.com/indemnify/cman/core/upload"
	"github.com/indemnify/cman/crypto/ed25519"
	"github.com/indemnify/cman/internal/testing/contracts"
	"github.com/stretchr/testify/require"
)

var operatorID = ledger.AccountID{EntityID: ledger.EntityID{Num: 2}}

// Deploy a counter whose bytecode spans several chunks, invoke it, restart
// the network and delete it.
func TestIntegration_Counter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	signer := ed25519.NewSigner()

	n := newNode(t, path, signer)

	code := contracts.Pad(contracts.Counter(), 7000)
	chunks, err := chunk.Plan([]byte(code), upload.MaxChunkSize)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	id, err := n.manager.Create(code)
	require.NoError(t, err)

	require.Equal(t, "1", n.call(t, id))
	require.Equal(t, "1", n.call(t, id))

	success, err := n.service.Execute(n.request(t, id, "increment"))
	require.NoError(t, err)
	require.True(t, success)

	require.Equal(t, "2", n.call(t, id))

	bytecode, err := n.manager.Bytecode(id.String())
	require.NoError(t, err)
	require.NotEmpty(t, bytecode)

	size, err := n.manager.StateSize(id.String())
	require.NoError(t, err)
	// The counter takes one storage slot.
	require.Equal(t, int64(len(bytecode))+local.SlotSize, size)

	balance, err := n.network.Balance(operatorID)
	require.NoError(t, err)
	require.Less(t, int64(balance), int64(local.DefaultGenesisBalance))

	n.close(t)

	// The state of the contract is rebuilt when the network is opened again.
	n = newNode(t, path, signer)
	defer n.close(t)

	require.Equal(t, "2", n.call(t, id))

	deleted, err := n.manager.Delete(id.String())
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = n.manager.Info(id.String())
	precheck, ok := ledger.IsPrecheck(err)
	require.True(t, ok)
	require.Equal(t, ledger.StatusContractDeleted, precheck.Status)
}

// Deploy a contract that always reverts and check how the failure is reported
// by a transaction and by a query.
func TestIntegration_Revert(t *testing.T) {
	n := newNode(t, filepath.Join(t.TempDir(), "ledger.db"), ed25519.NewSigner())
	defer n.close(t)

	id, err := n.manager.Create(contracts.Reverter("not allowed"))
	require.NoError(t, err)

	_, err = n.service.Execute(n.request(t, id, "set"))
	receipt, ok := ledger.IsReceipt(err)
	require.True(t, ok)
	require.Equal(t, ledger.StatusContractRevertExecuted, receipt.Status)

	_, err = n.service.Call(n.request(t, id, "get"))
	exec, ok := ledger.IsContractExecution(err)
	require.True(t, ok)
	require.Contains(t, exec.Message, "not allowed")
}

// Deploy a greeter on the main network and read its metadata.
func TestIntegration_Greeter(t *testing.T) {
	n := newNode(t, filepath.Join(t.TempDir(), "ledger.db"), ed25519.NewSigner(),
		ledger.Mainnet)
	defer n.close(t)

	id, err := n.manager.Create("0x" + contracts.Greeter("hello"))
	require.NoError(t, err)

	res, err := n.service.Call(n.request(t, id, "greet"))
	require.NoError(t, err)
	require.Equal(t, "hello", res)

	info, err := n.manager.Info(id.String())
	require.NoError(t, err)
	require.Equal(t, id, info.ContractID)
	require.Equal(t, ledger.Mainnet.LedgerID(), info.LedgerID)
	require.False(t, info.Deleted)
}

// -----------------------------------------------------------------------------
// Utility functions

type node struct {
	db      kv.DB
	network *local.Network
	manager lifecycle.Manager
	service invoke.Service
}

func newNode(t *testing.T, path string, signer ed25519.Signer, networks ...ledger.Network) node {
	db, err := kv.New(path)
	require.NoError(t, err)

	selected := ledger.Testnet
	if len(networks) > 0 {
		selected = networks[0]
	}

	network, err := local.Open(db, selected)
	require.NoError(t, err)

	err = network.Genesis(operatorID, signer.GetPublicKey(), local.DefaultGenesisBalance)
	require.NoError(t, err)

	client := local.NewClient(network, operatorID, signer)

	return node{
		db:      db,
		network: network,
		manager: lifecycle.NewManager(client),
		service: invoke.NewService(client),
	}
}

func (n node) request(t *testing.T, id ledger.ContractID, function string) invoke.CallRequest {
	req, err := invoke.NewCallRequest(id.String(), function, "")
	require.NoError(t, err)

	return req
}

func (n node) call(t *testing.T, id ledger.ContractID) string {
	res, err := n.service.Call(n.request(t, id, "get"))
	require.NoError(t, err)

	return res
}

func (n node) close(t *testing.T) {
	require.NoError(t, n.db.Close())
}
