package local

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/indemnify/cman/core/abi"
	"github.com/indemnify/cman/core/ledger"
	"golang.org/x/xerrors"
)

// execution is the outcome of a run of the virtual machine.
type execution struct {
	Output  []byte
	Address common.Address
	GasUsed uint64
	Err     error
}

// status returns the status of a transaction that ran the execution.
func (e execution) status() ledger.Status {
	switch {
	case e.Err == nil:
		return ledger.StatusSuccess
	case xerrors.Is(e.Err, vm.ErrExecutionReverted):
		return ledger.StatusContractRevertExecuted
	case xerrors.Is(e.Err, vm.ErrOutOfGas), xerrors.Is(e.Err, vm.ErrCodeStoreOutOfGas):
		return ledger.StatusInsufficientGas
	default:
		return ledger.StatusContractExecutionException
	}
}

// errorMessage returns the message of a failed execution, completed by the
// revert reason when the contract provided one.
func (e execution) errorMessage() string {
	if e.Err == nil {
		return ""
	}

	msg := e.Err.Error()

	reason, ok := abi.RevertReason(e.Output)
	if ok {
		msg += ": " + reason
	}

	return msg
}

// SlotSize is the number of bytes accounted for a storage slot of a contract,
// which is the key and the value.
const SlotSize = 64

// machine is the Ethereum virtual machine that runs the contracts. It is not
// safe for concurrent use.
type machine struct {
	state *state.StateDB
	hooks *tracing.Hooks

	// slots are the storage keys written by each contract. A key whose value
	// went back to zero is kept but not accounted.
	slots map[common.Address]map[common.Hash]struct{}
}

func newMachine() (*machine, error) {
	st, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, xerrors.Errorf("failed to create state: %v", err)
	}

	m := &machine{
		state: st,
		slots: make(map[common.Address]map[common.Hash]struct{}),
	}

	m.hooks = &tracing.Hooks{OnOpcode: m.onOpcode}

	return m, nil
}

func (m *machine) config(st *state.StateDB, origin common.Address, gas uint64, at time.Time) *runtime.Config {
	cfg := &runtime.Config{
		Origin:   origin,
		GasLimit: gas,
		Time:     uint64(at.Unix()),
		State:    st,
	}

	if st == m.state {
		cfg.EVMConfig.Tracer = m.hooks
	}

	return cfg
}

// onOpcode records the key of every storage write. The key is on top of the
// stack when SSTORE is about to run.
func (m *machine) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext,
	rData []byte, depth int, err error) {

	if vm.OpCode(op) != vm.SSTORE || err != nil {
		return
	}

	stack := scope.StackData()
	if len(stack) == 0 {
		return
	}

	addr := scope.Address()

	keys := m.slots[addr]
	if keys == nil {
		keys = make(map[common.Hash]struct{})
		m.slots[addr] = keys
	}

	keys[common.Hash(stack[len(stack)-1].Bytes32())] = struct{}{}
}

// create deploys the contract with the init code.
func (m *machine) create(origin common.Address, code []byte, gas uint64, at time.Time) execution {
	out, addr, left, err := runtime.Create(code, m.config(m.state, origin, gas, at))

	return execution{Output: out, Address: addr, GasUsed: gas - left, Err: err}
}

// call runs a function of the contract and keeps the changes of the state.
func (m *machine) call(origin, addr common.Address, input []byte, gas uint64, at time.Time) execution {
	out, left, err := runtime.Call(addr, input, m.config(m.state, origin, gas, at))

	return execution{Output: out, Address: addr, GasUsed: gas - left, Err: err}
}

// staticCall runs a function of the contract on a copy of the state, so that
// the changes are discarded.
func (m *machine) staticCall(origin, addr common.Address, input []byte, gas uint64, at time.Time) execution {
	out, left, err := runtime.Call(addr, input, m.config(m.state.Copy(), origin, gas, at))

	return execution{Output: out, Address: addr, GasUsed: gas - left, Err: err}
}

// code returns the runtime bytecode of the contract.
func (m *machine) code(addr common.Address) []byte {
	return m.state.GetCode(addr)
}

// storageSize returns the size of the runtime code of the contract and of its
// non-empty storage slots.
func (m *machine) storageSize(addr common.Address) int64 {
	size := int64(m.state.GetCodeSize(addr))

	for key := range m.slots[addr] {
		if m.state.GetState(addr, key) != (common.Hash{}) {
			size += SlotSize
		}
	}

	return size
}

func (m *machine) snapshot() int {
	return m.state.Snapshot()
}

func (m *machine) revert(id int) {
	m.state.RevertToSnapshot(id)
}

// commit finalizes the changes of the last transaction.
func (m *machine) commit() {
	m.state.Finalise(true)
}

// replay applies a journal entry.
func (m *machine) replay(entry journalEntry) error {
	origin := common.HexToAddress(entry.Origin)
	at := time.Unix(entry.Time, 0)

	switch entry.Kind {
	case journalCreate:
		m.create(origin, entry.Input, entry.Gas, at)
	case journalExecute:
		m.call(origin, common.HexToAddress(entry.Contract), entry.Input, entry.Gas, at)
	default:
		return xerrors.Errorf("unknown journal entry '%s'", entry.Kind)
	}

	m.commit()

	return nil
}

// accountAddress returns the address of an account on the virtual machine,
// which is the number of the account in the last bytes.
func accountAddress(id ledger.AccountID) common.Address {
	buffer := make([]byte, 20)
	binary.BigEndian.PutUint32(buffer[:4], uint32(id.Shard))
	binary.BigEndian.PutUint64(buffer[4:12], uint64(id.Realm))
	binary.BigEndian.PutUint64(buffer[12:], uint64(id.Num))

	return common.BytesToAddress(buffer)
}
