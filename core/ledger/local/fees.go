package local

import "github.com/indemnify/cman/core/ledger"

// FeeSchedule defines the price of the requests in tinybars.
type FeeSchedule struct {
	// Transactions is the base fee of each type of transaction.
	Transactions map[ledger.TransactionType]ledger.Amount

	// Queries is the base cost of each type of query.
	Queries map[ledger.QueryType]ledger.Amount

	// PerByte is the price of each byte carried by a transaction, or returned
	// by a bytecode query.
	PerByte ledger.Amount

	// GasPrice is the price of a unit of gas consumed by a contract.
	GasPrice ledger.Amount
}

// DefaultFeeSchedule is the schedule of both networks.
var DefaultFeeSchedule = FeeSchedule{
	Transactions: map[ledger.TransactionType]ledger.Amount{
		ledger.FileCreateType:      50_000_000,
		ledger.FileAppendType:      40_000_000,
		ledger.ContractCreateType:  100_000_000,
		ledger.ContractDeleteType:  7_000_000,
		ledger.ContractExecuteType: 5_000_000,
	},
	Queries: map[ledger.QueryType]ledger.Amount{
		ledger.ContractInfoType:     1_000_000,
		ledger.ContractBytecodeType: 1_000_000,
		ledger.ContractCallType:     2_000_000,
	},
	PerByte:  1_000,
	GasPrice: 100,
}

// TransactionFee returns the fee known before the transaction is applied.
func (s FeeSchedule) TransactionFee(tx ledger.Transaction) ledger.Amount {
	return s.Transactions[tx.Type()] + s.PerByte*ledger.Amount(payloadSize(tx))
}

// GasFee returns the fee of the gas consumed by a contract.
func (s FeeSchedule) GasFee(gas uint64) ledger.Amount {
	return s.GasPrice * ledger.Amount(gas)
}

// QueryCost returns the cost of a query that handles the given number of
// bytes.
func (s FeeSchedule) QueryCost(t ledger.QueryType, size int) ledger.Amount {
	return s.Queries[t] + s.PerByte*ledger.Amount(size)
}

// payloadSize returns the number of bytes of content carried by the
// transaction.
func payloadSize(tx ledger.Transaction) int {
	switch t := tx.(type) {
	case ledger.FileCreate:
		return len(t.Contents) + keySize*len(t.Keys)
	case ledger.FileAppend:
		return len(t.Contents)
	case ledger.ContractCreate:
		return keySize
	case ledger.ContractExecute:
		return len(t.FunctionParameters)
	default:
		return 0
	}
}
