// Package ledger defines the abstraction of the ledger network that hosts the
// files and the contracts.
//
// The network is reached through a client that provides four capabilities:
// submitting a signed transaction, fetching the receipt of a transaction,
// estimating the cost of a query, and executing a paid query. Every call blocks
// until the network answers or the client deadline expires.
//
// Failures are reported with the types of errors.go so that a caller can tell a
// rejected request (PrecheckError) from a failed execution (ReceiptError) and
// from an unknown outcome (TimeoutError).
package ledger

import (
	"fmt"
	"time"

	"github.com/indemnify/cman/crypto"
	"golang.org/x/xerrors"
)

// Client is the interface of the ledger network as seen by an operator.
type Client interface {
	// GetOperator returns the account paying for the requests and its public
	// key.
	GetOperator() Operator

	// SubmitTransaction signs and sends the transaction. It returns once the
	// node has accepted it, or a PrecheckError if it was rejected.
	SubmitTransaction(tx Transaction) (TransactionID, error)

	// GetReceipt waits for the transaction to reach a final status and returns
	// its receipt.
	GetReceipt(id TransactionID) (Receipt, error)

	// GetQueryCost returns the amount the network asks to answer the query.
	GetQueryCost(q Query) (Amount, error)

	// SubmitQuery executes the query with the given payment attached.
	SubmitQuery(q Query, payment Amount) (Result, error)
}

// Operator is the identity paying for and signing the requests.
type Operator struct {
	AccountID AccountID
	PublicKey crypto.PublicKey
}

// TransactionID identifies a transaction with its payer and the time from
// which it is valid.
type TransactionID struct {
	AccountID  AccountID
	ValidStart time.Time
}

// String implements fmt.Stringer. It prints the identifier as
// shard.realm.num@seconds.nanos.
func (id TransactionID) String() string {
	return fmt.Sprintf("%v@%d.%09d", id.AccountID, id.ValidStart.Unix(),
		id.ValidStart.Nanosecond())
}

// Receipt is the final status of a transaction. The identifiers of the created
// entities are set when relevant.
type Receipt struct {
	Status        Status
	TransactionID TransactionID
	FileID        *FileID
	ContractID    *ContractID
}

// Execute submits the transaction and waits for its receipt. A receipt with a
// status other than success is returned alongside a ReceiptError. No retry is
// attempted.
func Execute(client Client, tx Transaction) (Receipt, error) {
	id, err := client.SubmitTransaction(tx)
	if err != nil {
		return Receipt{}, xerrors.Errorf("failed to submit %v: %w", tx.Type(), err)
	}

	receipt, err := client.GetReceipt(id)
	if err != nil {
		return Receipt{}, xerrors.Errorf("failed to get receipt of %v: %w", id, err)
	}

	if receipt.Status != StatusSuccess {
		return receipt, &ReceiptError{Status: receipt.Status, TransactionID: id}
	}

	return receipt, nil
}

// TransactionType is the kind of a transaction.
type TransactionType string

const (
	// FileCreateType creates a file.
	FileCreateType TransactionType = "FileCreate"
	// FileAppendType appends bytes to an existing file.
	FileAppendType TransactionType = "FileAppend"
	// ContractCreateType deploys a contract from a file.
	ContractCreateType TransactionType = "ContractCreate"
	// ContractDeleteType deletes a contract.
	ContractDeleteType TransactionType = "ContractDelete"
	// ContractExecuteType calls a contract function that can change its state.
	ContractExecuteType TransactionType = "ContractExecute"
)

// Transaction is a request that changes the state of the ledger. The payer is
// charged a fee bounded by the maximum transaction fee.
type Transaction interface {
	// Type returns the kind of transaction.
	Type() TransactionType

	// GetMaxFee returns the maximum fee the payer accepts to pay.
	GetMaxFee() Amount
}

// FileCreate creates a file with some initial content. The keys are required to
// sign any further modification of the file.
//
// - implements ledger.Transaction
type FileCreate struct {
	Contents       []byte             `json:"contents"`
	Keys           []crypto.PublicKey `json:"keys"`
	ExpirationTime time.Time          `json:"expirationTime"`
	MaxFee         Amount             `json:"maxFee"`
}

// Type implements ledger.Transaction.
func (FileCreate) Type() TransactionType { return FileCreateType }

// GetMaxFee implements ledger.Transaction.
func (tx FileCreate) GetMaxFee() Amount { return tx.MaxFee }

// FileAppend appends the content at the end of an existing file.
//
// - implements ledger.Transaction
type FileAppend struct {
	FileID   FileID `json:"fileId"`
	Contents []byte `json:"contents"`
	MaxFee   Amount `json:"maxFee"`
}

// Type implements ledger.Transaction.
func (FileAppend) Type() TransactionType { return FileAppendType }

// GetMaxFee implements ledger.Transaction.
func (tx FileAppend) GetMaxFee() Amount { return tx.MaxFee }

// ContractCreate deploys the contract whose hex encoded bytecode is stored in
// the file. The admin key is required to delete the contract later on.
//
// - implements ledger.Transaction
type ContractCreate struct {
	BytecodeFileID  FileID           `json:"bytecodeFileId"`
	AdminKey        crypto.PublicKey `json:"adminKey"`
	Gas             uint64           `json:"gas"`
	AutoRenewPeriod time.Duration    `json:"autoRenewPeriod"`
	MaxFee          Amount           `json:"maxFee"`
}

// Type implements ledger.Transaction.
func (ContractCreate) Type() TransactionType { return ContractCreateType }

// GetMaxFee implements ledger.Transaction.
func (tx ContractCreate) GetMaxFee() Amount { return tx.MaxFee }

// ContractDelete deletes a contract and transfers its remaining balance to the
// transfer account.
//
// - implements ledger.Transaction
type ContractDelete struct {
	ContractID        ContractID `json:"contractId"`
	TransferAccountID AccountID  `json:"transferAccountId"`
	MaxFee            Amount     `json:"maxFee"`
}

// Type implements ledger.Transaction.
func (ContractDelete) Type() TransactionType { return ContractDeleteType }

// GetMaxFee implements ledger.Transaction.
func (tx ContractDelete) GetMaxFee() Amount { return tx.MaxFee }

// ContractExecute calls a function of a contract. The function parameters are
// the ABI encoded call data.
//
// - implements ledger.Transaction
type ContractExecute struct {
	ContractID         ContractID `json:"contractId"`
	Gas                uint64     `json:"gas"`
	FunctionParameters []byte     `json:"functionParameters"`
	MaxFee             Amount     `json:"maxFee"`
}

// Type implements ledger.Transaction.
func (ContractExecute) Type() TransactionType { return ContractExecuteType }

// GetMaxFee implements ledger.Transaction.
func (tx ContractExecute) GetMaxFee() Amount { return tx.MaxFee }

// QueryType is the kind of a query.
type QueryType string

const (
	// ContractInfoType reads the metadata of a contract.
	ContractInfoType QueryType = "ContractGetInfo"
	// ContractBytecodeType reads the runtime bytecode of a contract.
	ContractBytecodeType QueryType = "ContractGetBytecode"
	// ContractCallType calls a function of a contract without changing its
	// state.
	ContractCallType QueryType = "ContractCallLocal"
)

// Query is a paid read request.
type Query interface {
	// Type returns the kind of query.
	Type() QueryType
}

// ContractInfoQuery reads the metadata of a contract.
//
// - implements ledger.Query
type ContractInfoQuery struct {
	ContractID ContractID
}

// Type implements ledger.Query.
func (ContractInfoQuery) Type() QueryType { return ContractInfoType }

// ContractBytecodeQuery reads the runtime bytecode of a contract.
//
// - implements ledger.Query
type ContractBytecodeQuery struct {
	ContractID ContractID
}

// Type implements ledger.Query.
func (ContractBytecodeQuery) Type() QueryType { return ContractBytecodeType }

// ContractCallQuery calls a function of a contract on a single node. The state
// changes are discarded.
//
// - implements ledger.Query
type ContractCallQuery struct {
	ContractID         ContractID
	Gas                uint64
	FunctionParameters []byte
}

// Type implements ledger.Query.
func (ContractCallQuery) Type() QueryType { return ContractCallType }

// Result is the answer of the network to a paid query.
type Result interface {
	// QueryType returns the type of query that produced the result.
	QueryType() QueryType
}

// TokenRelationship describes the association between a contract and a token.
type TokenRelationship struct {
	TokenID TokenID `json:"tokenId"`
	Symbol  string  `json:"symbol"`
	Balance uint64  `json:"balance"`
	Frozen  bool    `json:"frozen"`
}

// ContractInfo is the metadata of a contract.
//
// - implements ledger.Result
type ContractInfo struct {
	ContractID         ContractID                    `json:"contractId"`
	AccountID          AccountID                     `json:"accountId"`
	ContractAccountID  string                        `json:"contractAccountId"`
	AdminKey           crypto.PublicKey              `json:"adminKey"`
	ExpirationTime     time.Time                     `json:"expirationTime"`
	AutoRenewPeriod    time.Duration                 `json:"autoRenewPeriod"`
	Storage            int64                         `json:"storage"`
	Memo               string                        `json:"memo"`
	Balance            Amount                        `json:"balance"`
	Deleted            bool                          `json:"deleted"`
	LedgerID           string                        `json:"ledgerId"`
	TokenRelationships map[TokenID]TokenRelationship `json:"tokenRelationships"`
}

// QueryType implements ledger.Result.
func (ContractInfo) QueryType() QueryType { return ContractInfoType }

// ContractBytecode is the runtime bytecode of a contract.
//
// - implements ledger.Result
type ContractBytecode []byte

// QueryType implements ledger.Result.
func (ContractBytecode) QueryType() QueryType { return ContractBytecodeType }

// ContractFunctionResult is the output of a contract function call. When the
// contract reverted, the error message is set and the result may contain the
// encoded revert reason.
//
// - implements ledger.Result
type ContractFunctionResult struct {
	ContractID   ContractID
	Result       []byte
	ErrorMessage string
	GasUsed      uint64
}

// QueryType implements ledger.Result.
func (ContractFunctionResult) QueryType() QueryType { return ContractCallType }
