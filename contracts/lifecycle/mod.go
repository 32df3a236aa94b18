// Package lifecycle deploys, inspects and deletes the contracts.
//
// A contract is created from its hex encoded bytecode, which is first uploaded
// as a file because it usually exceeds the size of a single transaction. The
// operator key becomes the admin key of the contract so that the operator can
// delete it later on. The read operations are paid queries.
package lifecycle

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/indemnify/cman"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/query"
	"github.com/indemnify/cman/core/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const (
	// CreateGas is the gas available to the constructor of a contract.
	CreateGas = 100_000_000

	// AutoRenewPeriod is the period after which the contract is renewed with
	// its own balance.
	AutoRenewPeriod = 8_000_000 * time.Second

	// BytecodeMarginFactor is the margin factor of the bytecode queries, whose
	// cost estimation is less reliable than the others.
	BytecodeMarginFactor = 50
)

var (
	// DefaultCreateFee is the maximum fee to create a contract.
	DefaultCreateFee = ledger.Hbar(20)

	// DefaultDeleteFee is the maximum fee to delete a contract. Zero leaves the
	// client apply its own maximum transaction fee.
	DefaultDeleteFee = ledger.Amount(0)
)

var promContracts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "cman_contracts_total",
	Help: "total number of contracts created or deleted",
}, []string{"op"})

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promContracts)
}

// Uploader is the interface of the pipeline that stores the bytecode as a file.
type Uploader interface {
	Upload(payload []byte) (ledger.FileID, error)
}

// QueryExecutor is the interface to run paid queries.
type QueryExecutor interface {
	PayAndExecute(q ledger.Query, marginFactor int64) (ledger.Result, error)
}

// Manager manages the lifecycle of the contracts.
type Manager struct {
	client    ledger.Client
	uploader  Uploader
	executor  QueryExecutor
	createFee ledger.Amount
	deleteFee ledger.Amount
	logger    zerolog.Logger
}

// Option is the type of options to create a manager.
type Option func(*Manager)

// WithUploader sets the upload pipeline of the bytecode.
func WithUploader(u Uploader) Option {
	return func(m *Manager) {
		m.uploader = u
	}
}

// WithQueryExecutor sets the executor of the paid queries.
func WithQueryExecutor(e QueryExecutor) Option {
	return func(m *Manager) {
		m.executor = e
	}
}

// WithCreateFee sets the maximum fee of the creation transaction.
func WithCreateFee(fee ledger.Amount) Option {
	return func(m *Manager) {
		m.createFee = fee
	}
}

// WithDeleteFee sets the maximum fee of the deletion transaction.
func WithDeleteFee(fee ledger.Amount) Option {
	return func(m *Manager) {
		m.deleteFee = fee
	}
}

// NewManager returns a new manager that sends the requests with the client.
func NewManager(client ledger.Client, opts ...Option) Manager {
	m := Manager{
		client:    client,
		uploader:  upload.NewUploader(client),
		executor:  query.NewExecutor(client),
		createFee: DefaultCreateFee,
		deleteFee: DefaultDeleteFee,
		logger:    cman.Logger.With().Str("component", "lifecycle").Logger(),
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// Create uploads the hex encoded bytecode and deploys the contract. It returns
// the identifier of the new contract.
func (m Manager) Create(bytecode string) (ledger.ContractID, error) {
	payload, err := normalizeBytecode(bytecode)
	if err != nil {
		return ledger.ContractID{}, xerrors.Errorf("invalid bytecode: %w", err)
	}

	fileID, err := m.uploader.Upload(payload)
	if err != nil {
		return ledger.ContractID{}, xerrors.Errorf("failed to upload bytecode: %w", err)
	}

	tx := ledger.ContractCreate{
		BytecodeFileID:  fileID,
		AdminKey:        m.client.GetOperator().PublicKey,
		Gas:             CreateGas,
		AutoRenewPeriod: AutoRenewPeriod,
		MaxFee:          m.createFee,
	}

	receipt, err := ledger.Execute(m.client, tx)
	if err != nil {
		return ledger.ContractID{}, xerrors.Errorf("failed to create contract: %w", err)
	}

	if receipt.ContractID == nil {
		return ledger.ContractID{}, xerrors.Errorf("receipt of %v is missing the contract",
			receipt.TransactionID)
	}

	promContracts.WithLabelValues("create").Inc()

	m.logger.Info().
		Stringer("contract", receipt.ContractID).
		Stringer("file", fileID).
		Msg("contract created")

	return *receipt.ContractID, nil
}

// Delete deletes the contract and transfers its balance to the operator
// account. It returns true once the deletion is confirmed.
func (m Manager) Delete(id string) (bool, error) {
	contractID, err := ledger.ParseContractID(id)
	if err != nil {
		return false, err
	}

	tx := ledger.ContractDelete{
		ContractID:        contractID,
		TransferAccountID: m.client.GetOperator().AccountID,
		MaxFee:            m.deleteFee,
	}

	_, err = ledger.Execute(m.client, tx)
	if err != nil {
		return false, xerrors.Errorf("failed to delete contract %v: %w", contractID, err)
	}

	promContracts.WithLabelValues("delete").Inc()

	m.logger.Info().Stringer("contract", contractID).Msg("contract deleted")

	return true, nil
}

// Info returns the metadata of the contract.
func (m Manager) Info(id string) (ledger.ContractInfo, error) {
	contractID, err := ledger.ParseContractID(id)
	if err != nil {
		return ledger.ContractInfo{}, err
	}

	res, err := m.executor.PayAndExecute(ledger.ContractInfoQuery{ContractID: contractID}, query.NoMargin)
	if err != nil {
		return ledger.ContractInfo{}, xerrors.Errorf("failed to get info of %v: %w", contractID, err)
	}

	info, ok := res.(ledger.ContractInfo)
	if !ok {
		return ledger.ContractInfo{}, xerrors.Errorf("invalid result type '%T'", res)
	}

	return info, nil
}

// Bytecode returns the runtime bytecode of the contract.
func (m Manager) Bytecode(id string) ([]byte, error) {
	contractID, err := ledger.ParseContractID(id)
	if err != nil {
		return nil, err
	}

	q := ledger.ContractBytecodeQuery{ContractID: contractID}

	res, err := m.executor.PayAndExecute(q, BytecodeMarginFactor)
	if err != nil {
		return nil, xerrors.Errorf("failed to get bytecode of %v: %w", contractID, err)
	}

	bytecode, ok := res.(ledger.ContractBytecode)
	if !ok {
		return nil, xerrors.Errorf("invalid result type '%T'", res)
	}

	return bytecode, nil
}

// StateSize returns the size in bytes of the state stored by the contract.
func (m Manager) StateSize(id string) (int64, error) {
	info, err := m.Info(id)
	if err != nil {
		return 0, err
	}

	return info.Storage, nil
}

// normalizeBytecode checks that the bytecode is a hex string and returns the
// bytes of the text to store in the file, without any 0x prefix.
func normalizeBytecode(bytecode string) ([]byte, error) {
	text := strings.TrimPrefix(strings.TrimSpace(bytecode), "0x")

	if text == "" {
		return nil, xerrors.Errorf("bytecode is empty: %w", ledger.ErrInvalidArgument)
	}

	_, err := hex.DecodeString(text)
	if err != nil {
		return nil, xerrors.Errorf("bytecode is not hex encoded: %w", ledger.ErrInvalidArgument)
	}

	return []byte(text), nil
}
