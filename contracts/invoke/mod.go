// Package invoke calls the functions of the deployed contracts.
//
// A function takes a single string argument. It is either executed by a
// transaction that can change the state of the contract, or called by a paid
// query that returns the first string of its output.
package invoke

import (
	"github.com/indemnify/cman"
	"github.com/indemnify/cman/core/abi"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const (
	// Gas is the gas available to a function, either executed or called.
	Gas = 100_000_000

	// CallMarginFactor is the margin factor of the call queries.
	CallMarginFactor = 50
)

// DefaultExecuteFee is the maximum fee to execute a function. Zero leaves the
// client apply its own maximum transaction fee.
var DefaultExecuteFee = ledger.Amount(0)

var promInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "cman_invocations_total",
	Help: "total number of contract function invocations",
}, []string{"mode", "outcome"})

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promInvocations)
}

// CallRequest is the invocation of a contract function with a string argument.
// It is immutable once created.
type CallRequest struct {
	contractID ledger.ContractID
	function   string
	argument   string
}

// NewCallRequest returns a new request. The contract identifier must be in the
// shard.realm.num format.
func NewCallRequest(contractID, function, argument string) (CallRequest, error) {
	id, err := ledger.ParseContractID(contractID)
	if err != nil {
		return CallRequest{}, err
	}

	req := CallRequest{
		contractID: id,
		function:   function,
		argument:   argument,
	}

	return req, nil
}

// GetContractID returns the contract of the request.
func (r CallRequest) GetContractID() ledger.ContractID {
	return r.contractID
}

// GetFunction returns the name of the function.
func (r CallRequest) GetFunction() string {
	return r.function
}

// GetArgument returns the string argument of the function.
func (r CallRequest) GetArgument() string {
	return r.argument
}

func (r CallRequest) encode() ([]byte, error) {
	return abi.NewFunctionParameters().AddString(r.argument).Encode(r.function)
}

// QueryExecutor is the interface to run paid queries.
type QueryExecutor interface {
	PayAndExecute(q ledger.Query, marginFactor int64) (ledger.Result, error)
}

// Service invokes the functions of the contracts.
type Service struct {
	client     ledger.Client
	executor   QueryExecutor
	executeFee ledger.Amount
	logger     zerolog.Logger
}

// Option is the type of options to create a service.
type Option func(*Service)

// WithQueryExecutor sets the executor of the call queries.
func WithQueryExecutor(e QueryExecutor) Option {
	return func(s *Service) {
		s.executor = e
	}
}

// WithExecuteFee sets the maximum fee of the execute transactions.
func WithExecuteFee(fee ledger.Amount) Option {
	return func(s *Service) {
		s.executeFee = fee
	}
}

// NewService returns a new invocation service.
func NewService(client ledger.Client, opts ...Option) Service {
	s := Service{
		client:     client,
		executor:   query.NewExecutor(client),
		executeFee: DefaultExecuteFee,
		logger:     cman.Logger.With().Str("component", "invoke").Logger(),
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// Execute runs the function in a transaction. A successful receipt is the only
// output, the return value of the function is not available.
func (s Service) Execute(req CallRequest) (bool, error) {
	params, err := req.encode()
	if err != nil {
		return false, xerrors.Errorf("failed to encode parameters: %w", err)
	}

	tx := ledger.ContractExecute{
		ContractID:         req.contractID,
		Gas:                Gas,
		FunctionParameters: params,
		MaxFee:             s.executeFee,
	}

	_, err = ledger.Execute(s.client, tx)
	if err != nil {
		promInvocations.WithLabelValues("execute", "failure").Inc()

		return false, xerrors.Errorf("failed to execute %s on %v: %w",
			req.function, req.contractID, err)
	}

	promInvocations.WithLabelValues("execute", "success").Inc()

	s.logger.Debug().
		Stringer("contract", req.contractID).
		Str("function", req.function).
		Msg("function executed")

	return true, nil
}

// Call runs the function in a paid query and returns the first string of its
// output. An error message reported by the contract is returned as a
// ContractExecutionError.
func (s Service) Call(req CallRequest) (string, error) {
	params, err := req.encode()
	if err != nil {
		return "", xerrors.Errorf("failed to encode parameters: %w", err)
	}

	q := ledger.ContractCallQuery{
		ContractID:         req.contractID,
		Gas:                Gas,
		FunctionParameters: params,
	}

	res, err := s.executor.PayAndExecute(q, CallMarginFactor)
	if err != nil {
		promInvocations.WithLabelValues("call", "failure").Inc()

		return "", xerrors.Errorf("failed to call %s on %v: %w",
			req.function, req.contractID, err)
	}

	result, ok := res.(ledger.ContractFunctionResult)
	if !ok {
		return "", xerrors.Errorf("invalid result type '%T'", res)
	}

	if result.ErrorMessage != "" {
		promInvocations.WithLabelValues("call", "reverted").Inc()

		return "", &ledger.ContractExecutionError{Message: result.ErrorMessage}
	}

	value, err := abi.FunctionResult(result.Result).GetString(0)
	if err != nil {
		return "", xerrors.Errorf("failed to decode output of %s: %v", req.function, err)
	}

	promInvocations.WithLabelValues("call", "success").Inc()

	return value, nil
}
