package http

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/indemnify/cman/contracts/invoke"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/core/query"
	"golang.org/x/xerrors"
)

// maxBodySize bounds the body of a request. A bytecode file of the ledger is
// at most 1 MiB, which is 2 MiB once hex encoded.
const maxBodySize = 4 << 20

// Lifecycle is the set of operations on the contracts themselves.
type Lifecycle interface {
	Create(bytecode string) (ledger.ContractID, error)
	Delete(id string) (bool, error)
	Info(id string) (ledger.ContractInfo, error)
	Bytecode(id string) ([]byte, error)
	StateSize(id string) (int64, error)
}

// Invoker is the set of operations that run the functions of a contract.
type Invoker interface {
	Execute(req invoke.CallRequest) (bool, error)
	Call(req invoke.CallRequest) (string, error)
}

// CreateRequest is the body to create a contract.
type CreateRequest struct {
	Bytecode string `json:"bytecode"`
}

// CreateResponse is returned when a contract is created.
type CreateResponse struct {
	ContractID string `json:"contractId"`
}

// DeleteResponse is returned when a contract is deleted.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// BytecodeResponse holds the hex encoded runtime bytecode.
type BytecodeResponse struct {
	Bytecode string `json:"bytecode"`
}

// StateSizeResponse holds the size of the state of a contract.
type StateSizeResponse struct {
	StateSize int64 `json:"stateSize"`
}

// InvokeRequest is the body to execute or call a function.
type InvokeRequest struct {
	Function string `json:"function"`
	Argument string `json:"argument"`
}

// ExecuteResponse is returned when a function was executed.
type ExecuteResponse struct {
	Success bool `json:"success"`
}

// CallResponse holds the string returned by a function.
type CallResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is returned with any status code other than 200.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

type handlers struct {
	lifecycle Lifecycle
	invoker   Invoker
}

func (h handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /contracts", h.create)
	mux.HandleFunc("DELETE /contracts/{id}", h.delete)
	mux.HandleFunc("GET /contracts/{id}", h.info)
	mux.HandleFunc("GET /contracts/{id}/bytecode", h.bytecode)
	mux.HandleFunc("GET /contracts/{id}/statesize", h.stateSize)
	mux.HandleFunc("POST /contracts/{id}/execute", h.execute)
	mux.HandleFunc("POST /contracts/{id}/call", h.call)
}

func (h handlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest

	err := decode(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.lifecycle.Create(req.Bytecode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateResponse{ContractID: id.String()})
}

func (h handlers) delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.lifecycle.Delete(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (h handlers) info(w http.ResponseWriter, r *http.Request) {
	info, err := h.lifecycle.Info(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h handlers) bytecode(w http.ResponseWriter, r *http.Request) {
	bytecode, err := h.lifecycle.Bytecode(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BytecodeResponse{Bytecode: hex.EncodeToString(bytecode)})
}

func (h handlers) stateSize(w http.ResponseWriter, r *http.Request) {
	size, err := h.lifecycle.StateSize(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StateSizeResponse{StateSize: size})
}

func (h handlers) execute(w http.ResponseWriter, r *http.Request) {
	req, err := invokeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	success, err := h.invoker.Execute(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{Success: success})
}

func (h handlers) call(w http.ResponseWriter, r *http.Request) {
	req, err := invokeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.invoker.Call(req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{Result: res})
}

func invokeRequest(r *http.Request) (invoke.CallRequest, error) {
	var body InvokeRequest

	err := decode(r, &body)
	if err != nil {
		return invoke.CallRequest{}, err
	}

	return invoke.NewCallRequest(r.PathValue("id"), body.Function, body.Argument)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		return xerrors.Errorf("malformed body: %v: %w", err, ledger.ErrInvalidArgument)
	}

	return nil
}

// statusCode maps the error taxonomy of the ledger to an HTTP status code and
// the status reported by the network, if any.
func statusCode(err error) (int, string) {
	if ledger.IsInvalidArgument(err) {
		return http.StatusBadRequest, ""
	}

	if ledger.IsTimeout(err) {
		return http.StatusGatewayTimeout, ""
	}

	// The payment is refused before reaching the network.
	if xerrors.Is(err, query.ErrMaxPaymentExceeded) {
		return http.StatusPaymentRequired, ledger.StatusMaxQueryPaymentExceeded.String()
	}

	precheck, ok := ledger.IsPrecheck(err)
	if ok {
		switch precheck.Status {
		case ledger.StatusInsufficientTxFee, ledger.StatusInsufficientPayerBalance,
			ledger.StatusMaxQueryPaymentExceeded:
			return http.StatusPaymentRequired, precheck.Status.String()
		default:
			return http.StatusBadRequest, precheck.Status.String()
		}
	}

	receipt, ok := ledger.IsReceipt(err)
	if ok {
		return http.StatusConflict, receipt.Status.String()
	}

	_, ok = ledger.IsContractExecution(err)
	if ok {
		return http.StatusUnprocessableEntity, ""
	}

	return http.StatusInternalServerError, ""
}

func writeError(w http.ResponseWriter, err error) {
	code, status := statusCode(err)

	writeJSON(w, code, ErrorResponse{Error: err.Error(), Status: status})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	json.NewEncoder(w).Encode(v)
}
