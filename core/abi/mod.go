// Package abi encodes the parameters of the contract functions and decodes
// their results with the Solidity ABI.
//
// The functions are restricted to string arguments. The call data is the
// 4-byte selector of the function signature followed by the encoded arguments.
package abi

import (
	"math/big"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/indemnify/cman/core/ledger"
	"golang.org/x/xerrors"
)

const wordSize = 32

var stringType = mustNewType("string")

// FunctionParameters is the list of the arguments of a function call.
type FunctionParameters struct {
	args []string
}

// NewFunctionParameters returns an empty list of parameters.
func NewFunctionParameters() *FunctionParameters {
	return &FunctionParameters{}
}

// AddString appends a string argument.
func (p *FunctionParameters) AddString(value string) *FunctionParameters {
	p.args = append(p.args, value)
	return p
}

// Signature returns the canonical signature of the function for the arguments,
// for instance "refill(string)".
func (p *FunctionParameters) Signature(name string) string {
	types := make([]string, len(p.args))
	for i := range types {
		types[i] = "string"
	}

	return name + "(" + strings.Join(types, ",") + ")"
}

// Encode returns the call data of the function with the arguments.
func (p *FunctionParameters) Encode(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "(), ") {
		return nil, xerrors.Errorf("invalid function name '%s': %w", name, ledger.ErrInvalidArgument)
	}

	arguments := make(ethabi.Arguments, len(p.args))
	values := make([]interface{}, len(p.args))

	for i, arg := range p.args {
		arguments[i] = ethabi.Argument{Type: stringType}
		values[i] = arg
	}

	packed, err := arguments.Pack(values...)
	if err != nil {
		return nil, xerrors.Errorf("failed to pack arguments: %v", err)
	}

	return append(Selector(p.Signature(name)), packed...), nil
}

// Selector returns the first four bytes of the Keccak256 hash of the function
// signature.
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// FunctionResult is the raw output of a function call.
type FunctionResult []byte

// GetString returns the string value at the given index of the output.
func (r FunctionResult) GetString(index int) (string, error) {
	if index < 0 {
		return "", xerrors.Errorf("negative index %d: %w", index, ledger.ErrInvalidArgument)
	}

	offset, err := r.readWord(index * wordSize)
	if err != nil {
		return "", xerrors.Errorf("failed to read offset of value %d: %v", index, err)
	}

	length, err := r.readWord(offset)
	if err != nil {
		return "", xerrors.Errorf("failed to read length of value %d: %v", index, err)
	}

	start := offset + wordSize
	if start+length > len(r) {
		return "", xerrors.Errorf("string of value %d overflows output of %d bytes",
			index, len(r))
	}

	return string(r[start : start+length]), nil
}

func (r FunctionResult) readWord(pos int) (int, error) {
	if pos < 0 || pos+wordSize > len(r) {
		return 0, xerrors.Errorf("position %d out of output of %d bytes", pos, len(r))
	}

	value := new(big.Int).SetBytes(r[pos : pos+wordSize])
	if !value.IsInt64() || value.Int64() > int64(len(r)) {
		return 0, xerrors.Errorf("word at %d is out of range", pos)
	}

	return int(value.Int64()), nil
}

// EncodeString returns the output of a function that returns a single string.
func EncodeString(value string) ([]byte, error) {
	packed, err := ethabi.Arguments{{Type: stringType}}.Pack(value)
	if err != nil {
		return nil, xerrors.Errorf("failed to pack string: %v", err)
	}

	return packed, nil
}

// RevertReason returns the reason of a revert encoded as Error(string), if
// any.
func RevertReason(data []byte) (string, bool) {
	reason, err := ethabi.UnpackRevert(data)
	if err != nil {
		return "", false
	}

	return reason, true
}

func mustNewType(name string) ethabi.Type {
	typ, err := ethabi.NewType(name, "", nil)
	if err != nil {
		panic("abi: " + err.Error())
	}

	return typ
}
