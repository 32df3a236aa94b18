// Package contracts provides small hand-assembled contracts for the tests that
// run a virtual machine.
//
// Every function returns the init code, hex encoded, as it is stored in the
// bytecode file of a contract.
package contracts

import (
	"encoding/hex"
	"strings"

	"github.com/indemnify/cman/core/abi"
)

const (
	opAdd      = 0x01
	opShl      = 0x1b
	opCodeCopy = 0x39
	opMstore   = 0x52
	opSload    = 0x54
	opSstore   = 0x55
	opPush1    = 0x60
	opDup1     = 0x80
	opReturn   = 0xf3
	opRevert   = 0xfd

	// prefixSize is the size of the code that copies the trailing data in
	// memory and returns or reverts with it.
	prefixSize = 12
)

// Greeter returns a contract whose every function returns the message.
func Greeter(msg string) string {
	data, err := abi.EncodeString(msg)
	if err != nil {
		panic(err)
	}

	return deploy(constant(data, opReturn))
}

// Reverter returns a contract whose every function reverts with the reason.
func Reverter(reason string) string {
	data, err := abi.EncodeString(reason)
	if err != nil {
		panic(err)
	}

	data = append(abi.Selector("Error(string)"), data...)

	return deploy(constant(data, opRevert))
}

// Counter returns a contract that increments a counter in its storage at every
// call, and returns the new value as a decimal string. The value must stay
// below ten.
func Counter() string {
	runtime := []byte{
		opPush1, 0x00, opSload, // counter
		opPush1, 0x01, opAdd, opDup1,
		opPush1, 0x00, opSstore, // counter+1 stored
		opPush1, '0', opAdd,
		opPush1, 0xf8, opShl, // the digit in the first byte of the word
		opPush1, 0x40, opMstore,
		opPush1, 0x20, opPush1, 0x00, opMstore, // offset
		opPush1, 0x01, opPush1, 0x20, opMstore, // length
		opPush1, 0x60, opPush1, 0x00, opReturn,
	}

	return deploy(runtime)
}

// Empty returns a contract without any runtime code.
func Empty() string {
	return deploy(nil)
}

// constant returns the runtime code that ends with the given opcode applied to
// the data appended to the code.
func constant(data []byte, op byte) []byte {
	size := byte(len(data))

	code := []byte{
		opPush1, size, opPush1, prefixSize, opPush1, 0x00, opCodeCopy,
		opPush1, size, opPush1, 0x00, op,
	}

	return append(code, data...)
}

// deploy returns the hex encoded init code that returns the runtime code.
func deploy(runtime []byte) string {
	return hex.EncodeToString(constant(runtime, opReturn))
}

// Pad appends zeros to the init code until it is size bytes long. The zeros
// are never executed since the init code returns before, so the contract is
// unchanged while its bytecode file spans several chunks.
func Pad(code string, size int) string {
	missing := size - len(code)/2
	if missing <= 0 {
		return code
	}

	return code + strings.Repeat("00", missing)
}
