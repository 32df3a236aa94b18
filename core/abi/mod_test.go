package abi

import (
	"encoding/hex"
	"testing"

	"github.com/indemnify/cman/core/ledger"
	"github.com/stretchr/testify/require"
)

func TestFunctionParameters_Signature(t *testing.T) {
	params := NewFunctionParameters()
	require.Equal(t, "get()", params.Signature("get"))

	params.AddString("a").AddString("b")
	require.Equal(t, "set(string,string)", params.Signature("set"))
}

func TestSelector(t *testing.T) {
	// Well-known selector of the ERC-20 transfer function.
	require.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
}

func TestFunctionParameters_Encode(t *testing.T) {
	data, err := NewFunctionParameters().AddString("1000").Encode("refill")
	require.NoError(t, err)

	require.Equal(t, Selector("refill(string)"), data[:4])

	// offset, length and one word of content
	require.Len(t, data, 4+3*32)
	require.Equal(t, byte(0x20), data[4+31])
	require.Equal(t, byte(4), data[4+63])
	require.Equal(t, "1000", string(data[4+64:4+68]))

	value, err := FunctionResult(data[4:]).GetString(0)
	require.NoError(t, err)
	require.Equal(t, "1000", value)

	_, err = NewFunctionParameters().Encode("")
	require.EqualError(t, err, "invalid function name '': invalid argument")

	_, err = NewFunctionParameters().Encode("bad(string)")
	require.True(t, ledger.IsInvalidArgument(err))
}

func TestFunctionResult_GetString(t *testing.T) {
	data, err := EncodeString("hello world")
	require.NoError(t, err)

	value, err := FunctionResult(data).GetString(0)
	require.NoError(t, err)
	require.Equal(t, "hello world", value)

	data, err = NewFunctionParameters().AddString("a").AddString("second").Encode("f")
	require.NoError(t, err)

	value, err = FunctionResult(data[4:]).GetString(1)
	require.NoError(t, err)
	require.Equal(t, "second", value)

	_, err = FunctionResult(data[4:]).GetString(8)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read offset of value 8")

	_, err = FunctionResult(nil).GetString(-1)
	require.True(t, ledger.IsInvalidArgument(err))

	// The length claims more bytes than available.
	truncated := append([]byte{}, data[4:4+64]...)
	truncated[63] = 0xff
	_, err = FunctionResult(truncated).GetString(0)
	require.Error(t, err)

	empty, err := EncodeString("")
	require.NoError(t, err)

	value, err = FunctionResult(empty).GetString(0)
	require.NoError(t, err)
	require.Equal(t, "", value)
}

func TestRevertReason(t *testing.T) {
	data, err := EncodeString("not enough cupcakes")
	require.NoError(t, err)

	// Error(string) selector
	payload := append(Selector("Error(string)"), data...)

	reason, ok := RevertReason(payload)
	require.True(t, ok)
	require.Equal(t, "not enough cupcakes", reason)

	_, ok = RevertReason([]byte{1, 2})
	require.False(t, ok)
}
