package node

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSet_String(t *testing.T) {
	fset := FlagSet{"a": "something", "b": 20}

	require.Equal(t, "something", fset.String("a"))
	require.Equal(t, "", fset.String("b"))
	require.Equal(t, "", fset.String("c"))
}

func TestFlagSet_Duration(t *testing.T) {
	fset := FlagSet{"a": float64(1000.0), "b": time.Second, "c": "1s"}

	require.Equal(t, time.Duration(1000), fset.Duration("a"))
	require.Equal(t, time.Second, fset.Duration("b"))
	require.Equal(t, time.Duration(0), fset.Duration("c"))
}

func TestFlagSet_Path(t *testing.T) {
	fset := FlagSet{"a": "/one/path", "b": 123}

	require.Equal(t, "/one/path", fset.Path("a"))
	require.Equal(t, "", fset.Path("b"))
}

func TestFlagSet_Int(t *testing.T) {
	fset := FlagSet{"a": 20, "b": "oops", "c": 30.0, "d": 30.1}

	require.Equal(t, 20, fset.Int("a"))
	require.Equal(t, 0, fset.Int("b"))
	require.Equal(t, 30, fset.Int("c"))
	require.Equal(t, 0, fset.Int("d"))
}

func TestFlagSet_Bool(t *testing.T) {
	fset := FlagSet{"a": true, "b": "oops", "c": false}

	require.True(t, fset.Bool("a"))
	require.False(t, fset.Bool("b"))
	require.False(t, fset.Bool("c"))
}

func TestFlagSet_JSON(t *testing.T) {
	in := FlagSet{"id": "0.0.1001", "timeout": time.Minute, "count": 3, "verbose": true}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	out := make(FlagSet)
	err = json.Unmarshal(data, &out)
	require.NoError(t, err)

	require.Equal(t, "0.0.1001", out.String("id"))
	require.Equal(t, time.Minute, out.Duration("timeout"))
	require.Equal(t, 3, out.Int("count"))
	require.True(t, out.Bool("verbose"))
}
