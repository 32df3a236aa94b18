package chunk

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/indemnify/cman/core/ledger"
	"github.com/stretchr/testify/require"
)

func TestPlan_Scenarios(t *testing.T) {
	chunks, err := Plan(make([]byte, 12000), 5000)
	require.NoError(t, err)
	require.Equal(t, []int{5000, 5000, 2000}, lengths(chunks))
	require.Equal(t, []int{0, 5000, 10000}, offsets(chunks))

	chunks, err = Plan(make([]byte, 5000), 5000)
	require.NoError(t, err)
	require.Equal(t, []int{5000}, lengths(chunks))

	chunks, err = Plan(make([]byte, 10000), 5000)
	require.NoError(t, err)
	require.Equal(t, []int{5000, 5000}, lengths(chunks))

	chunks, err = Plan(make([]byte, 5001), 5000)
	require.NoError(t, err)
	require.Equal(t, []int{5000, 1}, lengths(chunks))
}

func TestPlan_Empty(t *testing.T) {
	chunks, err := Plan(nil, 5000)
	require.NoError(t, err)
	require.Equal(t, []Chunk{{Offset: 0, Length: 0}}, chunks)
	require.Empty(t, chunks[0].Bytes(nil))

	chunks, err = Plan([]byte{}, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestPlan_InvalidSize(t *testing.T) {
	_, err := Plan([]byte{1}, 0)
	require.EqualError(t, err, "chunk size must be positive but got 0: invalid argument")
	require.True(t, ledger.IsInvalidArgument(err))

	_, err = Plan([]byte{1}, -5)
	require.True(t, ledger.IsInvalidArgument(err))
}

func TestPlan_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))

	for i := 0; i < 500; i++ {
		payload := make([]byte, rnd.Intn(20000))
		rnd.Read(payload)

		size := rnd.Intn(6000) + 1

		chunks, err := Plan(payload, size)
		require.NoError(t, err)

		// Concatenation in order rebuilds the payload.
		buffer := new(bytes.Buffer)
		short := 0

		for _, c := range chunks {
			require.LessOrEqual(t, c.Offset+c.Length, len(payload))
			require.LessOrEqual(t, c.Length, size)

			if c.Length < size {
				short++
			}

			buffer.Write(c.Bytes(payload))
		}

		require.Equal(t, payload, buffer.Bytes())

		switch {
		case len(payload) == 0:
			require.Len(t, chunks, 1)
		case len(payload)%size == 0:
			require.Equal(t, 0, short)
			require.Len(t, chunks, len(payload)/size)
		default:
			require.Equal(t, 1, short)
			require.Less(t, chunks[len(chunks)-1].Length, size)
		}
	}
}

// -----------------------------------------------------------------------------
// Utility functions

func lengths(chunks []Chunk) []int {
	res := make([]int, len(chunks))
	for i, c := range chunks {
		res[i] = c.Length
	}

	return res
}

func offsets(chunks []Chunk) []int {
	res := make([]int, len(chunks))
	for i, c := range chunks {
		res[i] = c.Offset
	}

	return res
}
