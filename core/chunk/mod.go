// Package chunk splits a payload into ordered chunks that fit in a single
// transaction.
//
// The first chunk is used to create the remote object and the following ones
// are appended in order, so the concatenation of the chunks in the order of the
// plan is the payload.
package chunk

import (
	"github.com/indemnify/cman/core/ledger"
	"golang.org/x/xerrors"
)

// Chunk is a view over a range of a payload.
type Chunk struct {
	Offset int
	Length int
}

// Bytes returns the bytes of the payload covered by the chunk. The slice shares
// the memory of the payload.
func (c Chunk) Bytes(payload []byte) []byte {
	return payload[c.Offset : c.Offset+c.Length]
}

// Plan returns the chunks of the payload for a maximum chunk size. All the
// chunks have the maximum size except the last one that holds the remainder.
// An empty payload produces a single empty chunk, so that the remote object
// can still be created. A remainder of zero does not produce a trailing empty
// chunk.
func Plan(payload []byte, maxChunkSize int) ([]Chunk, error) {
	if maxChunkSize <= 0 {
		return nil, xerrors.Errorf("chunk size must be positive but got %d: %w",
			maxChunkSize, ledger.ErrInvalidArgument)
	}

	size := len(payload)

	if size <= maxChunkSize {
		return []Chunk{{Offset: 0, Length: size}}, nil
	}

	count := (size + maxChunkSize - 1) / maxChunkSize
	chunks := make([]Chunk, count)

	for i := range chunks {
		offset := i * maxChunkSize

		length := maxChunkSize
		if offset+length > size {
			length = size - offset
		}

		chunks[i] = Chunk{Offset: offset, Length: length}
	}

	return chunks, nil
}
