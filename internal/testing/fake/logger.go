package fake

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// CheckLog returns a logger and a function that fails the test if no entry
// with the message was logged.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := new(bytes.Buffer)

	check := func(t *testing.T) {
		require.Contains(t, buffer.String(), fmt.Sprintf(`"%s"`, msg))
	}

	return zerolog.New(buffer), check
}

// Counter counts down the successful calls before an implementation starts
// failing. A nil counter is always done.
type Counter struct {
	Value int
}

// NewCounter returns a counter starting at the given value.
func NewCounter(value int) *Counter {
	return &Counter{Value: value}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	return c == nil || c.Value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Value--
}

// BadWriter is a writer that always fails.
//
// - implements io.Writer
type BadWriter struct{}

// Write implements io.Writer.
func (BadWriter) Write([]byte) (int, error) {
	return 0, fakeErr
}
