package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/indemnify/cman/cli/node"
	"github.com/indemnify/cman/internal/testing/contracts"
	"github.com/stretchr/testify/require"
)

func TestCman_Scenario(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "true")
	t.Setenv("OPERATOR_ID", "0.0.2")
	t.Setenv("OPERATOR_KEY", "")
	t.Setenv("HEDERA_NETWORK", "testnet")

	dir := t.TempDir()
	sigs := make(chan os.Signal)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		err := runWithCfg([]string{"cman", "--config", dir, "start"},
			config{Channel: sigs, Writer: io.Discard})
		require.NoError(t, err)
	}()

	defer func() {
		close(sigs)
		wg.Wait()
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, node.SocketName))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	bytecode := filepath.Join(t.TempDir(), "greeter.bin")
	require.NoError(t, os.WriteFile(bytecode, []byte(contracts.Greeter("hello")), 0600))

	id := strings.TrimSpace(runCommand(t, dir, "contract", "create", "--bytecode", bytecode))
	require.Regexp(t, `^0\.0\.\d+$`, id)

	out := runCommand(t, dir, "contract", "call", "--id", id, "--function", "greet")
	require.Equal(t, "hello\n", out)

	out = runCommand(t, dir, "contract", "execute", "--id", id, "--function", "set", "--arg", "x")
	require.Equal(t, "true\n", out)

	out = runCommand(t, dir, "contract", "info", "--id", id)
	require.Contains(t, out, `"contractId": "`+id+`"`)

	out = runCommand(t, dir, "contract", "delete", "--id", id)
	require.Equal(t, "true\n", out)

	err := runWithCfg([]string{"cman", "--config", dir, "contract", "call", "--id", id,
		"--function", "greet"}, config{Writer: io.Discard})
	require.Error(t, err)
	require.Contains(t, err.Error(), "CONTRACT_DELETED")

	out = runCommand(t, dir, "ledger", "balance")
	require.Contains(t, out, "0.0.2: ")
}

// -----------------------------------------------------------------------------
// Utility functions

func runCommand(t *testing.T, dir string, args ...string) string {
	out := new(bytes.Buffer)

	err := runWithCfg(append([]string{"cman", "--config", dir}, args...), config{Writer: out})
	require.NoError(t, err)

	return out.String()
}
