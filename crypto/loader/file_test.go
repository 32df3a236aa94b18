package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/indemnify/cman/internal/testing/fake"
	"github.com/stretchr/testify/require"
)

func TestKeyFile_LoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.key")

	generator := fakeGenerator{
		calls: fake.NewCall(),
	}

	loader := NewFileLoader(path)

	data, err := loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0400), stat.Mode().Perm())

	data, err = loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	// Only the key is left in the directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestKeyFile_TrimmedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.key")
	require.NoError(t, os.WriteFile(path, []byte("  abcdef\n"), 0600))

	data, err := NewFileLoader(path).LoadOrCreate(fakeGenerator{})
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), data)
}

func TestKeyFile_Failures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.key")

	loader := NewFileLoader(path).(keyFile)

	_, err := loader.LoadOrCreate(fakeGenerator{err: fake.GetError()})
	require.EqualError(t, err, fake.Err("generator failed"))

	loader.storeFn = func(string, []byte) error {
		return fake.GetError()
	}
	_, err = loader.LoadOrCreate(fakeGenerator{})
	require.EqualError(t, err, fake.Err("failed to store key"))

	loader.readFn = func(string) ([]byte, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(fakeGenerator{})
	require.EqualError(t, err, fake.Err("failed to read key file"))

	loader.readFn = func(string) ([]byte, error) {
		return []byte(" \n"), nil
	}
	_, err = loader.LoadOrCreate(fakeGenerator{})
	require.EqualError(t, err, "key file '"+path+"' is empty")
}

func TestStoreAtomic_Failures(t *testing.T) {
	err := storeAtomic(filepath.Join(t.TempDir(), "missing", "operator.key"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "while creating file: ")

	dir := t.TempDir()
	target := filepath.Join(dir, "operator.key")
	require.NoError(t, os.Mkdir(target, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(target, "busy"), nil, 0600))

	err = storeAtomic(target, []byte("key"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "while renaming: ")
}

func TestLoadSigner(t *testing.T) {
	loader := NewFileLoader(filepath.Join(t.TempDir(), "operator.key"))

	signer, err := LoadSigner(loader)
	require.NoError(t, err)

	again, err := LoadSigner(loader)
	require.NoError(t, err)
	require.True(t, signer.GetPublicKey().Equal(again.GetPublicKey()))

	_, err = LoadSigner(badLoader{data: []byte("zz")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed key: ")

	_, err = LoadSigner(badLoader{err: fake.GetError()})
	require.EqualError(t, err, fake.Err("failed to load key"))
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeGenerator struct {
	calls *fake.Call
	err   error
}

func (g fakeGenerator) Generate() ([]byte, error) {
	if g.calls != nil {
		g.calls.Add("Generate")
	}

	return []byte{1, 2, 3}, g.err
}

type badLoader struct {
	data []byte
	err  error
}

func (l badLoader) LoadOrCreate(Generator) ([]byte, error) {
	return l.data, l.err
}
