package loader

import (
	"bytes"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// keyFile is a loader that keeps the key in a file readable only by the
// current user. A new key is written to a temporary file in the same directory
// and then renamed, so that a crash never leaves a partial key behind.
//
// - implements loader.Loader
type keyFile struct {
	path string

	readFn  func(path string) ([]byte, error)
	storeFn func(path string, data []byte) error
}

// NewFileLoader creates a new loader that is using the file given in parameter.
func NewFileLoader(path string) Loader {
	return keyFile{
		path:    path,
		readFn:  os.ReadFile,
		storeFn: storeAtomic,
	}
}

// LoadOrCreate implements loader.Loader. It returns the content of the file
// without the surrounding spaces, or stores a new key when the file does not
// exist. An empty file is an error rather than a reason to replace the key.
func (f keyFile) LoadOrCreate(g Generator) ([]byte, error) {
	data, err := f.readFn(f.path)
	if err == nil {
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			return nil, xerrors.Errorf("key file '%s' is empty", f.path)
		}

		return data, nil
	}

	if !os.IsNotExist(err) {
		return nil, xerrors.Errorf("failed to read key file: %v", err)
	}

	data, err = g.Generate()
	if err != nil {
		return nil, xerrors.Errorf("generator failed: %v", err)
	}

	err = f.storeFn(f.path, data)
	if err != nil {
		return nil, xerrors.Errorf("failed to store key: %v", err)
	}

	return data, nil
}

func storeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".key-*")
	if err != nil {
		return xerrors.Errorf("while creating file: %v", err)
	}

	// No-op once the rename succeeded.
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		return xerrors.Errorf("while writing: %v", err)
	}

	err = tmp.Close()
	if err != nil {
		return xerrors.Errorf("while closing: %v", err)
	}

	err = os.Chmod(tmp.Name(), 0400)
	if err != nil {
		return xerrors.Errorf("while restricting permissions: %v", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return xerrors.Errorf("while renaming: %v", err)
	}

	return nil
}
