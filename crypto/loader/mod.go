// Package loader defines an abstraction to load a key from a persistent
// storage. It allows one to either read it from the storage, or to generate a
// new one and stores it for the next time.
//
// The local ledger uses it to keep the operator key across restarts when no
// key is provided in the configuration.
package loader

import (
	"bytes"

	"github.com/indemnify/cman/crypto/ed25519"
	"golang.org/x/xerrors"
)

// Generator is the interface to implement to generate a key.
type Generator interface {
	Generate() ([]byte, error)
}

// Loader is an abstraction to load a key from a storage. It allows for instance
// to load a private key from the disk, or generate it if it doesn't exist.
type Loader interface {
	// LoadOrCreate tries to load the key and returns it if found, otherwise it
	// generates a new one using the generator and stores it.
	LoadOrCreate(Generator) ([]byte, error)
}

// SignerGenerator generates a new Ed25519 signer and returns its hex encoded
// private key.
//
// - implements loader.Generator
type SignerGenerator struct{}

// Generate implements loader.Generator.
func (SignerGenerator) Generate() ([]byte, error) {
	return ed25519.NewSigner().MarshalText()
}

// LoadSigner returns the signer stored by the loader, or a new one if none
// exists yet.
func LoadSigner(l Loader) (ed25519.Signer, error) {
	data, err := l.LoadOrCreate(SignerGenerator{})
	if err != nil {
		return ed25519.Signer{}, xerrors.Errorf("failed to load key: %v", err)
	}

	signer, err := ed25519.NewSignerFromText(string(bytes.TrimSpace(data)))
	if err != nil {
		return ed25519.Signer{}, xerrors.Errorf("malformed key: %v", err)
	}

	return signer, nil
}
