// Package crypto defines the cryptographic primitives used to authorize
// transactions sent to the ledger.
//
// An operator owns a signer. Its public key is attached to the files and the
// contracts it creates so that later modifications (file appends, contract
// deletion) can be authorized by the network.
package crypto

import (
	"encoding"
)

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Verify returns nil if the signature matches the message, otherwise an
	// error.
	Verify(msg []byte, sig Signature) error

	// Equal returns true when the other object is the same public key.
	Equal(other interface{}) bool
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	encoding.BinaryMarshaler

	// Equal returns true when both signatures are the same.
	Equal(other Signature) bool
}

// Signer provides the primitives to sign messages.
type Signer interface {
	// GetPublicKey returns the public key of the signer.
	GetPublicKey() PublicKey

	// Sign produces the signature of the message.
	Sign(msg []byte) (Signature, error)
}

// PublicKeyFactory restores public keys from their text or binary forms.
type PublicKeyFactory interface {
	FromBytes(data []byte) (PublicKey, error)

	FromText(text string) (PublicKey, error)
}

// SignatureFactory restores signatures from their binary form.
type SignatureFactory interface {
	SignatureOf(data []byte) (Signature, error)
}
