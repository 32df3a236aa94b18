// Package ed25519 implements the operator keys on the Edwards 25519 elliptic
// curve.
//
// Keys are printed as hexadecimal strings. The parser also accepts the DER
// encoded forms that ledger wallets export (the PKCS#8 prefix for private keys
// and the SubjectPublicKeyInfo prefix for public keys), so that an operator key
// copied from a portal can be used as is.
//
// Signatures use the Schnorr algorithm of Kyber.
package ed25519

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/indemnify/cman/crypto"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

const (
	// Algorithm is the name of the curve used for the schnorr signature.
	Algorithm = "CURVE-ED25519"

	// privateKeyDERPrefix is the PKCS#8 header of a raw 32 bytes private key.
	privateKeyDERPrefix = "302e020100300506032b657004220420"

	// publicKeyDERPrefix is the SubjectPublicKeyInfo header of a raw 32 bytes
	// public key.
	publicKeyDERPrefix = "302a300506032b6570032100"
)

var suite = suites.MustFind("Ed25519")

// PublicKey is the public key adapter to the Kyber Ed25519 point.
//
// - implements crypto.PublicKey
type PublicKey struct {
	point kyber.Point
}

// NewPublicKey returns a new public key from the data.
func NewPublicKey(data []byte) (PublicKey, error) {
	point := suite.Point()

	err := point.UnmarshalBinary(data)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	return PublicKey{point: point}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It produces a slice of
// bytes representing the public key.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.point.MarshalBinary()
}

// MarshalText implements encoding.TextMarshaler. It returns the hexadecimal
// representation of the public key.
func (pk PublicKey) MarshalText() ([]byte, error) {
	buffer, err := pk.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return []byte(hex.EncodeToString(buffer)), nil
}

// Verify implements crypto.PublicKey. It returns nil if the signature matches
// the message for this public key.
func (pk PublicKey) Verify(msg []byte, sig crypto.Signature) error {
	signature, ok := sig.(Signature)
	if !ok {
		return xerrors.Errorf("invalid signature type '%T'", sig)
	}

	err := schnorr.Verify(suite, pk.point, msg, signature.data)
	if err != nil {
		return xerrors.Errorf("schnorr verify failed: %v", err)
	}

	return nil
}

// Equal implements crypto.PublicKey. It returns true if the other public key
// is the same.
func (pk PublicKey) Equal(other interface{}) bool {
	pubkey, ok := other.(PublicKey)
	if !ok {
		return false
	}

	return pubkey.point.Equal(pk.point)
}

// String implements fmt.Stringer. It returns a short version of the key.
func (pk PublicKey) String() string {
	buffer, err := pk.MarshalText()
	if err != nil {
		return "ed25519:malformed_point"
	}

	return fmt.Sprintf("ed25519:%s", buffer[:16])
}

// Signature is the adapter of the Kyber Schnorr signature.
//
// - implements crypto.Signature
type Signature struct {
	data []byte
}

// NewSignature returns a new signature from the data.
func NewSignature(data []byte) Signature {
	return Signature{data: data}
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns a slice of
// bytes representing the signature.
func (sig Signature) MarshalBinary() ([]byte, error) {
	return sig.data, nil
}

// Equal implements crypto.Signature. It returns true if both signatures are the
// same.
func (sig Signature) Equal(other crypto.Signature) bool {
	otherSig, ok := other.(Signature)
	if !ok {
		return false
	}

	return bytes.Equal(sig.data, otherSig.data)
}

// publicKeyFactory restores the public keys of the curve.
//
// - implements crypto.PublicKeyFactory
type publicKeyFactory struct{}

// NewPublicKeyFactory returns a new instance of the factory.
func NewPublicKeyFactory() crypto.PublicKeyFactory {
	return publicKeyFactory{}
}

// FromBytes implements crypto.PublicKeyFactory. It returns the public key
// unmarshaled from the bytes.
func (publicKeyFactory) FromBytes(data []byte) (crypto.PublicKey, error) {
	pubkey, err := NewPublicKey(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal the key: %v", err)
	}

	return pubkey, nil
}

// FromText implements crypto.PublicKeyFactory. It accepts a raw or DER encoded
// hexadecimal public key.
func (f publicKeyFactory) FromText(text string) (crypto.PublicKey, error) {
	data, err := decodeHex(text, publicKeyDERPrefix)
	if err != nil {
		return nil, xerrors.Errorf("malformed public key: %v", err)
	}

	return f.FromBytes(data)
}

// signatureFactory restores the schnorr signatures.
//
// - implements crypto.SignatureFactory
type signatureFactory struct{}

// NewSignatureFactory returns a new instance of the factory.
func NewSignatureFactory() crypto.SignatureFactory {
	return signatureFactory{}
}

// SignatureOf implements crypto.SignatureFactory.
func (signatureFactory) SignatureOf(data []byte) (crypto.Signature, error) {
	if len(data) != 64 {
		return nil, xerrors.Errorf("invalid signature length %d", len(data))
	}

	return NewSignature(data), nil
}

// Signer implements a signer that is creating Schnorr signatures using the
// private key of the Ed25519 elliptic curve.
//
// - implements crypto.Signer
type Signer struct {
	keyPair *key.Pair
}

// NewSigner returns a new random signer.
func NewSigner() Signer {
	return Signer{keyPair: key.NewKeyPair(suite)}
}

// NewSignerFromText restores a signer from the hexadecimal representation of
// its private key. The DER encoded form is also accepted.
func NewSignerFromText(text string) (Signer, error) {
	data, err := decodeHex(text, privateKeyDERPrefix)
	if err != nil {
		return Signer{}, xerrors.Errorf("malformed private key: %v", err)
	}

	if len(data) != 32 {
		return Signer{}, xerrors.Errorf("invalid private key length %d", len(data))
	}

	private := suite.Scalar().SetBytes(data)

	kp := &key.Pair{
		Private: private,
		Public:  suite.Point().Mul(private, nil),
	}

	return Signer{keyPair: kp}, nil
}

// GetPublicKey implements crypto.Signer. It returns the public key of the
// signer that can be used to verify signatures.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return PublicKey{point: s.keyPair.Public}
}

// MarshalText implements encoding.TextMarshaler. It returns the hexadecimal
// representation of the private key.
func (s Signer) MarshalText() ([]byte, error) {
	buffer, err := s.keyPair.Private.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal private key: %v", err)
	}

	return []byte(hex.EncodeToString(buffer)), nil
}

// Sign implements crypto.Signer. It signs the message in parameter and returns
// the signature, or an error if it cannot sign.
func (s Signer) Sign(msg []byte) (crypto.Signature, error) {
	sig, err := schnorr.Sign(suite, s.keyPair.Private, msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make schnorr signature: %v", err)
	}

	return Signature{data: sig}, nil
}

func decodeHex(text, derPrefix string) ([]byte, error) {
	text = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(text)), "0x")
	text = strings.TrimPrefix(text, derPrefix)

	return hex.DecodeString(text)
}
