package envelope

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// ECIESKeyPair is an X25519 key pair used for Elliptic Curve Integrated
// Encryption, the same construction the envelope's asymmetric layer
// uses wherever a recipient prefers curve keys over RSA.
type ECIESKeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateECIESKeyPair creates a fresh X25519 key pair.
func GenerateECIESKeyPair() (ECIESKeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return ECIESKeyPair{}, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return ECIESKeyPair{}, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	var pubArr [32]byte
	copy(pubArr[:], pub)

	return ECIESKeyPair{PublicKey: pubArr, PrivateKey: priv}, nil
}

// ECIESWrapper wraps a DEK for a recipient's X25519 public key using an
// ephemeral sender key, HKDF-SHA256 key derivation, and
// ChaCha20-Poly1305 for the actual wrap.
type ECIESWrapper struct {
	recipientPublicKey [32]byte
}

// NewECIESWrapper builds a Wrapper for the given recipient public key.
func NewECIESWrapper(recipientPublicKey [32]byte) *ECIESWrapper {
	return &ECIESWrapper{recipientPublicKey: recipientPublicKey}
}

func (w *ECIESWrapper) Method() KeyEncryptionMethod { return MethodECIES }

func (w *ECIESWrapper) Wrap(dek []byte) ([]byte, error) {
	ephemeral, err := GenerateECIESKeyPair()
	if err != nil {
		return nil, err
	}

	shared, err := curve25519.X25519(ephemeral.PrivateKey[:], w.recipientPublicKey[:])
	if err != nil {
		return nil, fmt.Errorf("%w: deriving shared secret: %v", cn.ErrAeadFailed, err)
	}

	derivedKey, err := deriveKey(shared, ephemeral.PublicKey[:])
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	sealed := aead.Seal(nil, nonce, dek, nil)

	out := make([]byte, 0, 32+len(nonce)+len(sealed))
	out = append(out, ephemeral.PublicKey[:]...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return out, nil
}

// ECIESUnwrapper unwraps a DEK previously wrapped for this key pair's
// public key.
type ECIESUnwrapper struct {
	keyPair ECIESKeyPair
}

// NewECIESUnwrapper builds an Unwrapper from a recipient's key pair.
func NewECIESUnwrapper(keyPair ECIESKeyPair) *ECIESUnwrapper {
	return &ECIESUnwrapper{keyPair: keyPair}
}

func (u *ECIESUnwrapper) Method() KeyEncryptionMethod { return MethodECIES }

func (u *ECIESUnwrapper) Unwrap(encryptedKey []byte) ([]byte, error) {
	if len(encryptedKey) < 32+chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: ecies payload too short", cn.ErrInvalidEnvelopeFormat)
	}

	ephemeralPublicKey := encryptedKey[:32]
	nonce := encryptedKey[32 : 32+chacha20poly1305.NonceSize]
	sealed := encryptedKey[32+chacha20poly1305.NonceSize:]

	shared, err := curve25519.X25519(u.keyPair.PrivateKey[:], ephemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving shared secret: %v", cn.ErrDekDecryptionFailed, err)
	}

	derivedKey, err := deriveKey(shared, ephemeralPublicKey)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrDekDecryptionFailed, err)
	}

	dek, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrDekDecryptionFailed, err)
	}

	return dek, nil
}

func deriveKey(shared, salt []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, shared, salt, []byte("cadcore-envelope-ecies"))

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("%w: deriving key: %v", cn.ErrAeadFailed, err)
	}

	return key, nil
}
