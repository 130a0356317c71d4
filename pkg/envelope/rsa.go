package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// RSAWrapper wraps a DEK with RSA-OAEP/SHA-256 for a public key holder.
type RSAWrapper struct {
	publicKey *rsa.PublicKey
}

// NewRSAWrapper builds a Wrapper for the given recipient public key.
func NewRSAWrapper(publicKey *rsa.PublicKey) *RSAWrapper {
	return &RSAWrapper{publicKey: publicKey}
}

func (w *RSAWrapper) Method() KeyEncryptionMethod { return MethodRSAOAEP }

func (w *RSAWrapper) Wrap(dek []byte) ([]byte, error) {
	encrypted, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, w.publicKey, dek, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	return encrypted, nil
}

// RSAUnwrapper unwraps a DEK with the matching RSA private key.
type RSAUnwrapper struct {
	privateKey *rsa.PrivateKey
}

// NewRSAUnwrapper builds an Unwrapper from a recipient's private key.
func NewRSAUnwrapper(privateKey *rsa.PrivateKey) *RSAUnwrapper {
	return &RSAUnwrapper{privateKey: privateKey}
}

func (u *RSAUnwrapper) Method() KeyEncryptionMethod { return MethodRSAOAEP }

func (u *RSAUnwrapper) Unwrap(encryptedKey []byte) ([]byte, error) {
	dek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, u.privateKey, encryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrDekDecryptionFailed, err)
	}

	return dek, nil
}
