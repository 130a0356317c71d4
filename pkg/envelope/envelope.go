// Package envelope implements envelope encryption: a random Data
// Encryption Key (DEK) encrypts the payload with an AEAD cipher, and
// the DEK itself is encrypted once per recipient with that recipient's
// key-encryption method, so the payload never needs re-encrypting when
// recipients are added, removed, or rotated.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// Algorithm selects the AEAD cipher used to encrypt the payload itself.
type Algorithm string

const (
	AlgorithmAES256GCM        Algorithm = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

func keySize(alg Algorithm) int {
	return 32
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: constructing aes cipher: %v", cn.ErrAeadFailed, err)
		}

		return cipher.NewGCM(block)
	case AlgorithmChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", cn.ErrAeadFailed, alg)
	}
}

// KeyEncryptionMethod identifies how a per-recipient DEK was wrapped.
type KeyEncryptionMethod string

const (
	MethodRSAOAEP KeyEncryptionMethod = "rsa-oaep-sha256"
	MethodECIES   KeyEncryptionMethod = "ecies-x25519"
)

// EncryptedDEK is one recipient's wrapped copy of the envelope's DEK.
type EncryptedDEK struct {
	RecipientID  string              `json:"recipient_id"`
	Method       KeyEncryptionMethod `json:"method"`
	EncryptedKey []byte              `json:"encrypted_key"`
}

// Envelope bundles the AEAD-encrypted payload with one wrapped DEK per
// recipient.
type Envelope struct {
	Algorithm       Algorithm           `json:"algorithm"`
	Ciphertext      []byte              `json:"ciphertext"`
	Nonce           []byte              `json:"nonce"`
	AssociatedData  []byte              `json:"associated_data,omitempty"`
	EncryptedDEKs   []EncryptedDEK      `json:"encrypted_deks"`
	Metadata        map[string]string   `json:"metadata,omitempty"`
}

// ToBytes serializes the envelope to its wire form.
func (e Envelope) ToBytes() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrInvalidEnvelopeFormat, err)
	}

	return data, nil
}

// FromBytes parses an envelope from its wire form.
func FromBytes(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", cn.ErrInvalidEnvelopeFormat, err)
	}

	return e, nil
}

// RecipientIDs lists every recipient the envelope can be opened for.
func (e Envelope) RecipientIDs() []string {
	ids := make([]string, len(e.EncryptedDEKs))
	for i, dek := range e.EncryptedDEKs {
		ids[i] = dek.RecipientID
	}

	return ids
}

// Wrapper encrypts a DEK for one recipient during Seal; the matching
// Unwrapper recovers it during Open. RSAWrapper and ECIESWrapper implement this.
type Wrapper interface {
	Method() KeyEncryptionMethod
	Wrap(dek []byte) ([]byte, error)
}

// Unwrapper is the decrypting half of a Wrapper, held by the recipient.
type Unwrapper interface {
	Method() KeyEncryptionMethod
	Unwrap(encryptedKey []byte) ([]byte, error)
}

type recipient struct {
	id      string
	wrapper Wrapper
}

// Builder accumulates recipients and metadata before sealing a
// plaintext payload into an Envelope.
type Builder struct {
	algorithm  Algorithm
	recipients []recipient
	metadata   map[string]string
}

// NewBuilder starts a builder that will encrypt the payload with alg.
func NewBuilder(alg Algorithm) *Builder {
	return &Builder{algorithm: alg, metadata: make(map[string]string)}
}

// AddRecipient registers a recipient's key-wrapping method under id.
func (b *Builder) AddRecipient(id string, wrapper Wrapper) *Builder {
	b.recipients = append(b.recipients, recipient{id: id, wrapper: wrapper})
	return b
}

// AddMetadata attaches an unencrypted key/value pair to the envelope.
func (b *Builder) AddMetadata(key, value string) *Builder {
	b.metadata[key] = value
	return b
}

// Seal generates a fresh DEK, encrypts plaintext with it, wraps the DEK
// for every registered recipient, and returns the resulting Envelope.
func (b *Builder) Seal(plaintext, associatedData []byte) (Envelope, error) {
	if len(b.recipients) == 0 {
		return Envelope{}, cn.ErrNoRecipients
	}

	dek := make([]byte, keySize(b.algorithm))
	if _, err := rand.Read(dek); err != nil {
		return Envelope{}, fmt.Errorf("%w: generating dek: %v", cn.ErrAeadFailed, err)
	}

	aead, err := newAEAD(b.algorithm, dek)
	if err != nil {
		return Envelope{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("%w: generating nonce: %v", cn.ErrAeadFailed, err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, associatedData)

	deks := make([]EncryptedDEK, 0, len(b.recipients))

	for _, r := range b.recipients {
		wrapped, err := r.wrapper.Wrap(dek)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: wrapping dek for recipient %s: %v", cn.ErrAeadFailed, r.id, err)
		}

		deks = append(deks, EncryptedDEK{RecipientID: r.id, Method: r.wrapper.Method(), EncryptedKey: wrapped})
	}

	return Envelope{
		Algorithm:      b.algorithm,
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		AssociatedData: associatedData,
		EncryptedDEKs:  deks,
		Metadata:       b.metadata,
	}, nil
}

// Open decrypts env for recipientID using unwrapper to recover the DEK,
// then decrypts the payload.
func Open(env Envelope, recipientID string, unwrapper Unwrapper) ([]byte, error) {
	var target *EncryptedDEK

	for i := range env.EncryptedDEKs {
		if env.EncryptedDEKs[i].RecipientID == recipientID && env.EncryptedDEKs[i].Method == unwrapper.Method() {
			target = &env.EncryptedDEKs[i]
			break
		}
	}

	if target == nil {
		return nil, fmt.Errorf("%w: %s", cn.ErrRecipientNotFound, recipientID)
	}

	dek, err := unwrapper.Unwrap(target.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrDekDecryptionFailed, err)
	}

	aead, err := newAEAD(env.Algorithm, dek)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, env.AssociatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cn.ErrAeadFailed, err)
	}

	return plaintext, nil
}
