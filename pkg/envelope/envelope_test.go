package envelope_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/pkg/envelope"
)

func TestEnvelope_SealOpenRoundTripRSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plaintext := []byte("classified cad geometry")

	env, err := envelope.NewBuilder(envelope.AlgorithmAES256GCM).
		AddRecipient("alice", envelope.NewRSAWrapper(&priv.PublicKey)).
		Seal(plaintext, nil)
	require.NoError(t, err)

	opened, err := envelope.Open(env, "alice", envelope.NewRSAUnwrapper(priv))
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEnvelope_SealOpenRoundTripECIES(t *testing.T) {
	keyPair, err := envelope.GenerateECIESKeyPair()
	require.NoError(t, err)

	plaintext := []byte("toolpath instructions")

	env, err := envelope.NewBuilder(envelope.AlgorithmChaCha20Poly1305).
		AddRecipient("bob", envelope.NewECIESWrapper(keyPair.PublicKey)).
		Seal(plaintext, []byte("aad"))
	require.NoError(t, err)

	opened, err := envelope.Open(env, "bob", envelope.NewECIESUnwrapper(keyPair))
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEnvelope_MultiRecipientEachDecryptsIndependently(t *testing.T) {
	rsaPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	eciesKeyPair, err := envelope.GenerateECIESKeyPair()
	require.NoError(t, err)

	plaintext := []byte("shared design doc")

	env, err := envelope.NewBuilder(envelope.AlgorithmAES256GCM).
		AddRecipient("alice", envelope.NewRSAWrapper(&rsaPriv.PublicKey)).
		AddRecipient("bob", envelope.NewECIESWrapper(eciesKeyPair.PublicKey)).
		Seal(plaintext, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"alice", "bob"}, env.RecipientIDs())

	fromAlice, err := envelope.Open(env, "alice", envelope.NewRSAUnwrapper(rsaPriv))
	require.NoError(t, err)
	assert.Equal(t, plaintext, fromAlice)

	fromBob, err := envelope.Open(env, "bob", envelope.NewECIESUnwrapper(eciesKeyPair))
	require.NoError(t, err)
	assert.Equal(t, plaintext, fromBob)
}

func TestEnvelope_SealWithNoRecipientsFails(t *testing.T) {
	_, err := envelope.NewBuilder(envelope.AlgorithmAES256GCM).Seal([]byte("data"), nil)
	assert.ErrorIs(t, err, cn.ErrNoRecipients)
}

func TestEnvelope_OpenUnknownRecipientFails(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	env, err := envelope.NewBuilder(envelope.AlgorithmAES256GCM).
		AddRecipient("alice", envelope.NewRSAWrapper(&priv.PublicKey)).
		Seal([]byte("data"), nil)
	require.NoError(t, err)

	_, err = envelope.Open(env, "eve", envelope.NewRSAUnwrapper(priv))
	assert.ErrorIs(t, err, cn.ErrRecipientNotFound)
}

func TestEnvelope_ToBytesFromBytesRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	env, err := envelope.NewBuilder(envelope.AlgorithmAES256GCM).
		AddRecipient("alice", envelope.NewRSAWrapper(&priv.PublicKey)).
		AddMetadata("doc_id", "part-9912").
		Seal([]byte("payload"), nil)
	require.NoError(t, err)

	data, err := env.ToBytes()
	require.NoError(t, err)

	parsed, err := envelope.FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "part-9912", parsed.Metadata["doc_id"])

	opened, err := envelope.Open(parsed, "alice", envelope.NewRSAUnwrapper(priv))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), opened)
}
