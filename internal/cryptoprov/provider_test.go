package cryptoprov

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider() *Provider {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInitialize_GatesOperations(t *testing.T) {
	p := newTestProvider()

	assert.False(t, p.Initialized())
	_, err := p.EncryptField("secret")
	require.Error(t, err)

	require.NoError(t, p.Initialize("user-1", false))
	assert.True(t, p.Initialized())
	assert.Equal(t, Status{Initialized: true, UserID: "user-1"}, p.Status())
}

func TestInitialize_EmptyUser(t *testing.T) {
	p := newTestProvider()

	require.Error(t, p.Initialize("", false))
	assert.False(t, p.Initialized())

	// Silent mode swallows the failure but leaves the provider unusable.
	require.NoError(t, p.Initialize("", true))
	assert.False(t, p.Initialized())
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	p := newTestProvider()
	require.NoError(t, p.Initialize("user-1", false))

	enc, err := p.EncryptField("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", enc)

	dec, err := p.DecryptField(enc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", dec)

	// Empty values pass through untouched.
	enc, err = p.EncryptField("")
	require.NoError(t, err)
	assert.Empty(t, enc)
}

func TestDecrypt_SameUserDifferentProvider(t *testing.T) {
	p1 := newTestProvider()
	require.NoError(t, p1.Initialize("user-1", false))
	p2 := newTestProvider()
	require.NoError(t, p2.Initialize("user-1", false))

	// Key derivation is deterministic per user, so another device of the
	// same user can decrypt.
	enc, err := p1.EncryptField("shared-secret")
	require.NoError(t, err)
	dec, err := p2.DecryptField(enc)
	require.NoError(t, err)
	assert.Equal(t, "shared-secret", dec)

	// A different user cannot.
	p3 := newTestProvider()
	require.NoError(t, p3.Initialize("user-2", false))
	_, err = p3.DecryptField(enc)
	assert.Error(t, err)
}

func TestDestroy_WipesKey(t *testing.T) {
	p := newTestProvider()
	require.NoError(t, p.Initialize("user-1", false))

	p.Destroy()
	assert.False(t, p.Initialized())
	_, err := p.EncryptField("secret")
	assert.Error(t, err)
}

func TestDecrypt_Garbage(t *testing.T) {
	p := newTestProvider()
	require.NoError(t, p.Initialize("user-1", false))

	_, err := p.DecryptField("not base64 at all!!!")
	assert.Error(t, err)

	_, err = p.DecryptField("c2hvcnQ=")
	assert.Error(t, err)
}
