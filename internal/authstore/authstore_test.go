package authstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSaveAndGetAuth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	token := signedToken(t, time.Hour)
	require.NoError(t, store.SaveAuth(ctx, token, "user-1"))

	got, err := store.GetAuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	userID, err := store.GetUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Expiry was read from the token's exp claim.
	auth, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), auth.ExpiresAt, time.Minute)
}

func TestGetAuth_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAuthToken(context.Background())
	assert.ErrorIs(t, err, ErrAuthNotFound)
}

func TestIsAuthenticated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty store is not authenticated")

	require.NoError(t, store.SaveAuth(ctx, signedToken(t, time.Hour), "user-1"))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// An expired token does not count as authenticated.
	require.NoError(t, store.SaveAuth(ctx, signedToken(t, -time.Minute), "user-1"))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// An opaque token without exp claim is trusted until the server says
	// otherwise.
	require.NoError(t, store.SaveAuth(ctx, "opaque-session-token", "user-1"))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearAuthInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAuth(ctx, signedToken(t, time.Hour), "user-1"))
	require.NoError(t, store.ClearAuthInfo(ctx))

	_, err := store.GetAuthToken(ctx)
	assert.ErrorIs(t, err, ErrAuthNotFound)

	// Clearing twice is fine.
	require.NoError(t, store.ClearAuthInfo(ctx))
}

func TestGetDeviceID_StableAcrossCallsAndLogout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	id2, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// Logout does not rotate the device identity.
	require.NoError(t, store.SaveAuth(ctx, signedToken(t, time.Hour), "user-1"))
	require.NoError(t, store.ClearAuthInfo(ctx))
	id3, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id1, id3)
}
