package credentials_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/credentials"
)

func TestEnsureCreatesTenantDir(t *testing.T) {
	store := credentials.NewFSStore(t.TempDir(), zap.NewNop())

	handle, err := store.Ensure("u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", handle.TenantID)

	info, err := os.Stat(handle.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Ensure is idempotent.
	again, err := store.Ensure("u1")
	require.NoError(t, err)
	assert.Equal(t, handle.Dir, again.Dir)
}

func TestTokenRoundTrip(t *testing.T) {
	store := credentials.NewFSStore(t.TempDir(), zap.NewNop())
	handle, err := store.Ensure("u1")
	require.NoError(t, err)

	// Fresh tenant has no token yet.
	token, err := handle.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, handle.SaveToken("secret-token"))
	token, err = handle.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}

func TestDeleteRemovesCredentialMaterial(t *testing.T) {
	root := t.TempDir()
	store := credentials.NewFSStore(root, zap.NewNop())

	handle, err := store.Ensure("u2")
	require.NoError(t, err)
	require.NoError(t, handle.SaveToken("secret"))

	require.NoError(t, store.Delete("u2"))
	_, err = os.Stat(filepath.Join(root, "u2"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an absent tenant is a no-op.
	assert.NoError(t, store.Delete("u2"))
}

func TestPathUnsafeTenantIDsAreRejected(t *testing.T) {
	root := t.TempDir()
	store := credentials.NewFSStore(root, zap.NewNop())

	// A sibling of the root that a traversing id would reach.
	outside := filepath.Join(filepath.Dir(root), "outside")
	require.NoError(t, os.MkdirAll(outside, 0o700))

	for _, id := range []string{
		"",
		".",
		"..",
		"../outside",
		"a/b",
		"a\\b",
		"u1 u2",
	} {
		_, err := store.Ensure(id)
		assert.ErrorIs(t, err, credentials.ErrInvalidTenantID, "ensure %q", id)

		err = store.Delete(id)
		assert.ErrorIs(t, err, credentials.ErrInvalidTenantID, "delete %q", id)
	}

	// The traversal target was never touched.
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}
