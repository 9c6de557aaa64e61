package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "auth.json")
}

func TestOpenBootstrapsDefaultAdmin(t *testing.T) {
	store, err := Open(tempStorePath(t))
	require.NoError(t, err)

	store.View(func(d *Data) {
		admin, ok := d.Users["admin"]
		require.True(t, ok)
		assert.Equal(t, RoleAdmin, admin.Role)
		assert.True(t, admin.MustChangePassword)
		assert.Equal(t, HashPassword("admin123", admin.Salt), admin.PasswordHash)
	})
}

func TestStoreRoundTrip(t *testing.T) {
	path := tempStorePath(t)

	store, err := Open(path)
	require.NoError(t, err)

	salt := NewSalt()
	require.NoError(t, store.Mutate(func(d *Data) error {
		d.Users["alice"] = &User{
			Username:     "alice",
			PasswordHash: HashPassword("secret1", salt),
			Salt:         salt,
			Role:         RoleUser,
			CreatedAt:    time.Now(),
		}
		return nil
	}))

	reopened, err := Open(path)
	require.NoError(t, err)
	reopened.View(func(d *Data) {
		alice, ok := d.Users["alice"]
		require.True(t, ok)
		assert.Equal(t, RoleUser, alice.Role)
		assert.Equal(t, HashPassword("secret1", salt), alice.PasswordHash)
	})
}

func TestMutateErrorDoesNotPersist(t *testing.T) {
	path := tempStorePath(t)
	store, err := Open(path)
	require.NoError(t, err)

	boom := errors.New("rejected")
	err = store.Mutate(func(d *Data) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A failed mutation must not rewrite the file.
	require.NoError(t, store.Mutate(func(d *Data) error { return nil }))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestHashPasswordDeterministicPerSalt(t *testing.T) {
	salt := NewSalt()
	assert.Equal(t, HashPassword("pw", salt), HashPassword("pw", salt))
	assert.NotEqual(t, HashPassword("pw", salt), HashPassword("pw", NewSalt()))
}

func TestNewSessionTokenIsUnique(t *testing.T) {
	assert.NotEqual(t, NewSessionToken(), NewSessionToken())
	assert.GreaterOrEqual(t, len(NewSessionToken()), 60)
}
