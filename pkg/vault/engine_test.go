package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/localcore/client/pkg/store"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{DBPath: store.MemoryPath, MasterKey: "test-master-key"})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestVaultPutGetRoundTrip(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "api-token", "secret-value", "", false, false))

	got, err := v.Get("", "api-token", false)
	require.NoError(t, err)
	require.Equal(t, "secret-value", got)
}

func TestVaultGetMissingKey(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Get("", "nope", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVaultNamespaceIsolation(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("work", "token", "work-value", "", false, false))
	require.NoError(t, v.Put("home", "token", "home-value", "", false, false))

	got, err := v.Get("work", "token", false)
	require.NoError(t, err)
	require.Equal(t, "work-value", got)

	got, err = v.Get("home", "token", false)
	require.NoError(t, err)
	require.Equal(t, "home-value", got)
}

func TestVaultPutOverwritePreservesCreatedAt(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "k", "v1", "", false, false))
	first, err := v.getRaw("default", "k")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, v.Put("", "k", "v2", "", false, false))
	second, err := v.getRaw("default", "k")
	require.NoError(t, err)

	require.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestVaultDeleteReportsExistence(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "k", "v", "", false, false))

	existed, err := v.Delete("", "k")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = v.Delete("", "k")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestVaultExists(t *testing.T) {
	v := newTestVault(t)

	ok, err := v.Exists("", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.Put("", "k", "v", "", false, false))

	ok, err = v.Exists("", "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVaultListKeysSorted(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "zeta", "v", "", false, false))
	require.NoError(t, v.Put("", "alpha", "v", "", false, false))
	require.NoError(t, v.Put("", "mu", "v", "", false, false))

	keys, err := v.ListKeys("")
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "mu", "zeta"}, keys)
}

func TestVaultListNamespaces(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("work", "k", "v", "", false, false))
	require.NoError(t, v.Put("home", "k", "v", "", false, false))

	namespaces, err := v.ListNamespaces()
	require.NoError(t, err)
	require.Equal(t, []string{"home", "work"}, namespaces)
}

func TestVaultWipeNamespace(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("work", "k1", "v", "", false, false))
	require.NoError(t, v.Put("work", "k2", "v", "", false, false))
	require.NoError(t, v.Put("home", "k1", "v", "", false, false))

	require.NoError(t, v.WipeNamespace("work"))

	keys, err := v.ListKeys("work")
	require.NoError(t, err)
	require.Empty(t, keys)

	keys, err = v.ListKeys("home")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestVaultWipeAll(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("work", "k1", "v", "", false, false))
	require.NoError(t, v.Put("home", "k1", "v", "", false, false))

	require.NoError(t, v.WipeAll())

	namespaces, err := v.ListNamespaces()
	require.NoError(t, err)
	require.Empty(t, namespaces)
}

func TestVaultWipeAllCompactsBackingStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wipe-compact.db")
	v, err := New(Config{DBPath: dbPath, MasterKey: "test-master-key"})
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	large := strings.Repeat("x", 64*1024)
	for i := 0; i < 200; i++ {
		require.NoError(t, v.Put("bulk", fmt.Sprintf("k%d", i), large, "", false, false))
	}

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	sizeBeforeWipe := info.Size()

	require.NoError(t, v.WipeAll())

	info, err = os.Stat(dbPath)
	require.NoError(t, err)
	sizeAfterWipe := info.Size()

	require.Less(t, sizeAfterWipe, sizeBeforeWipe, "WipeAll should compact the backing store and shrink the file")

	namespaces, err := v.ListNamespaces()
	require.NoError(t, err)
	require.Empty(t, namespaces)

	require.NoError(t, v.Put("bulk", "k0", "v", "", false, false))
	got, err := v.Get("bulk", "k0", false)
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestVaultBiometricRequiredGatesGet(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "secure", "v", "", true, false))

	_, err := v.Get("", "secure", false)
	require.ErrorIs(t, err, ErrBiometricRequired)

	got, err := v.Get("", "secure", true)
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestVaultExportRejectsNonExportable(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "k", "v", "", false, false))

	_, err := v.Export("", "k")
	require.ErrorIs(t, err, ErrNotExportable)
}

func TestVaultExportImportRoundTrip(t *testing.T) {
	src := newTestVault(t)
	dst := newTestVault(t)

	require.NoError(t, src.Put("", "k", "portable-value", "", false, true))

	env, err := src.Export("", "k")
	require.NoError(t, err)
	require.Equal(t, "k", env.Key)

	require.NoError(t, dst.Import(*env, ""))

	got, err := dst.Get("", "k", false)
	require.NoError(t, err)
	require.Equal(t, "portable-value", got)
}

func TestVaultStats(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("work", "k1", "v", "", false, false))
	require.NoError(t, v.Put("home", "k1", "v", "", false, false))

	stats, err := v.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalEntries)
	require.Equal(t, 2, stats.TotalNamespaces)
	require.Equal(t, 0, stats.ExpiredEntries)
}

func TestVaultExpiryGetReturnsExpired(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "k", "v", "1m", false, false))
	entry, err := v.getRaw("default", "k")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	entry.ExpiresAt = &past
	require.True(t, entry.IsExpired(time.Now()))

	entryBytes, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, v.db.Put(bucketEntries, entryKey("default", "k"), entryBytes))

	_, err = v.Get("", "k", false)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVaultCleanupExpiredRemovesExpiredEntries(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.Put("", "k", "v", "", false, false))
	raw, err := v.getRaw("default", "k")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	raw.ExpiresAt = &past

	// Simulate expiry by writing the mutated entry back directly.
	entryBytes, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, v.db.Put(bucketEntries, entryKey("default", "k"), entryBytes))

	count, err := v.CleanupExpired()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = v.Get("", "k", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVaultInvalidExpiryRejected(t *testing.T) {
	v := newTestVault(t)

	err := v.Put("", "k", "v", "bogus", false, false)
	require.Error(t, err)
}
