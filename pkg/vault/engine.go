package vault

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localcore/client/pkg/crypto"
	"github.com/localcore/client/pkg/log"
	"github.com/localcore/client/pkg/metrics"
	"github.com/localcore/client/pkg/store"
)

var bucketEntries = []byte("vault_entries")

const defaultNamespace = "default"

// Config configures a new Engine.
type Config struct {
	// AppID names the app this vault belongs to; used to derive the
	// default on-disk path when DBPath is empty.
	AppID string
	// DBPath is an explicit database path, or store.MemoryPath for an
	// ephemeral store. Defaults to "{AppID}.vault.db".
	DBPath string
	// MasterKey is the per-app key material used to derive per-entry
	// encryption keys. It is never persisted.
	MasterKey string
}

// Engine is the encrypted key/value vault, per spec §4.3. It holds its
// backing-store handle behind a single mutex.
type Engine struct {
	mu        sync.Mutex
	db        *store.DB
	masterKey string
}

// New opens (or creates) the vault's backing store.
func New(cfg Config) (*Engine, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = fmt.Sprintf("%s.vault.db", cfg.AppID)
	}
	db, err := store.Open(dbPath, bucketEntries)
	if err != nil {
		return nil, fmt.Errorf("vault: open store: %w", err)
	}
	return &Engine{db: db, masterKey: cfg.MasterKey}, nil
}

// Close releases the vault's backing store.
func (e *Engine) Close() error {
	return e.db.Close()
}

func entryKey(namespace, key string) []byte {
	return store.Concat([]byte(namespace), []byte{0}, []byte(key))
}

func nsOf(namespace string) string {
	if namespace == "" {
		return defaultNamespace
	}
	return namespace
}

// Put encrypts value and stores it under (namespace, key). namespace
// defaults to "default" if empty. expiry, if non-empty, is a shorthand
// duration ("24h", "7d", "30m", "2w") applied relative to now.
// Overwriting an existing key preserves its original CreatedAt.
func (e *Engine) Put(namespace, key, value, expiry string, biometricRequired, exportable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.VaultOpDuration, "put")

	namespace = nsOf(namespace)
	now := time.Now()

	encrypted, err := crypto.EncryptToBase64([]byte(value), e.masterKey)
	if err != nil {
		metrics.VaultOpsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("vault: encrypt: %w", err)
	}

	var expiresAt *time.Time
	if expiry != "" {
		t, err := parseExpiry(now, expiry)
		if err != nil {
			return err
		}
		expiresAt = &t
	}

	createdAt := now
	if existing, err := e.getRaw(namespace, key); err == nil && existing != nil {
		createdAt = existing.CreatedAt
	}

	entry := Entry{
		Key:               key,
		Namespace:         namespace,
		EncryptedValue:    encrypted,
		ExpiresAt:         expiresAt,
		BiometricRequired: biometricRequired,
		Exportable:        exportable,
		CreatedAt:         createdAt,
		UpdatedAt:         now,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		metrics.VaultOpsTotal.WithLabelValues("put", "error").Inc()
		return err
	}
	if err := e.db.Put(bucketEntries, entryKey(namespace, key), raw); err != nil {
		metrics.VaultOpsTotal.WithLabelValues("put", "error").Inc()
		return err
	}
	metrics.VaultOpsTotal.WithLabelValues("put", "ok").Inc()
	return nil
}

// Get decrypts and returns the value stored under (namespace, key).
// An expired entry is opportunistically deleted and reported as
// ErrExpired rather than ErrNotFound, distinguishing "never existed"
// from "existed, now gone", per the stored-entry model's contract.
func (e *Engine) Get(namespace, key string, biometricAuthenticated bool) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.VaultOpDuration, "get")

	namespace = nsOf(namespace)
	entry, err := e.getRaw(namespace, key)
	if err != nil {
		metrics.VaultOpsTotal.WithLabelValues("get", "error").Inc()
		return "", err
	}
	if entry == nil {
		metrics.VaultOpsTotal.WithLabelValues("get", "not_found").Inc()
		return "", ErrNotFound
	}

	if entry.IsExpired(time.Now()) {
		_ = e.db.Delete(bucketEntries, entryKey(namespace, key))
		metrics.VaultOpsTotal.WithLabelValues("get", "expired").Inc()
		return "", ErrExpired
	}

	if entry.BiometricRequired && !biometricAuthenticated {
		metrics.VaultOpsTotal.WithLabelValues("get", "biometric_required").Inc()
		return "", ErrBiometricRequired
	}

	plaintext, err := crypto.DecryptFromBase64(entry.EncryptedValue, e.masterKey)
	if err != nil {
		metrics.VaultOpsTotal.WithLabelValues("get", "error").Inc()
		return "", fmt.Errorf("vault: decrypt: %w", err)
	}
	metrics.VaultOpsTotal.WithLabelValues("get", "ok").Inc()
	return string(plaintext), nil
}

// Delete removes a key, reporting whether it existed.
func (e *Engine) Delete(namespace, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace = nsOf(namespace)
	existing, err := e.getRaw(namespace, key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	return true, e.db.Delete(bucketEntries, entryKey(namespace, key))
}

// Exists reports whether key exists in namespace and is not expired.
func (e *Engine) Exists(namespace, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace = nsOf(namespace)
	entry, err := e.getRaw(namespace, key)
	if err != nil || entry == nil {
		return false, err
	}
	return !entry.IsExpired(time.Now()), nil
}

// ListKeys returns the non-expired keys in namespace, sorted.
func (e *Engine) ListKeys(namespace string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace = nsOf(namespace)
	now := time.Now()
	var keys []string
	prefix := store.Concat([]byte(namespace), []byte{0})
	err := e.db.ForEachPrefix(bucketEntries, prefix, func(_, v []byte) error {
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil
		}
		if !entry.IsExpired(now) {
			keys = append(keys, entry.Key)
		}
		return nil
	})
	return keys, err
}

// ListNamespaces returns every distinct namespace with at least one
// entry, sorted.
func (e *Engine) ListNamespaces() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool)
	err := e.db.ForEach(bucketEntries, func(_, v []byte) error {
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil
		}
		seen[entry.Namespace] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sortStrings(namespaces)
	return namespaces, nil
}

// WipeNamespace deletes every entry in namespace.
func (e *Engine) WipeNamespace(namespace string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace = nsOf(namespace)
	var keys [][]byte
	prefix := store.Concat([]byte(namespace), []byte{0})
	err := e.db.ForEachPrefix(bucketEntries, prefix, func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.db.Delete(bucketEntries, k); err != nil {
			return err
		}
	}
	return nil
}

// WipeAll deletes every entry in the vault and compacts the backing
// store, so the reclaimed space actually shrinks the file on disk
// rather than sitting on bbolt's internal free-list.
func (e *Engine) WipeAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var keys [][]byte
	err := e.db.ForEach(bucketEntries, func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := e.db.Delete(bucketEntries, k); err != nil {
			return err
		}
	}
	if err := e.db.Compact(bucketEntries); err != nil {
		return fmt.Errorf("vault: compact after wipe: %w", err)
	}
	return nil
}

// Stats computes aggregate counts over the vault's entries.
func (e *Engine) Stats() (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var s Stats
	namespaces := make(map[string]bool)
	perNamespace := make(map[string]int)
	now := time.Now()
	err := e.db.ForEach(bucketEntries, func(_, v []byte) error {
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil
		}
		s.TotalEntries++
		namespaces[entry.Namespace] = true
		perNamespace[entry.Namespace]++
		if entry.IsExpired(now) {
			s.ExpiredEntries++
		}
		s.StorageBytes += int64(len(entry.EncryptedValue))
		return nil
	})
	s.TotalNamespaces = len(namespaces)
	if err == nil {
		metrics.VaultEntriesTotal.Reset()
		for ns, count := range perNamespace {
			metrics.VaultEntriesTotal.WithLabelValues(ns).Set(float64(count))
		}
	}
	return s, err
}

// CleanupExpired deletes every expired entry, returning the count
// removed.
func (e *Engine) CleanupExpired() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var keys [][]byte
	err := e.db.ForEach(bucketEntries, func(k, v []byte) error {
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil
		}
		if entry.IsExpired(now) {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := e.db.Delete(bucketEntries, k); err != nil {
			return 0, err
		}
	}
	log.WithComponent("vault").Debug().Int("count", len(keys)).Msg("cleaned up expired entries")
	return len(keys), nil
}

// Envelope is the portable form of an entry used by Export/Import: the
// still-encrypted value plus the metadata needed to reconstruct the
// entry on another device.
type Envelope struct {
	ID                string `json:"id"`
	Key               string `json:"key"`
	Namespace         string `json:"namespace"`
	EncryptedValue    string `json:"encrypted_value"`
	BiometricRequired bool   `json:"biometric_required"`
	Exportable        bool   `json:"exportable"`
}

// Export returns a portable envelope for (namespace, key), failing
// with ErrNotExportable if the entry's Exportable flag is false. The
// value is never decrypted; only the already-encrypted form leaves
// the vault.
func (e *Engine) Export(namespace, key string) (*Envelope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace = nsOf(namespace)
	entry, err := e.getRaw(namespace, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	if !entry.Exportable {
		return nil, ErrNotExportable
	}
	return &Envelope{
		ID:                uuid.NewString(),
		Key:               entry.Key,
		Namespace:         entry.Namespace,
		EncryptedValue:    entry.EncryptedValue,
		BiometricRequired: entry.BiometricRequired,
		Exportable:        entry.Exportable,
	}, nil
}

// Import writes an envelope's still-encrypted value directly into the
// vault, bypassing encryption (the value is already sealed under this
// vault's master key by a prior Export).
func (e *Engine) Import(env Envelope, expiry string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	namespace := nsOf(env.Namespace)
	now := time.Now()

	var expiresAt *time.Time
	if expiry != "" {
		t, err := parseExpiry(now, expiry)
		if err != nil {
			return err
		}
		expiresAt = &t
	}

	entry := Entry{
		Key:               env.Key,
		Namespace:         namespace,
		EncryptedValue:    env.EncryptedValue,
		ExpiresAt:         expiresAt,
		BiometricRequired: env.BiometricRequired,
		Exportable:        env.Exportable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return e.db.Put(bucketEntries, entryKey(namespace, env.Key), raw)
}

func (e *Engine) getRaw(namespace, key string) (*Entry, error) {
	raw, err := e.db.Get(bucketEntries, entryKey(namespace, key))
	if err != nil || raw == nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
