// Package vault is the encrypted key/value store: every value is
// sealed with pkg/crypto before it touches disk, scoped by namespace,
// with optional expiry, a biometric-required flag, and an exportable
// flag gating Engine.Export, per the stored-entry model.
package vault

import "time"

// Entry is a single (namespace, key) vault record. EncryptedValue is
// the base64 form of a crypto.Blob; it is never decrypted except on
// retrieval.
type Entry struct {
	Key               string
	Namespace         string
	EncryptedValue    string
	ExpiresAt         *time.Time
	BiometricRequired bool
	Exportable        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsExpired reports whether the entry's expiry has passed as of now.
func (e *Entry) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Stats summarizes the vault's current contents.
type Stats struct {
	TotalEntries    int
	TotalNamespaces int
	ExpiredEntries  int
	StorageBytes    int64
}
