package docsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localcore/client/pkg/hlc"
	"github.com/localcore/client/pkg/log"
	"github.com/localcore/client/pkg/metrics"
	"github.com/localcore/client/pkg/store"
)

var (
	bucketDocuments = []byte("documents")
	bucketDocIndex  = []byte("documents_by_updated")
	bucketOpLog     = []byte("op_log")
)

// ErrNotFound is returned when a document does not exist or is
// tombstoned.
var ErrNotFound = errors.New("docsync: document not found")

// Config configures a new Engine.
type Config struct {
	// DBPath is the path of the on-disk database file, or
	// store.MemoryPath for an ephemeral store.
	DBPath string
	NodeID string
}

// Engine is the sync engine: a document store plus an append-only
// operation log, per spec §4.4. It holds its backing-store handle
// behind a mutex; the HLC has a second, distinct mutex (pkg/hlc.Clock's
// own locking). Insert, Update and Delete draw their timestamp from the
// clock while holding the store mutex.
type Engine struct {
	mu    sync.Mutex
	db    *store.DB
	clock *hlc.Clock
	log   zeroLogger
}

// zeroLogger narrows the dependency on pkg/log to just what Engine
// uses, so tests can swap it without pulling in zerolog configuration.
type zeroLogger interface {
	Debug(msg string)
	Warn(msg string)
}

// defaultLogger scopes Engine's warnings to the owning node, so a
// multi-device log stream can be filtered down to one replica's view
// of its own sync engine.
type defaultLogger struct{ nodeID string }

func (defaultLogger) Debug(string) {}
func (d defaultLogger) Warn(msg string) {
	log.WithNodeID(d.nodeID).Warn().Msg(msg)
}

// New opens (or creates) the sync engine's backing store.
func New(cfg Config) (*Engine, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = fmt.Sprintf("%s.sync.db", cfg.NodeID)
	}
	db, err := store.Open(dbPath, bucketDocuments, bucketDocIndex, bucketOpLog)
	if err != nil {
		return nil, fmt.Errorf("docsync: open store: %w", err)
	}
	return &Engine{
		db:    db,
		clock: hlc.New(cfg.NodeID),
		log:   defaultLogger{nodeID: cfg.NodeID},
	}, nil
}

// Close releases the engine's backing store.
func (e *Engine) Close() error {
	return e.db.Close()
}

func docKey(collection, id string) []byte {
	return store.Concat([]byte(collection), []byte{0}, []byte(id))
}

func indexKey(collection string, updatedAt time.Time, id string) []byte {
	inverted := store.EncodeUint64(^uint64(updatedAt.UnixNano()))
	return store.Concat([]byte(collection), []byte{0}, inverted, []byte{0}, []byte(id))
}

// Insert creates a new document in collection with the given initial
// field values, recording a matching Insert operation in the op-log.
func (e *Engine) Insert(collection string, fields map[string]string) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.NewString()
	now := time.Now()
	ts := e.clock.Next()

	doc := &Document{
		ID:           id,
		Collection:   collection,
		Fields:       make(map[string]FieldValue, len(fields)),
		Version:      1,
		LastModified: ts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for k, v := range fields {
		doc.Fields[k] = FieldValue{Value: v, HLC: ts}
	}

	op := Operation{
		ID:         uuid.NewString(),
		Collection: collection,
		DocumentID: id,
		Type:       OpInsert,
		HLC:        ts,
		CreatedAt:  now,
	}

	if err := e.writeDocAndOp(doc, op, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update sets a single field on an existing, non-deleted document,
// recording a matching Update operation.
func (e *Engine) Update(collection, id, field, value string) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, oldUpdatedAt, err := e.loadDoc(collection, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, ErrNotFound
	}

	now := time.Now()
	ts := e.clock.Next()
	doc.SetField(field, value, ts)
	doc.Version++
	doc.UpdatedAt = now

	op := Operation{
		ID:         uuid.NewString(),
		Collection: collection,
		DocumentID: id,
		Type:       OpUpdate,
		Field:      field,
		Value:      value,
		HLC:        ts,
		CreatedAt:  now,
	}

	if err := e.writeDocAndOp(doc, op, &oldUpdatedAt); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete soft-deletes a document, leaving a tombstone so the deletion
// can propagate through Merge, and records a Delete operation.
func (e *Engine) Delete(collection, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, oldUpdatedAt, err := e.loadDoc(collection, id)
	if err != nil {
		return err
	}

	now := time.Now()
	ts := e.clock.Next()
	doc.Deleted = true
	doc.LastModified = ts
	doc.UpdatedAt = now

	op := Operation{
		ID:         uuid.NewString(),
		Collection: collection,
		DocumentID: id,
		Type:       OpDelete,
		HLC:        ts,
		CreatedAt:  now,
	}

	return e.writeDocAndOp(doc, op, &oldUpdatedAt)
}

// Get returns a document by ID, or ErrNotFound if it doesn't exist or
// is tombstoned.
func (e *Engine) Get(collection, id string) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, _, err := e.loadDoc(collection, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Query returns up to limit non-deleted documents in collection,
// ordered by UpdatedAt descending.
func (e *Engine) Query(collection string, limit int) ([]*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var docs []*Document
	prefix := store.Concat([]byte(collection), []byte{0})
	err := e.db.ForEachPrefix(bucketDocIndex, prefix, func(_, v []byte) error {
		if limit > 0 && len(docs) >= limit {
			return nil
		}
		raw, err := e.db.Get(bucketDocuments, v)
		if err != nil || raw == nil {
			return nil
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil
		}
		if !doc.Deleted {
			docs = append(docs, &doc)
		}
		return nil
	})
	return docs, err
}

// ApplyOperation applies a remote operation to the engine's local
// state using LWWMerge against any existing local operation touching
// the same field, returning the merge outcome.
func (e *Engine) ApplyOperation(remote Operation) (MergeOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, oldUpdatedAt, err := e.loadDoc(remote.Collection, remote.DocumentID)
	if errors.Is(err, ErrNotFound) {
		doc = &Document{
			ID:         remote.DocumentID,
			Collection: remote.Collection,
			Fields:     make(map[string]FieldValue),
			CreatedAt:  time.Now(),
		}
		oldUpdatedAt = time.Time{}
	} else if err != nil {
		return LocalWins, err
	}

	var local Operation
	if fv, ok := doc.Fields[remote.Field]; ok {
		local = Operation{HLC: fv.HLC, Field: remote.Field}
	} else {
		local = Operation{HLC: hlc.Timestamp{}, Field: remote.Field}
	}

	outcome := LWWMerge(local, remote)
	if local.HLC != (hlc.Timestamp{}) {
		metrics.SyncConflictsTotal.Inc()
	}
	if outcome == LocalWins && remote.Field != "" {
		return outcome, nil
	}

	now := time.Now()
	switch remote.Type {
	case OpDelete:
		doc.Deleted = true
	default:
		if remote.Field != "" {
			doc.SetField(remote.Field, remote.Value, remote.HLC)
		}
	}
	if hlc.Compare(remote.HLC, doc.LastModified) > 0 {
		doc.LastModified = remote.HLC
	}
	doc.Version++
	doc.UpdatedAt = now

	remote.Synced = true
	var ptr *time.Time
	if !oldUpdatedAt.IsZero() {
		ptr = &oldUpdatedAt
	}
	if err := e.writeDocAndOp(doc, remote, ptr); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// GetUnsyncedOps returns up to limit operations not yet marked
// synced, oldest first.
func (e *Engine) GetUnsyncedOps(limit int) ([]Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ops []Operation
	err := e.db.ForEach(bucketOpLog, func(_, v []byte) error {
		if limit > 0 && len(ops) >= limit {
			return nil
		}
		var op Operation
		if err := json.Unmarshal(v, &op); err != nil {
			return nil
		}
		if !op.Synced {
			ops = append(ops, op)
		}
		return nil
	})
	return ops, err
}

// MarkSynced flags the given operation IDs as synced, returning the
// number actually updated.
func (e *Engine) MarkSynced(opIDs []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	want := make(map[string]bool, len(opIDs))
	for _, id := range opIDs {
		want[id] = true
	}

	count := 0
	var toUpdate []opRecord
	err := e.db.ForEach(bucketOpLog, func(k, v []byte) error {
		var op Operation
		if err := json.Unmarshal(v, &op); err != nil {
			return nil
		}
		if want[op.ID] && !op.Synced {
			op.Synced = true
			toUpdate = append(toUpdate, opRecord{key: append([]byte(nil), k...), op: op})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, r := range toUpdate {
		raw, err := json.Marshal(r.op)
		if err != nil {
			return count, err
		}
		if err := e.db.Put(bucketOpLog, r.key, raw); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

type opRecord struct {
	key []byte
	op  Operation
}

// Stats summarizes the engine's current state.
type Stats struct {
	TotalDocuments  int
	TotalOperations int
	UnsyncedOps     int
	Collections     int
}

// Stats computes aggregate counts across the store.
func (e *Engine) Stats() (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var s Stats
	collections := make(map[string]bool)
	err := e.db.ForEach(bucketDocuments, func(_, v []byte) error {
		var doc Document
		if err := json.Unmarshal(v, &doc); err != nil {
			return nil
		}
		if !doc.Deleted {
			s.TotalDocuments++
		}
		collections[doc.Collection] = true
		return nil
	})
	if err != nil {
		return s, err
	}
	s.Collections = len(collections)

	err = e.db.ForEach(bucketOpLog, func(_, v []byte) error {
		s.TotalOperations++
		var op Operation
		if err := json.Unmarshal(v, &op); err == nil && !op.Synced {
			s.UnsyncedOps++
		}
		return nil
	})
	if err == nil {
		metrics.SyncDocumentsTotal.Set(float64(s.TotalDocuments))
		metrics.SyncUnsyncedOpsTotal.Set(float64(s.UnsyncedOps))
	}
	return s, err
}

// PurgeOldOps deletes synced operations older than maxAge, regardless
// of any other state — an unconditional age cutoff, matching the
// original implementation's behavior.
func (e *Engine) PurgeOldOps(maxAge time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var toDelete [][]byte
	err := e.db.ForEach(bucketOpLog, func(k, v []byte) error {
		var op Operation
		if err := json.Unmarshal(v, &op); err != nil {
			return nil
		}
		if op.Synced && op.CreatedAt.Before(cutoff) {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range toDelete {
		if err := e.db.Delete(bucketOpLog, k); err != nil {
			return 0, err
		}
	}
	e.log.Debug(fmt.Sprintf("purged %d old op-log entries", len(toDelete)))
	return len(toDelete), nil
}

// loadDoc reads a document by ID and also returns its current
// UpdatedAt, used to locate (and delete) its stale index entry when
// rewriting it. Returns ErrNotFound if absent; deleted documents are
// still returned (callers that must reject them check doc.Deleted).
func (e *Engine) loadDoc(collection, id string) (*Document, time.Time, error) {
	raw, err := e.db.Get(bucketDocuments, docKey(collection, id))
	if err != nil {
		return nil, time.Time{}, err
	}
	if raw == nil {
		return nil, time.Time{}, ErrNotFound
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, time.Time{}, err
	}
	return &doc, doc.UpdatedAt, nil
}

// writeDocAndOp persists doc and appends op in one logical step,
// maintaining the updated_at-ordered secondary index. oldUpdatedAt, if
// non-nil, is the document's previous UpdatedAt and is used to remove
// its stale index entry.
func (e *Engine) writeDocAndOp(doc *Document, op Operation, oldUpdatedAt *time.Time) error {
	docRaw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	opRaw, err := json.Marshal(op)
	if err != nil {
		return err
	}

	key := docKey(doc.Collection, doc.ID)
	if err := e.db.Put(bucketDocuments, key, docRaw); err != nil {
		return err
	}
	if oldUpdatedAt != nil && !oldUpdatedAt.IsZero() {
		if err := e.db.Delete(bucketDocIndex, indexKey(doc.Collection, *oldUpdatedAt, doc.ID)); err != nil {
			return err
		}
	}
	if err := e.db.Put(bucketDocIndex, indexKey(doc.Collection, doc.UpdatedAt, doc.ID), key); err != nil {
		return err
	}

	opKey := store.Concat(store.EncodeUint64(uint64(op.CreatedAt.UnixNano())), []byte(op.ID))
	return e.db.Put(bucketOpLog, opKey, opRaw)
}
