// Package docsync is the offline-capable document sync engine: a
// local document store with field-level CRDT merge and an append-only
// operation log used to reconcile with a remote peer.
package docsync

import (
	"time"

	"github.com/localcore/client/pkg/hlc"
)

// FieldValue is a single field's current value together with the HLC
// timestamp that last set it.
type FieldValue struct {
	Value string
	HLC   hlc.Timestamp
}

// Document is a collection-scoped, field-addressable record. Deletes
// are soft: Deleted is set and the row is retained as a tombstone so
// its deletion can propagate through merge.
type Document struct {
	ID           string
	Collection   string
	Fields       map[string]FieldValue
	Deleted      bool
	LastModified hlc.Timestamp
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetField stores value under field, stamped with ts, and advances
// LastModified.
func (d *Document) SetField(field, value string, ts hlc.Timestamp) {
	if d.Fields == nil {
		d.Fields = make(map[string]FieldValue)
	}
	d.Fields[field] = FieldValue{Value: value, HLC: ts}
	d.LastModified = ts
}

// GetField returns the field's current value and whether it is set.
func (d *Document) GetField(field string) (string, bool) {
	fv, ok := d.Fields[field]
	if !ok {
		return "", false
	}
	return fv.Value, true
}

// Merge folds remote into d using field-level last-write-wins: each
// field independently keeps whichever of the local/remote HLC is
// larger, and the document's tombstone state follows whichever side
// has the larger LastModified.
func (d *Document) Merge(remote *Document) {
	for field, remoteFV := range remote.Fields {
		localFV, ok := d.Fields[field]
		if !ok || hlc.Compare(remoteFV.HLC, localFV.HLC) > 0 {
			if d.Fields == nil {
				d.Fields = make(map[string]FieldValue)
			}
			d.Fields[field] = remoteFV
		}
	}

	if hlc.Compare(remote.LastModified, d.LastModified) > 0 {
		d.LastModified = remote.LastModified
		d.Deleted = remote.Deleted
	}
}

// ToMap flattens the document's fields into a plain string map,
// dropping HLC metadata — the shape handed back to a caller that just
// wants current values.
func (d *Document) ToMap() map[string]string {
	out := make(map[string]string, len(d.Fields))
	for k, fv := range d.Fields {
		out[k] = fv.Value
	}
	return out
}

// OpType identifies the kind of change an Operation recorded.
type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Operation is a single entry in the append-only op-log.
type Operation struct {
	ID         string
	Collection string
	DocumentID string
	Type       OpType
	Field      string // empty for Delete, and for whole-document Insert
	Value      string
	HLC        hlc.Timestamp
	Synced     bool
	CreatedAt  time.Time
}

// MergeOutcome describes which side of an LWW comparison between two
// operations prevailed.
type MergeOutcome int

const (
	LocalWins MergeOutcome = iota
	RemoteWins
)

// LWWMerge picks a winner between two operations touching the same
// field using last-write-wins: the later HLC wins outright; on an
// exact HLC tie (same physical+counter, which can only happen if two
// distinct nodes raced) the operation with the lexicographically
// greater node ID wins, a deterministic, content-free tiebreak.
func LWWMerge(local, remote Operation) MergeOutcome {
	switch {
	case hlc.Compare(local.HLC, remote.HLC) > 0:
		return LocalWins
	case hlc.Compare(remote.HLC, local.HLC) > 0:
		return RemoteWins
	case local.HLC.NodeID >= remote.HLC.NodeID:
		return LocalWins
	default:
		return RemoteWins
	}
}
