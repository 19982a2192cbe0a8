package netqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localcore/client/pkg/metrics"
	"github.com/localcore/client/pkg/store"
)

// errStopScan breaks out of a ForEach scan early; it never escapes to
// a caller.
var errStopScan = errors.New("netqueue: stop scan")

var (
	bucketRequests = []byte("queue_requests")
	bucketOrder    = []byte("queue_order")
)

// Config configures a new Queue.
type Config struct {
	DBPath string
}

// Queue is a persistent, priority-ordered request queue backed by a
// single mutex-guarded store handle.
type Queue struct {
	mu sync.Mutex
	db *store.DB
}

// New opens (or creates) the queue's backing store.
func New(cfg Config) (*Queue, error) {
	db, err := store.Open(cfg.DBPath, bucketRequests, bucketOrder)
	if err != nil {
		return nil, fmt.Errorf("netqueue: open store: %w", err)
	}
	return &Queue{db: db}, nil
}

// Close releases the queue's backing store.
func (q *Queue) Close() error {
	return q.db.Close()
}

// orderKey encodes (priority DESC, createdAt ASC, id) so a forward
// bucket scan yields requests in priority order, ties broken by
// insertion order.
func orderKey(priority Priority, createdAt time.Time, id string) []byte {
	invertedPriority := store.InvertByte(byte(priority))
	return store.Concat(
		[]byte{invertedPriority},
		store.EncodeUint64(uint64(createdAt.UnixNano())),
		[]byte(id),
	)
}

// Enqueue durably adds a request and returns its generated ID.
func (q *Queue) Enqueue(method Method, url, headersJSON, body string, priority Priority, compress bool, tag string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	now := time.Now()

	req := Request{
		ID:            id,
		Method:        method,
		URL:           url,
		HeadersJSON:   headersJSON,
		Body:          body,
		Priority:      priority,
		RetryCount:    0,
		MaxRetries:    priority.MaxRetries(),
		CreatedAt:     now,
		NextAttemptAt: now,
		Compress:      compress,
		Tag:           tag,
	}

	if err := q.put(req); err != nil {
		metrics.QueueRequestsTotal.WithLabelValues("enqueue_error").Inc()
		return "", err
	}
	metrics.QueueSizeByPriority.WithLabelValues(priority.String()).Inc()
	return id, nil
}

func (q *Queue) put(req Request) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := q.db.Put(bucketRequests, []byte(req.ID), raw); err != nil {
		return err
	}
	return q.db.Put(bucketOrder, orderKey(req.Priority, req.CreatedAt, req.ID), []byte(req.ID))
}

func (q *Queue) removeIndexed(req Request) error {
	if err := q.db.Delete(bucketOrder, orderKey(req.Priority, req.CreatedAt, req.ID)); err != nil {
		return err
	}
	return q.db.Delete(bucketRequests, []byte(req.ID))
}

// Dequeue returns, without removing it from the queue, the first
// request in priority order (priority descending, then oldest first)
// whose NextAttemptAt has passed, provided qualityScore meets that
// request's priority's minimum quality score. If it does not, no
// lower-priority request is considered and nil, nil is returned; nil,
// nil is also returned when no request is due yet.
func (q *Queue) Dequeue(qualityScore uint8) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var candidate *Request
	err := q.db.ForEach(bucketOrder, func(_, idBytes []byte) error {
		raw, err := q.db.Get(bucketRequests, idBytes)
		if err != nil || raw == nil {
			return nil
		}
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil
		}
		if req.NextAttemptAt.After(now) {
			return nil
		}
		// req is the first time-eligible row the bucket's
		// priority/created_at ordering offers. Stop here whether
		// or not it clears the quality gate: the scan never looks
		// past the top candidate for a lower-priority fallback.
		if qualityScore >= req.Priority.MinQualityScore() {
			candidate = &req
		}
		return errStopScan
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return candidate, nil
}

// Complete removes a successfully delivered request, reporting whether
// it was present.
func (q *Queue) Complete(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, err := q.getRaw(id)
	if err != nil || req == nil {
		return false, err
	}
	if err := q.removeIndexed(*req); err != nil {
		return false, err
	}
	metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
	metrics.QueueRequestsTotal.WithLabelValues("completed").Inc()
	return true, nil
}

// Fail records a failed delivery attempt. If the request has exhausted
// its retry budget it is dropped (returns false); otherwise its retry
// count is incremented and its next attempt is scheduled with bounded
// exponential backoff (returns true).
func (q *Queue) Fail(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, err := q.getRaw(id)
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, ErrNotFound
	}

	newRetryCount := req.RetryCount + 1
	if newRetryCount >= req.MaxRetries {
		if err := q.removeIndexed(*req); err != nil {
			return false, err
		}
		metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
		metrics.QueueRequestsTotal.WithLabelValues("dropped").Inc()
		return false, nil
	}

	backoff := backoffFor(newRetryCount)
	updated := *req
	updated.RetryCount = newRetryCount
	updated.NextAttemptAt = time.Now().Add(backoff)

	if err := q.removeIndexed(*req); err != nil {
		return false, err
	}
	if err := q.put(updated); err != nil {
		return false, err
	}
	metrics.QueueRequestsTotal.WithLabelValues("retried").Inc()
	return true, nil
}

// backoffFor computes deterministic bounded exponential backoff:
// min(2 * 2^retryCount, 300) seconds.
func backoffFor(retryCount uint32) time.Duration {
	seconds := uint64(2)
	for i := uint32(0); i < retryCount && seconds < 300; i++ {
		seconds *= 2
	}
	if seconds > 300 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}

// Size returns the total number of queued requests.
func (q *Queue) Size() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	err := q.db.ForEach(bucketRequests, func(_, _ []byte) error {
		count++
		return nil
	})
	return count, err
}

// SizeByPriority returns the number of queued requests at a given
// priority.
func (q *Queue) SizeByPriority(priority Priority) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	err := q.db.ForEach(bucketRequests, func(_, v []byte) error {
		var req Request
		if err := json.Unmarshal(v, &req); err != nil {
			return nil
		}
		if req.Priority == priority {
			count++
		}
		return nil
	})
	return count, err
}

// CancelByTag removes every request carrying tag, returning the count
// removed.
func (q *Queue) CancelByTag(tag string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var toRemove []Request
	err := q.db.ForEach(bucketRequests, func(_, v []byte) error {
		var req Request
		if err := json.Unmarshal(v, &req); err != nil {
			return nil
		}
		if req.Tag == tag {
			toRemove = append(toRemove, req)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, req := range toRemove {
		if err := q.removeIndexed(req); err != nil {
			return 0, err
		}
		metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
	}
	return len(toRemove), nil
}

// Cancel removes a specific request, reporting whether it existed.
func (q *Queue) Cancel(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, err := q.getRaw(id)
	if err != nil || req == nil {
		return false, err
	}
	if err := q.removeIndexed(*req); err != nil {
		return false, err
	}
	metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
	return true, nil
}

// Clear empties the queue entirely.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var all []Request
	err := q.db.ForEach(bucketRequests, func(_, v []byte) error {
		var req Request
		if err := json.Unmarshal(v, &req); err != nil {
			return nil
		}
		all = append(all, req)
		return nil
	})
	if err != nil {
		return err
	}
	for _, req := range all {
		if err := q.removeIndexed(req); err != nil {
			return err
		}
		metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
	}
	return nil
}

// ListPending returns up to limit queued requests in priority order.
func (q *Queue) ListPending(limit int) ([]Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var reqs []Request
	err := q.db.ForEach(bucketOrder, func(_, idBytes []byte) error {
		if len(reqs) >= limit {
			return nil
		}
		raw, err := q.db.Get(bucketRequests, idBytes)
		if err != nil || raw == nil {
			return nil
		}
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil
		}
		reqs = append(reqs, req)
		return nil
	})
	return reqs, err
}

// CleanupOld removes non-critical requests created before the cutoff,
// returning the count removed. Critical requests are never dropped by
// age — only by exhausting their retry budget via Fail.
func (q *Queue) CleanupOld(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var toRemove []Request
	err := q.db.ForEach(bucketRequests, func(_, v []byte) error {
		var req Request
		if err := json.Unmarshal(v, &req); err != nil {
			return nil
		}
		if req.Priority < PriorityCritical && req.CreatedAt.Before(cutoff) {
			toRemove = append(toRemove, req)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, req := range toRemove {
		if err := q.removeIndexed(req); err != nil {
			return 0, err
		}
		metrics.QueueSizeByPriority.WithLabelValues(req.Priority.String()).Dec()
	}
	return len(toRemove), nil
}

func (q *Queue) getRaw(id string) (*Request, error) {
	raw, err := q.db.Get(bucketRequests, []byte(id))
	if err != nil || raw == nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
