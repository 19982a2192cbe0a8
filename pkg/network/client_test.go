package network

import (
	"testing"
	"time"

	"github.com/localcore/client/pkg/netqueue"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{AppID: "test", DBDir: "", EnableQueue: true, EnableCache: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientQueueRoundTrip(t *testing.T) {
	c := newTestClient(t)
	c.UpdateStatus("wifi", 0, 0, false)

	id, err := c.EnqueueRequest(netqueue.MethodGet, "https://api.test.com", "{}", "", netqueue.PriorityNormal, false, "")
	if err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty request ID")
	}

	req, err := c.DequeueRequest()
	if err != nil {
		t.Fatalf("DequeueRequest: %v", err)
	}
	if req == nil || req.ID != id {
		t.Fatalf("expected to dequeue request %s, got %+v", id, req)
	}

	ok, err := c.CompleteRequest(id)
	if err != nil || !ok {
		t.Fatalf("CompleteRequest: ok=%v err=%v", ok, err)
	}
}

func TestClientQueueGatedByQuality(t *testing.T) {
	c := newTestClient(t)
	c.UpdateStatus("offline", 0, 0, false)

	_, err := c.EnqueueRequest(netqueue.MethodGet, "https://api.test.com", "{}", "", netqueue.PriorityLow, false, "")
	if err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	req, err := c.DequeueRequest()
	if err != nil {
		t.Fatalf("DequeueRequest: %v", err)
	}
	if req != nil {
		t.Fatalf("expected no eligible request while offline, got %+v", req)
	}
}

func TestClientCacheRoundTrip(t *testing.T) {
	c := newTestClient(t)

	if err := c.CacheResponse("GET", "https://api.test.com", 200, "{}", "body", time.Minute, "", ""); err != nil {
		t.Fatalf("CacheResponse: %v", err)
	}

	entry, ok, err := c.GetCached("GET", "https://api.test.com")
	if err != nil {
		t.Fatalf("GetCached: %v", err)
	}
	if !ok || entry.Body != "body" {
		t.Fatalf("expected cache hit with body %q, got ok=%v entry=%+v", "body", ok, entry)
	}
}

func TestClientDisabledEnginesReturnErrInvalidConfig(t *testing.T) {
	c, err := NewClient(Config{AppID: "test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if _, err := c.QueueSize(); err != ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig for disabled queue, got %v", err)
	}
	if _, _, err := c.GetCached("GET", "https://x.com"); err != ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig for disabled cache, got %v", err)
	}
}

func TestClientAutoCompressLargeBody(t *testing.T) {
	c, err := NewClient(Config{AppID: "test", EnableQueue: true, AutoCompress: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	largeBody := make([]byte, 4096)
	for i := range largeBody {
		largeBody[i] = byte('a' + i%2)
	}

	id, err := c.EnqueueRequest(netqueue.MethodPost, "https://api.test.com", "{}", string(largeBody), netqueue.PriorityNormal, true, "")
	if err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}

	reqs, err := c.queue.ListPending(10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ID != id {
		t.Fatalf("expected one pending request with id %s, got %+v", id, reqs)
	}
	if reqs[0].Body == string(largeBody) {
		t.Errorf("expected body to be compressed, got identical body")
	}
}
