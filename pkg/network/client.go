package network

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/localcore/client/pkg/httpcache"
	"github.com/localcore/client/pkg/netqueue"
)

// Config configures a new Client.
type Config struct {
	// AppID names the app this client belongs to, used to derive
	// per-engine database paths under DBDir.
	AppID string
	// DBDir is the directory holding the queue and cache databases, or
	// empty/":memory:" components to run either engine ephemeral.
	DBDir string
	// MaxCacheBytes bounds the response cache, default 50MB if zero.
	MaxCacheBytes int64
	// EnableQueue turns on offline request queuing.
	EnableQueue bool
	// EnableCache turns on response caching.
	EnableCache bool
	// AutoCompress gzip-compresses large request bodies before queuing
	// when the caller also asks for compression on Enqueue.
	AutoCompress bool
}

const defaultMaxCacheBytes = 50 * 1024 * 1024

// Client composes the priority request queue, response cache, and
// connection-quality model behind one facade, mirroring how a mobile
// client would drive all three off a single observed network status.
type Client struct {
	queue     *netqueue.Queue
	cache     *httpcache.Cache
	bandwidth *BandwidthEstimator
	mu        sync.Mutex
	status    Status
	cfg       Config
}

// NewClient opens the enabled engines per cfg.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		bandwidth: NewBandwidthEstimator(50),
		status:    FromConnectionType(ConnectionUnknown),
		cfg:       cfg,
	}

	if cfg.EnableQueue {
		q, err := netqueue.New(netqueue.Config{DBPath: dbPath(cfg.DBDir, cfg.AppID, "queue")})
		if err != nil {
			return nil, fmt.Errorf("network: open queue: %w", err)
		}
		c.queue = q
	}

	if cfg.EnableCache {
		maxBytes := cfg.MaxCacheBytes
		if maxBytes == 0 {
			maxBytes = defaultMaxCacheBytes
		}
		cache, err := httpcache.New(httpcache.Config{DBPath: dbPath(cfg.DBDir, cfg.AppID, "cache"), MaxSizeBytes: maxBytes})
		if err != nil {
			return nil, fmt.Errorf("network: open cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

func dbPath(dbDir, appID, suffix string) string {
	if dbDir == "" || dbDir == ":memory:" {
		return ":memory:"
	}
	return fmt.Sprintf("%s/%s.network.%s.db", dbDir, appID, suffix)
}

// Close releases any open engine handles.
func (c *Client) Close() error {
	var firstErr error
	if c.queue != nil {
		if err := c.queue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ErrInvalidConfig is returned by queue/cache operations when the
// corresponding subsystem was not enabled in Config. It realizes the
// InvalidConfig error kind: disabled or misconfigured subsystems
// surface a typed error at the call site rather than panicking.
var ErrInvalidConfig = fmt.Errorf("network: subsystem disabled by config")

// ParseConnectionType maps a loosely-formatted platform string (e.g.
// "wifi", "4g", "lte", "ethernet") to a ConnectionType, defaulting to
// ConnectionUnknown for anything unrecognized.
func ParseConnectionType(s string) ConnectionType {
	switch strings.ToLower(s) {
	case "offline", "none":
		return ConnectionOffline
	case "2g", "cellular2g":
		return ConnectionCellular2G
	case "3g", "cellular3g":
		return ConnectionCellular3G
	case "4g", "lte", "cellular4g":
		return ConnectionCellular4G
	case "5g", "cellular5g":
		return ConnectionCellular5G
	case "wifi":
		return ConnectionWiFi
	case "ethernet", "wired":
		return ConnectionEthernet
	default:
		return ConnectionUnknown
	}
}

// UpdateStatus records an updated network status, as reported by the
// host platform's connectivity layer.
func (c *Client) UpdateStatus(connectionType string, downlinkKbps, rttMillis uint32, saveData bool) {
	status := FromConnectionType(ParseConnectionType(connectionType))
	if downlinkKbps > 0 {
		status.DownlinkKbps = downlinkKbps
	}
	if rttMillis > 0 {
		status.RTTMillis = rttMillis
	}
	status.SaveData = saveData

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// Status returns the most recently recorded network status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SuggestedTimeout returns the timeout suggested for the current
// network status.
func (c *Client) SuggestedTimeout() time.Duration {
	return c.Status().SuggestedTimeout()
}

// SuggestedImageQuality returns the image quality suggested for the
// current network status.
func (c *Client) SuggestedImageQuality() ImageQuality {
	return c.Status().SuggestedImageQuality()
}

// RecordTransfer feeds a completed transfer into the bandwidth
// estimator.
func (c *Client) RecordTransfer(bytes, durationMs uint64) {
	c.bandwidth.RecordTransfer(bytes, durationMs)
}

// EstimatedBandwidthKbps returns the current bandwidth estimate.
func (c *Client) EstimatedBandwidthKbps() uint32 {
	return c.bandwidth.EstimateKbps()
}

// EnqueueRequest queues a request for later delivery, auto-compressing
// the body when cfg.AutoCompress and compress are both true and the
// body is large enough to benefit.
func (c *Client) EnqueueRequest(method netqueue.Method, url, headersJSON, body string, priority netqueue.Priority, compress bool, tag string) (string, error) {
	if c.queue == nil {
		return "", ErrInvalidConfig
	}

	finalBody := body
	if c.cfg.AutoCompress && compress && ShouldCompress([]byte(body)) {
		compressed, err := CompressString(body)
		if err != nil {
			return "", err
		}
		finalBody = compressed
	}

	return c.queue.Enqueue(method, url, headersJSON, finalBody, priority, compress, tag)
}

// DequeueRequest returns the next request eligible to send given the
// current network quality score, or nil if none is eligible.
func (c *Client) DequeueRequest() (*netqueue.Request, error) {
	if c.queue == nil {
		return nil, ErrInvalidConfig
	}
	return c.queue.Dequeue(c.Status().QualityScore)
}

// CompleteRequest marks a queued request delivered.
func (c *Client) CompleteRequest(id string) (bool, error) {
	if c.queue == nil {
		return false, ErrInvalidConfig
	}
	return c.queue.Complete(id)
}

// FailRequest records a failed delivery attempt.
func (c *Client) FailRequest(id string) (bool, error) {
	if c.queue == nil {
		return false, ErrInvalidConfig
	}
	return c.queue.Fail(id)
}

// CancelRequest removes a specific queued request.
func (c *Client) CancelRequest(id string) (bool, error) {
	if c.queue == nil {
		return false, ErrInvalidConfig
	}
	return c.queue.Cancel(id)
}

// CancelByTag removes every queued request carrying tag.
func (c *Client) CancelByTag(tag string) (int, error) {
	if c.queue == nil {
		return 0, ErrInvalidConfig
	}
	return c.queue.CancelByTag(tag)
}

// QueueSize returns the total number of queued requests.
func (c *Client) QueueSize() (int, error) {
	if c.queue == nil {
		return 0, ErrInvalidConfig
	}
	return c.queue.Size()
}

// ClearQueue empties the request queue.
func (c *Client) ClearQueue() error {
	if c.queue == nil {
		return ErrInvalidConfig
	}
	return c.queue.Clear()
}

// GetCached returns a cached response for method+url, if present and
// unexpired.
func (c *Client) GetCached(method, url string) (httpcache.Entry, bool, error) {
	if c.cache == nil {
		return httpcache.Entry{}, false, ErrInvalidConfig
	}
	return c.cache.Get(method, url)
}

// CacheResponse stores a response in the cache.
func (c *Client) CacheResponse(method, url string, statusCode int, headersJSON, body string, ttl time.Duration, etag, lastModified string) error {
	if c.cache == nil {
		return ErrInvalidConfig
	}
	return c.cache.Put(method, url, statusCode, headersJSON, body, ttl, etag, lastModified)
}

// CacheStats reports aggregate cache counters.
func (c *Client) CacheStats() (httpcache.Stats, error) {
	if c.cache == nil {
		return httpcache.Stats{}, ErrInvalidConfig
	}
	return c.cache.Stats()
}
