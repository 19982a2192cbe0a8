// Package network models connection quality and composes the
// netqueue and httpcache engines into a single offline-aware client
// facade: bandwidth-aware request gating, gzip payload compression,
// and adaptive image-quality hints all key off the same quality score
// used to gate netqueue.Dequeue.
package network

import "time"

// ConnectionType names a class of network connection.
type ConnectionType int

const (
	ConnectionOffline ConnectionType = iota
	ConnectionCellular2G
	ConnectionCellular3G
	ConnectionCellular4G
	ConnectionCellular5G
	ConnectionWiFi
	ConnectionEthernet
	ConnectionUnknown
)

// bandwidthRange is the typical downlink range, in Kbps, for a
// connection type.
type bandwidthRange struct{ min, max uint32 }

var bandwidthRanges = map[ConnectionType]bandwidthRange{
	ConnectionOffline:    {0, 0},
	ConnectionCellular2G: {50, 200},
	ConnectionCellular3G: {1000, 5000},
	ConnectionCellular4G: {5000, 50000},
	ConnectionCellular5G: {50000, 1000000},
	ConnectionWiFi:       {5000, 100000},
	ConnectionEthernet:   {10000, 1000000},
	ConnectionUnknown:    {100, 1000},
}

var qualityScores = map[ConnectionType]uint8{
	ConnectionOffline:    0,
	ConnectionCellular2G: 15,
	ConnectionCellular3G: 40,
	ConnectionCellular4G: 70,
	ConnectionCellular5G: 90,
	ConnectionWiFi:       80,
	ConnectionEthernet:   95,
	ConnectionUnknown:    20,
}

var typicalRTT = map[ConnectionType]uint32{
	ConnectionOffline:    0,
	ConnectionCellular2G: 800,
	ConnectionCellular3G: 200,
	ConnectionCellular4G: 50,
	ConnectionCellular5G: 10,
	ConnectionWiFi:       30,
	ConnectionEthernet:   5,
	ConnectionUnknown:    500,
}

// TypicalBandwidthKbps returns the typical (min, max) downlink range
// for t, in Kbps.
func (t ConnectionType) TypicalBandwidthKbps() (min, max uint32) {
	r := bandwidthRanges[t]
	return r.min, r.max
}

// IsMetered reports whether t is a cellular connection type.
func (t ConnectionType) IsMetered() bool {
	switch t {
	case ConnectionCellular2G, ConnectionCellular3G, ConnectionCellular4G, ConnectionCellular5G:
		return true
	default:
		return false
	}
}

// QualityScore returns a 0 (offline) to 100 (excellent) quality score
// for t.
func (t ConnectionType) QualityScore() uint8 {
	return qualityScores[t]
}

// Status is the current network status, combining connection type with
// observed or estimated metrics.
type Status struct {
	ConnectionType ConnectionType
	DownlinkKbps   uint32
	RTTMillis      uint32
	SaveData       bool
	IsMetered      bool
	QualityScore   uint8
	IsOnline       bool
}

// Offline returns a Status representing no connectivity.
func Offline() Status {
	return Status{ConnectionType: ConnectionOffline}
}

// FromConnectionType builds a Status with estimated metrics for conn.
func FromConnectionType(conn ConnectionType) Status {
	min, max := conn.TypicalBandwidthKbps()
	avg := (min + max) / 2
	return Status{
		ConnectionType: conn,
		DownlinkKbps:   avg,
		RTTMillis:      typicalRTT[conn],
		IsMetered:      conn.IsMetered(),
		QualityScore:   conn.QualityScore(),
		IsOnline:       conn != ConnectionOffline,
	}
}

// SuggestedTimeout returns a request timeout scaled to the status's
// quality score.
func (s Status) SuggestedTimeout() time.Duration {
	switch {
	case s.QualityScore == 0:
		return 0
	case s.QualityScore <= 20:
		return 60 * time.Second
	case s.QualityScore <= 40:
		return 30 * time.Second
	case s.QualityScore <= 70:
		return 15 * time.Second
	case s.QualityScore <= 90:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

// ImageQuality is an adaptive image-loading quality level.
type ImageQuality int

const (
	ImagePlaceholder ImageQuality = iota
	ImageLow
	ImageMedium
	ImageHigh
	ImageOriginal
)

// MaxWidth returns the maximum image width, in pixels, suggested for q.
func (q ImageQuality) MaxWidth() uint32 {
	switch q {
	case ImagePlaceholder:
		return 0
	case ImageLow:
		return 144
	case ImageMedium:
		return 480
	case ImageHigh:
		return 1080
	default:
		return ^uint32(0)
	}
}

// JPEGQuality returns a suggested JPEG quality (0-100) for q.
func (q ImageQuality) JPEGQuality() uint8 {
	switch q {
	case ImagePlaceholder:
		return 0
	case ImageLow:
		return 30
	case ImageMedium:
		return 60
	case ImageHigh:
		return 80
	default:
		return 95
	}
}

// PreferredFormat returns the preferred image format name for q.
func (q ImageQuality) PreferredFormat() string {
	switch q {
	case ImagePlaceholder:
		return "none"
	case ImageLow:
		return "jpeg"
	case ImageMedium, ImageHigh:
		return "webp"
	default:
		return "avif"
	}
}

// SuggestedImageQuality returns the adaptive image quality for the
// status, forcing ImageLow whenever SaveData is set regardless of
// measured quality.
func (s Status) SuggestedImageQuality() ImageQuality {
	if s.SaveData {
		return ImageLow
	}
	switch {
	case s.QualityScore <= 14:
		return ImagePlaceholder
	case s.QualityScore <= 30:
		return ImageLow
	case s.QualityScore <= 60:
		return ImageMedium
	case s.QualityScore <= 80:
		return ImageHigh
	default:
		return ImageOriginal
	}
}
