package network

import "sync"

type transferSample struct {
	bytes      uint64
	durationMs uint64
}

// BandwidthEstimator tracks recent transfer speeds and produces a
// recency-weighted bandwidth estimate. The estimate is reported on its
// own (Client.EstimatedBandwidthKbps); it does not feed into Status,
// its quality score, or Status.SuggestedImageQuality.
type BandwidthEstimator struct {
	mu         sync.Mutex
	samples    []transferSample
	maxSamples int
}

// NewBandwidthEstimator creates an estimator retaining up to maxSamples
// recent transfers.
func NewBandwidthEstimator(maxSamples int) *BandwidthEstimator {
	return &BandwidthEstimator{maxSamples: maxSamples}
}

// RecordTransfer records a completed transfer of the given size and
// duration. Zero-duration transfers are ignored as unmeasurable.
func (b *BandwidthEstimator) RecordTransfer(bytes, durationMs uint64) {
	if durationMs == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) >= b.maxSamples {
		b.samples = b.samples[1:]
	}
	b.samples = append(b.samples, transferSample{bytes: bytes, durationMs: durationMs})
}

// EstimateKbps returns a weighted-moving-average bandwidth estimate in
// Kbps, weighting more recent samples more heavily. Returns 0 if no
// samples have been recorded.
func (b *BandwidthEstimator) EstimateKbps() uint32 {
	b.mu.Lock()
	samples := append([]transferSample(nil), b.samples...)
	b.mu.Unlock()

	if len(samples) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	n := float64(len(samples))
	for i, s := range samples {
		kbps := (float64(s.bytes) * 8.0) / float64(s.durationMs)
		weight := float64(i+1) / n
		weightedSum += kbps * weight
		weightTotal += weight
	}

	if weightTotal == 0 {
		return 0
	}
	return uint32(weightedSum / weightTotal)
}

// Reset clears all recorded samples.
func (b *BandwidthEstimator) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
