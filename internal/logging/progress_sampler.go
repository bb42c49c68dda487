package logging

// ProgressSampler suppresses repetitive progress logs. It emits when the
// completed fraction crosses a bucket boundary (default 10%) and always on
// the final item.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket size in percent.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress at done/total should be logged.
// A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(done, total int) bool {
	if s == nil || total <= 0 {
		return true
	}
	if done >= total {
		return true
	}
	percent := float64(done) * 100 / float64(total)
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}
