package sampler

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pipforge/pipcore/pkg/logging"
)

// defaultInterval is §4.8's default sampling tick.
const defaultInterval = 2 * time.Second

// Breakdown is the percentage split across all eight buckets. Once any time
// has accumulated it sums to exactly 100 (remainder assigned to Other); with
// none accumulated, every bucket reports 0.
type Breakdown map[Bucket]float64

// Sampler accumulates per-bucket milliseconds across Tick calls and exposes
// a percentage breakdown. It takes an internal lock around its counter map
// (§5); Tick never blocks on that lock — if it is contended, the elapsed
// interval is silently carried forward and credited to whichever bucket was
// active at the last successful Tick, rather than lost or attributed to the
// blocking caller.
type Sampler struct {
	// SessionID namespaces this sampler's counters so that diagnostics from
	// distinct builds never collide.
	SessionID uuid.UUID

	logger *logging.Logger

	mu           sync.Mutex
	counts       map[Bucket]time.Duration
	lastBucket   Bucket
	pendingSince time.Time
}

// New creates a Sampler, stamping it with a fresh build-session identifier.
func New(logger *logging.Logger) *Sampler {
	return &Sampler{
		SessionID:    uuid.New(),
		logger:       logger,
		counts:       make(map[Bucket]time.Duration, len(allBuckets)),
		lastBucket:   Other,
		pendingSince: time.Time{},
	}
}

// Tick classifies s and folds the elapsed time since the last successful
// tick into the bucket that was active then. Call this once per sampling
// interval (default 2s, §4.8); the scheduler, not this package, owns the
// ticker, since sample collection must never itself block pip execution.
func (s *Sampler) Tick(now time.Time, snapshot Snapshot) {
	bucket := classify(snapshot)

	if !s.mu.TryLock() {
		s.logger.Tracef("sampler tick skipped due to contention; carrying elapsed time forward")
		return
	}
	defer s.mu.Unlock()

	if !s.pendingSince.IsZero() {
		s.counts[s.lastBucket] += now.Sub(s.pendingSince)
	}
	s.lastBucket = bucket
	s.pendingSince = now
}

// Snapshot returns the current percentage breakdown across all eight
// buckets, summing to exactly 100 once any time has accumulated. Buckets
// with zero accumulated time report 0, so a sampler with no time at all
// reports 0 everywhere.
func (s *Sampler) Snapshot() Breakdown {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total time.Duration
	for _, d := range s.counts {
		total += d
	}

	breakdown := make(Breakdown, len(allBuckets))
	if total == 0 {
		for _, b := range allBuckets {
			breakdown[b] = 0
		}
		return breakdown
	}

	var assigned float64
	for _, b := range allBuckets {
		if b == Other {
			continue
		}
		pct := float64(s.counts[b]) / float64(total) * 100
		breakdown[b] = pct
		assigned += pct
	}
	remainder := 100 - assigned
	if remainder < 0 {
		remainder = 0
	}
	breakdown[Other] = remainder
	return breakdown
}

// DiagnosticString renders a snapshot in human-readable form for log lines,
// using go-humanize for the byte and percentage formatting the teacher's
// CLI output helpers favor.
func (s Snapshot) DiagnosticString() string {
	return humanize.Bytes(s.AvailableMemoryBytes) + " available, " +
		humanize.FormatFloat("#.#", s.CPUPercent) + "% cpu, " +
		humanize.FormatFloat("#.#", s.MaxDiskActiveTimePercent) + "% disk active, " +
		humanize.Comma(int64(s.ReadyPips)) + " ready pips"
}

// DefaultInterval returns the documented default sampling cadence, for
// callers that want to drive a ticker at it.
func DefaultInterval() time.Duration { return defaultInterval }
