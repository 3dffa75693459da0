// Package sampler implements the execution sampler (component H): at each
// sampling tick it classifies the scheduler's current bottleneck into one
// of eight resource-class buckets and accumulates per-class time, exposing
// a percentage breakdown for diagnostics (§4.8).
package sampler

// Bucket identifies a resource class the scheduler's current stall can be
// attributed to.
type Bucket uint8

const (
	// GraphShape indicates too few ready pips to saturate available
	// concurrency; the bottleneck is the dependency graph's shape, not a
	// resource.
	GraphShape Bucket = iota
	// CPU indicates the host's CPU is the bottleneck.
	CPU
	// Disk indicates a disk's active time is the bottleneck.
	Disk
	// Memory indicates available RAM is the bottleneck.
	Memory
	// ProjectedMemory indicates the memory-projection concurrency limiter is
	// the most recently engaged limiter.
	ProjectedMemory
	// Semaphore indicates a configured semaphore slot pool is the most
	// recently engaged limiter.
	Semaphore
	// ConcurrencyLimit indicates a generic slot-exhaustion limiter (not
	// semaphore or projected-memory specific) is the most recently engaged
	// limiter.
	ConcurrencyLimit
	// Other is the catch-all bucket; it also absorbs rounding remainder in
	// the percentage breakdown.
	Other
)

// String returns a human-readable name for the bucket.
func (b Bucket) String() string {
	switch b {
	case GraphShape:
		return "graph-shape"
	case CPU:
		return "cpu"
	case Disk:
		return "disk"
	case Memory:
		return "memory"
	case ProjectedMemory:
		return "projected-memory"
	case Semaphore:
		return "semaphore"
	case ConcurrencyLimit:
		return "concurrency-limit"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// allBuckets enumerates every bucket in a fixed order, used when building a
// deterministic percentage breakdown.
var allBuckets = []Bucket{GraphShape, CPU, Disk, Memory, ProjectedMemory, Semaphore, ConcurrencyLimit, Other}

// LimiterKind identifies which concurrency limiter most recently denied an
// admission request, if any.
type LimiterKind uint8

const (
	// NoLimiter indicates no limiter has recently engaged.
	NoLimiter LimiterKind = iota
	// SemaphoreLimiter indicates a configured slot-pool semaphore engaged.
	SemaphoreLimiter
	// ProjectedMemoryLimiter indicates the memory-projection limiter
	// engaged.
	ProjectedMemoryLimiter
	// GenericSlotExhaustion indicates some other concurrency limiter
	// engaged.
	GenericSlotExhaustion
)

// Snapshot is the scheduler state read at one sampling tick, per the
// priority order in §4.8.
type Snapshot struct {
	// RecentLimiter is the most recently engaged concurrency limiter, if
	// any, within the sampling window.
	RecentLimiter LimiterKind
	// CPUPercent is the host's current CPU utilization, 0-100.
	CPUPercent float64
	// AvailableMemoryBytes is the host's currently available RAM.
	AvailableMemoryBytes uint64
	// MaxDiskActiveTimePercent is the highest active-time percentage across
	// all disks, 0-100.
	MaxDiskActiveTimePercent float64
	// ReadyPips is the number of pips currently eligible to run.
	ReadyPips int
}

// classify implements §4.8's priority order over a single snapshot.
func classify(s Snapshot) Bucket {
	switch s.RecentLimiter {
	case SemaphoreLimiter:
		return Semaphore
	case ProjectedMemoryLimiter:
		return ProjectedMemory
	case GenericSlotExhaustion:
		return ConcurrencyLimit
	}
	if s.CPUPercent > 98 {
		return CPU
	}
	if s.AvailableMemoryBytes < 300*(1<<20) {
		return Memory
	}
	if s.MaxDiskActiveTimePercent > 95 {
		return Disk
	}
	if s.ReadyPips < 3 {
		return GraphShape
	}
	return Other
}
