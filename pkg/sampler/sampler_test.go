package sampler

import (
	"testing"
	"time"

	"github.com/pipforge/pipcore/pkg/logging"
)

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want Bucket
	}{
		{"semaphore beats cpu", Snapshot{RecentLimiter: SemaphoreLimiter, CPUPercent: 100}, Semaphore},
		{"projected memory limiter", Snapshot{RecentLimiter: ProjectedMemoryLimiter}, ProjectedMemory},
		{"cpu beats memory", Snapshot{CPUPercent: 99, AvailableMemoryBytes: 100}, CPU},
		{"memory beats disk", Snapshot{AvailableMemoryBytes: 100, MaxDiskActiveTimePercent: 99}, Memory},
		{"disk beats graph-shape", Snapshot{AvailableMemoryBytes: 1 << 30, MaxDiskActiveTimePercent: 99, ReadyPips: 1}, Disk},
		{"graph-shape when starved", Snapshot{AvailableMemoryBytes: 1 << 30, ReadyPips: 1}, GraphShape},
		{"other otherwise", Snapshot{AvailableMemoryBytes: 1 << 30, ReadyPips: 10}, Other},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.snap); got != c.want {
				t.Fatalf("classify(%+v) = %s, want %s", c.snap, got, c.want)
			}
		})
	}
}

func TestSnapshotBreakdownSumsTo100(t *testing.T) {
	s := New(logging.RootLogger)
	base := time.Unix(0, 0)

	s.Tick(base, Snapshot{AvailableMemoryBytes: 1 << 30, ReadyPips: 10})
	s.Tick(base.Add(1*time.Second), Snapshot{CPUPercent: 99})
	s.Tick(base.Add(2*time.Second), Snapshot{AvailableMemoryBytes: 1 << 30, ReadyPips: 10})

	breakdown := s.Snapshot()
	var sum float64
	for _, pct := range breakdown {
		sum += pct
	}
	if sum < 99.999 || sum > 100.001 {
		t.Fatalf("expected breakdown to sum to 100, got %f", sum)
	}
}

func TestSnapshotEmptyIsAllZero(t *testing.T) {
	s := New(logging.RootLogger)
	breakdown := s.Snapshot()
	for b, pct := range breakdown {
		if pct != 0 {
			t.Fatalf("expected zero accumulated time to produce an all-zero breakdown, bucket %s = %f", b, pct)
		}
	}
}
