package cachestore

import (
	"context"
	"testing"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/observe"
)

func samplePathSet() observe.PathSet {
	return observe.PathSet{
		Entries: []observe.PathSetEntry{
			{Path: 1, Flags: observe.FileProbe, Kind: observe.ExistingFileProbe},
		},
		AccessedFileNames: []string{"a.go"},
		UnsafeOptionsTag:  "v1",
	}
}

func TestMemoryStorePublishAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	weak := fingerprint.NewBuilder().AppendString("weak").Sum()
	strong := fingerprint.NewBuilder().AppendString("strong").Sum()
	pathSet := samplePathSet()
	metadata := Metadata{StrongFingerprint: strong, OutputManifest: []OutputEntry{{Path: "out", Hash: fingerprint.EmptyFile()}}}

	if err := store.Publish(ctx, weak, pathSet, strong, metadata); err != nil {
		t.Fatal(err)
	}

	candidates, err := store.QueryPathSets(ctx, weak, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].PathSetHash != HashPathSet(pathSet) {
		t.Fatal("expected round-tripped path set to hash identically")
	}
	if len(candidates[0].PathSet.Entries) != len(pathSet.Entries) || candidates[0].PathSet.AccessedFileNames[0] != "a.go" {
		t.Fatal("expected round-tripped path set entries and accessed file names to be preserved exactly")
	}

	record, hit, err := store.QueryStrongFingerprint(ctx, weak, HashPathSet(pathSet), strong)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Fatal("expected a strong-fingerprint hit after publish")
	}
	if record.OutputManifest[0].Path != "out" {
		t.Fatal("expected metadata to round-trip")
	}
}

func TestMemoryStorePublishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	weak := fingerprint.NewBuilder().AppendString("weak").Sum()
	strong := fingerprint.NewBuilder().AppendString("strong").Sum()
	pathSet := samplePathSet()
	metadata := Metadata{StrongFingerprint: strong}

	if err := store.Publish(ctx, weak, pathSet, strong, metadata); err != nil {
		t.Fatal(err)
	}
	if err := store.Publish(ctx, weak, pathSet, strong, metadata); err != nil {
		t.Fatal(err)
	}

	candidates, err := store.QueryPathSets(ctx, weak, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected republishing an identical triple to be a no-op, got %d candidates", len(candidates))
	}
}

func TestMemoryStoreQueryStrongFingerprintMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	weak := fingerprint.NewBuilder().AppendString("weak").Sum()

	_, hit, err := store.QueryStrongFingerprint(ctx, weak, "nonexistent", fingerprint.Fingerprint{})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Fatal("expected a miss for an unpublished key")
	}
}
