package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompactSegmentsSkipsActiveSegment(t *testing.T) {
	dir := t.TempDir()
	w := openTestWAL(t, dir)
	defer w.Close()

	for i := 0; i < 3; i++ {
		if _, err := w.Append(Entry{Kind: EntryCreateNode, Tenant: "t", NodeID: 1}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	w.Sync()

	compacted, err := CompactSegments(dir, w.Sequence())
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	// Only one segment exists and it's the active one, so nothing should
	// be compacted.
	if compacted != 0 {
		t.Fatalf("expected 0 segments compacted (active segment must be skipped), got %d", compacted)
	}
}

func TestCompactSegmentsCompressesOlderSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WALConfig{Dir: dir, SyncMode: true, MaxSegmentBytes: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		seq, err := w.Append(Entry{Kind: EntryCreateNode, Tenant: "t", NodeID: 1})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		lastSeq = seq
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var segments int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".log" {
			segments++
		}
	}
	if segments < 2 {
		t.Fatalf("expected MaxSegmentBytes=1 to force multiple segments, got %d", segments)
	}

	compacted, err := CompactSegments(dir, lastSeq)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if compacted != segments-1 {
		t.Fatalf("expected %d segments compacted (all but the active one), got %d", segments-1, compacted)
	}

	compactedEntries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir after compaction: %v", err)
	}
	var gzFiles int
	for _, e := range compactedEntries {
		if filepath.Ext(e.Name()) == ".gz" {
			gzFiles++
		}
	}
	if gzFiles != segments-1 {
		t.Fatalf("expected %d .gz files after compaction, got %d", segments-1, gzFiles)
	}
}
