package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
)

// CompactSegments gzip-compresses every WAL segment in dir whose highest
// sequence is <= upToSequence, per spec §4.G: "it is then safe — though not
// required — to truncate prior WAL files" after a checkpoint. Rather than
// truncate outright, segments are compressed to "<name>.gz" and the
// original removed, keeping the durable history available for audit/replay
// tooling without paying uncompressed disk cost.
func CompactSegments(dir string, upToSequence uint64) (compacted int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("persistence: read wal directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for i, name := range names {
		// Never compact the active (last) segment: it may still be open
		// for appends.
		if i == len(names)-1 {
			continue
		}
		highest, err := segmentHighestSequence(filepath.Join(dir, name))
		if err != nil {
			return compacted, err
		}
		if highest > upToSequence {
			continue
		}
		if err := compactSegment(dir, name); err != nil {
			return compacted, err
		}
		compacted++
	}
	return compacted, nil
}

func segmentHighestSequence(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("persistence: open wal segment: %w", err)
	}
	defer f.Close()

	var highest uint64
	err = forEachRecord(f, func(seq uint64, _ Entry) error {
		if seq > highest {
			highest = seq
		}
		return nil
	})
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	return highest, nil
}

func compactSegment(dir, name string) error {
	srcPath := filepath.Join(dir, name)
	dstPath := srcPath + ".gz"

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("persistence: open segment for compaction: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("persistence: create compacted segment: %w", err)
	}
	defer dst.Close()

	enc, err := gzip.NewWriterLevel(dst, gzip.BestSpeed)
	if err != nil {
		return fmt.Errorf("persistence: create gzip encoder: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		return fmt.Errorf("persistence: compact segment: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("persistence: finalize compacted segment: %w", err)
	}

	return os.Remove(srcPath)
}
