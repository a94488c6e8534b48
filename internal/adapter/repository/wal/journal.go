package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/domain"
)

const (
	segmentPrefix  = "segment-"
	segmentSuffix  = ".log"
	compactPattern = "compact-*.tmp"
	filePerm       = 0644
)

// record is one journal line: a full lease snapshot including its ledger,
// which the lease JSON leaves out.
type record struct {
	Lease  *domain.Lease       `json:"lease"`
	Ledger []domain.Adjustment `json:"ledger"`
}

// Journal is a segmented append-only file of lease snapshots. Replaying it
// in order rebuilds the latest state of every lease.
type Journal struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	// lastSegment is the timestamp of the newest segment name handed out.
	lastSegment int64
}

// NewJournal opens the journal in dir, creating it if needed.
func NewJournal(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	j := &Journal{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "lease_journal"),
	}

	// A compaction interrupted by a crash leaves its temporary file behind.
	leftovers, _ := filepath.Glob(filepath.Join(dir, compactPattern))
	for _, path := range leftovers {
		if err := os.Remove(path); err != nil {
			j.logger.Warn("Failed to remove leftover compaction file", "path", path, "error", err)
		}
	}

	if err := j.openLatestSegment(); err != nil {
		return nil, err
	}

	return j, nil
}

// Append writes a snapshot of l and syncs it to disk.
func (j *Journal) Append(ctx context.Context, l *domain.Lease) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := encodeRecord(l)
	if err != nil {
		return err
	}

	if j.currentSegment == nil {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	totalSize, err := j.calculateTotalSize()
	if err != nil {
		return fmt.Errorf("could not verify journal disk space: %w", err)
	}
	if totalSize+int64(len(data)) > j.maxTotalSize {
		return fmt.Errorf("journal max total size exceeded (%d > %d)", totalSize, j.maxTotalSize)
	}

	n, err := j.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to journal segment: %w", err)
	}
	j.currentSize += int64(n)
	if err := j.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}

	if j.currentSize >= j.maxSegmentSize {
		if err := j.rotate(); err != nil {
			j.logger.Error("Failed to rotate journal segment", "error", err)
		}
	}

	return nil
}

// Replay calls handler for every snapshot in write order. Corrupt lines are
// skipped.
func (j *Journal) Replay(ctx context.Context, handler func(l *domain.Lease) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	count := 0
	for _, segmentPath := range segments {
		n, err := j.replaySegment(ctx, segmentPath, handler)
		count += n
		if err != nil {
			return err
		}
	}

	j.logger.Info("Journal replay completed", "segment_count", len(segments), "records", count)
	return nil
}

func (j *Journal) replaySegment(ctx context.Context, path string, handler func(l *domain.Lease) error) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.Lease == nil {
			j.logger.Warn("Failed to decode journal record, skipping", "error", err, "segment", path)
			continue
		}
		rec.Lease.Ledger = rec.Ledger
		if err := handler(rec.Lease); err != nil {
			return count, fmt.Errorf("replay handler failed: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return count, nil
}

// Compact replaces every segment with one snapshot per lease. The snapshots
// go to a temporary file that is not counted against the size cap and is
// renamed into place only once complete; a failed compaction leaves the
// existing segments untouched.
func (j *Journal) Compact(ctx context.Context, leases []*domain.Lease) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	old, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(j.dir, compactPattern)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := writeSnapshots(ctx, tmp, leases); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compaction file: %w", err)
	}

	if j.currentSegment != nil {
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before compacting", "error", err)
		}
		j.currentSegment = nil
	}
	compacted := filepath.Join(j.dir, j.nextSegmentName())
	if err := os.Rename(tmpPath, compacted); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install compacted segment: %w", err)
	}

	for _, segmentPath := range old {
		if err := os.Remove(segmentPath); err != nil {
			j.logger.Error("Failed to remove journal segment", "path", segmentPath, "error", err)
		}
	}
	j.logger.Info("Journal compacted", "leases", len(leases), "removed_segments", len(old))
	return j.rotate()
}

func writeSnapshots(ctx context.Context, f *os.File, leases []*domain.Lease) error {
	w := bufio.NewWriter(f)
	for _, l := range leases {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := encodeRecord(l)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write compaction file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write compaction file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync compaction file: %w", err)
	}
	return nil
}

func encodeRecord(l *domain.Lease) ([]byte, error) {
	data, err := json.Marshal(record{Lease: l, Ledger: l.Ledger})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lease %s for journal: %w", l.ID, err)
	}
	return append(data, '\n'), nil
}

func (j *Journal) rotate() error {
	if j.currentSegment != nil {
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before rotating", "error", err)
		}
		j.currentSegment = nil
	}

	path := filepath.Join(j.dir, j.nextSegmentName())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new journal segment %s: %w", path, err)
	}

	j.currentSegment = f
	j.currentSize = 0
	j.logger.Debug("Rotated to new journal segment", "path", path)
	return nil
}

func (j *Journal) openLatestSegment() error {
	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return j.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	j.lastSegment = segmentStamp(latestSegmentPath)
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	j.currentSegment = f
	j.currentSize = stat.Size()

	if j.currentSize >= j.maxSegmentSize {
		return j.rotate()
	}

	return nil
}

// nextSegmentName returns a name that sorts after every segment already
// handed out, even when the clock does not advance between two calls.
func (j *Journal) nextSegmentName() string {
	stamp := time.Now().UnixNano()
	if stamp <= j.lastSegment {
		stamp = j.lastSegment + 1
	}
	j.lastSegment = stamp
	return fmt.Sprintf("%s%020d%s", segmentPrefix, stamp, segmentSuffix)
}

func segmentStamp(path string) int64 {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), segmentPrefix), segmentSuffix)
	stamp, _ := strconv.ParseInt(name, 10, 64)
	return stamp
}

func (j *Journal) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(j.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (j *Journal) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// Close closes the current segment.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentSegment != nil {
		err := j.currentSegment.Close()
		j.currentSegment = nil
		return err
	}
	return nil
}
