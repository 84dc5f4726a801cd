package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityDepth/internal/model"
)

const maxLineSize = 16 << 20

// JsonlStorage writes depth snapshots to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutSnapshots appends snapshots as JSON lines.
func (s *JsonlStorage) PutSnapshots(_ context.Context, snapshots []model.DepthSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, snapshot := range snapshots {
		line, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// LatestSnapshot scans the file for the last snapshot of the pool by capture time.
func (s *JsonlStorage) LatestSnapshot(ctx context.Context, id model.PoolIdentity) (model.DepthSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.DepthSnapshot{}, false, nil
		}
		return model.DepthSnapshot{}, false, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	var (
		latest model.DepthSnapshot
		found  bool
		line   int
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return model.DepthSnapshot{}, false, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var snapshot model.DepthSnapshot
		if err := json.Unmarshal(scanner.Bytes(), &snapshot); err != nil {
			return model.DepthSnapshot{}, false, fmt.Errorf("decode snapshot line %d: %w", line, err)
		}
		if snapshot.Identity() != id {
			continue
		}
		if !found || !snapshot.CapturedAt.Before(latest.CapturedAt) {
			latest, found = snapshot, true
		}
	}
	if err := scanner.Err(); err != nil {
		return model.DepthSnapshot{}, false, fmt.Errorf("read snapshot file: %w", err)
	}
	latest.RestoreSides()
	return latest, found, nil
}
