// Package tradelog appends one JSON line per executed order leg. The log is
// the only state that survives a restart; everything else is rebuilt from the
// venues.
package tradelog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/crossvenue/crossarb/pkg/types"
)

// Entry is one executed leg.
type Entry struct {
	Time          time.Time   `json:"ts"`
	OpportunityID string      `json:"opportunity_id"`
	Venue         types.Venue `json:"venue"`
	TokenID       string      `json:"token_id"`
	Side          types.Side  `json:"side"`
	OrderQty      float64     `json:"order_qty"`
	LimitPrice    float64     `json:"limit_price"`
	FilledQty     float64     `json:"filled_qty"`
	AvgFillPrice  float64     `json:"avg_fill_price"`
	Fee           float64     `json:"fee"`
}

// Log is a size-rotated JSON-lines file. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	maxBytes int64
	keep     int
	size     int64
}

// Open opens (or creates) the log at path. When the file exceeds maxBytes it
// is rotated, keeping at most keep old files.
func Open(path string, maxBytes int64, keep int) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("trade log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trade log: %w", err)
	}
	return &Log{f: f, path: path, maxBytes: maxBytes, keep: keep, size: info.Size()}, nil
}

// LogLeg appends one entry.
func (l *Log) LogLeg(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal trade log entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxBytes > 0 && l.size+int64(len(line)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			return err
		}
	}
	n, err := l.f.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("write trade log: %w", err)
	}
	return nil
}

// rotate shifts path.N-1 -> path.N and reopens a fresh file. Caller holds the
// lock.
func (l *Log) rotate() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close trade log: %w", err)
	}
	for i := l.keep - 1; i >= 1; i-- {
		os.Rename(rotatedName(l.path, i), rotatedName(l.path, i+1))
	}
	if l.keep > 0 {
		if err := os.Rename(l.path, rotatedName(l.path, 1)); err != nil {
			return fmt.Errorf("rotate trade log: %w", err)
		}
	} else {
		os.Remove(l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen trade log: %w", err)
	}
	l.f = f
	l.size = 0
	return nil
}

func rotatedName(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
