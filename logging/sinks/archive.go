package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"mendbots/server/logging"
)

// ArchiveSink writes zstd-compressed JSONL event archives, one file per
// hour, for offline analysis. Files are named <prefix>-<hour>.jsonl.zst
// under the configured directory.
type ArchiveSink struct {
	mu      sync.Mutex
	dir     string
	prefix  string
	hourKey string
	file    *os.File
	encoder *zstd.Encoder
	buf     *bufio.Writer
}

func NewArchiveSink(cfg logging.ArchiveConfig) (*ArchiveSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("archive sink: directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive sink: mkdir %s: %w", cfg.Dir, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "events"
	}
	return &ArchiveSink{dir: cfg.Dir, prefix: prefix}, nil
}

func (s *ArchiveSink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := event.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}
	if err := s.rotateLocked(stamp.UTC().Format("2006-01-02-15")); err != nil {
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	return s.buf.WriteByte('\n')
}

func (s *ArchiveSink) rotateLocked(hourKey string) error {
	if s.file != nil && s.hourKey == hourKey {
		return nil
	}
	if err := s.closeCurrentLocked(); err != nil {
		return err
	}

	name := fmt.Sprintf("%s-%s.jsonl.zst", s.prefix, hourKey)
	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("archive sink: open %s: %w", name, err)
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		file.Close()
		return fmt.Errorf("archive sink: encoder: %w", err)
	}

	s.file = file
	s.encoder = encoder
	s.buf = bufio.NewWriterSize(encoder, 128*1024)
	s.hourKey = hourKey
	return nil
}

func (s *ArchiveSink) closeCurrentLocked() error {
	if s.file == nil {
		return nil
	}
	var firstErr error
	if err := s.buf.Flush(); err != nil {
		firstErr = err
	}
	if err := s.encoder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.file = nil
	s.encoder = nil
	s.buf = nil
	s.hourKey = ""
	return firstErr
}

func (s *ArchiveSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCurrentLocked()
}
