package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "rankwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// One document per file under the data directory (<dir>/<key>.json).
// Saves go through a temp file in the same directory followed by a
// rename, so a reader never observes a half-written document.
type fileStore struct {
	log logx.Logger

	mu  sync.Mutex
	dir string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dir, err)
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", key, err)
	}
	return b, nil
}

func (s *fileStore) Save(ctx context.Context, key string, doc []byte) error {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write document %q: %w", key, err)
	}
	if _, err := f.Write(doc); err != nil {
		_ = f.Close()
		s.cleanupTmp(tmp)
		return fmt.Errorf("write document %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		s.cleanupTmp(tmp)
		return fmt.Errorf("write document %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		s.cleanupTmp(tmp)
		return fmt.Errorf("replace document %q: %w", key, err)
	}
	return nil
}

func (s *fileStore) cleanupTmp(tmp string) {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("temp file cleanup failed", logx.String("path", tmp), logx.Err(err))
	}
}

func (s *fileStore) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key != filepath.Base(key) {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
