package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
)

const (
	UserDataFile = "user_data.json"
	SyncFile     = "sync_info.json"
	InboxFile    = "new_events.json"
)

// FileStore keeps each document in its own JSON file under one directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the full path of one of the store files.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Load(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx), nil
}

func (s *FileStore) load(ctx context.Context) Document {
	var doc Document
	readJSON(ctx, s.Path(UserDataFile), &doc)
	return doc
}

func (s *FileStore) Update(ctx context.Context, fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	if err := fn(&doc); err != nil {
		return err
	}
	if err := writeJSON(s.Path(UserDataFile), doc); err != nil {
		return fmt.Errorf("write user data: %w", err)
	}
	return nil
}

func (s *FileStore) LoadSync(ctx context.Context) (calsync.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec calsync.Record
	if !readJSON(ctx, s.Path(SyncFile), &rec) || len(rec.Created) == 0 {
		return calsync.Record{}, ErrNoSyncRecord
	}
	return rec, nil
}

func (s *FileStore) SaveSync(_ context.Context, rec calsync.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.Path(SyncFile), rec); err != nil {
		return fmt.Errorf("write sync record: %w", err)
	}
	return nil
}

func (s *FileStore) DeleteSync(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.Path(SyncFile))
}

func (s *FileStore) Inbox(ctx context.Context) ([]event.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []event.Request
	readJSON(ctx, s.Path(InboxFile), &reqs)
	return reqs, nil
}

func (s *FileStore) ClearInbox(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.Path(InboxFile))
}

// readJSON decodes path into v. A missing or corrupt file leaves v untouched
// and reports false; corruption is logged.
func readJSON(ctx context.Context, path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("read failed, using empty data")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("corrupt file, using empty data")
		return false
	}
	return true
}

// writeJSON writes v atomically: a temp file in the same directory is
// synced, set to 0600 and renamed over path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
