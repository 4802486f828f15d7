package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	redisclient "github.com/Adithya-Monish-Kumar-K/infospark/pkg/redis"
)

// Store holds a single encoded index blob. Load returns an error wrapping
// ErrSnapshotNotFound when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
	String() string
}

// SaveIndex encodes ix and writes it to store.
func SaveIndex(ctx context.Context, store Store, ix *index.Index) (int, error) {
	data, err := Encode(ix)
	if err != nil {
		return 0, fmt.Errorf("encoding index: %w", err)
	}
	if err := store.Save(ctx, data); err != nil {
		return 0, fmt.Errorf("saving index to %s: %w", store, err)
	}
	return len(data), nil
}

// LoadIndex reads and decodes the blob in store.
func LoadIndex(ctx context.Context, store Store) (*index.Index, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// FileStore keeps the blob in one file. Saves write a temporary file, sync
// it and rename it over the target, so readers see either the old or the
// new blob.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) String() string { return "file:" + s.path }

func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, apperrors.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return data, nil
}

// KV is the subset of the Redis client used by RedisStore.
type KV interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisStore keeps the blob under a single Redis key with no expiry.
type RedisStore struct {
	kv  KV
	key string
}

func NewRedisStore(kv KV, key string) *RedisStore {
	return &RedisStore{kv: kv, key: key}
}

func (s *RedisStore) String() string { return "redis:" + s.key }

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.kv.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("writing redis key %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.kv.GetBytes(ctx, s.key)
	if redisclient.IsNilError(err) {
		return nil, fmt.Errorf("redis key %s: %w", s.key, apperrors.ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading redis key %s: %w", s.key, err)
	}
	return data, nil
}
