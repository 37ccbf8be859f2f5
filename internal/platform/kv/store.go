// Package kv is the embedded Pebble backend. It offers ordered byte keys,
// prefix scans in both directions, named sequences and batched units of work
// that satisfy db.Transactor.
package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

type batchKey struct{}

// Store wraps a Pebble database. Writers are serialized: a unit of work holds
// the write lock from its first statement until commit, so read-modify-write
// sequences inside WithinTx never interleave.
type Store struct {
	db     *pebble.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	return open(path, &pebble.Options{}, logger)
}

// OpenInMemory opens a database backed by an in-memory filesystem.
func OpenInMemory(logger zerolog.Logger) (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()}, logger)
}

func open(path string, opts *pebble.Options, logger zerolog.Logger) (*Store, error) {
	pdb, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("pebble opened")
	return &Store{db: pdb, logger: logger}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close pebble: %w", err)
	}
	s.logger.Info().Msg("pebble closed")
	return nil
}

func batchFromContext(ctx context.Context) *pebble.Batch {
	b, _ := ctx.Value(batchKey{}).(*pebble.Batch)
	return b
}

func (s *Store) reader(ctx context.Context) pebble.Reader {
	if b := batchFromContext(ctx); b != nil {
		return b
	}
	return s.db
}

// WithinTx runs fn against an indexed batch that is committed with
// pebble.Sync when fn returns nil. A nested call joins the outer batch.
// Hooks registered with db.AfterCommit run after the commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if batchFromContext(ctx) != nil {
		return fn(ctx)
	}

	var hooks *db.CommitHooks
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		b := s.db.NewIndexedBatch()
		defer b.Close()

		var txCtx context.Context
		txCtx, hooks = db.WithCommitHooks(ctx)
		txCtx = context.WithValue(txCtx, batchKey{}, b)

		if err := fn(txCtx); err != nil {
			return err
		}
		if err := b.Commit(pebble.Sync); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		return nil
	}()
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

// Get returns a copy of the value stored at key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, closer, err := s.reader(ctx).Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// Set writes key. Outside a unit of work the write is synced immediately.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if b := batchFromContext(ctx); b != nil {
		return b.Set(key, value, nil)
	}
	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if b := batchFromContext(ctx); b != nil {
		return b.Delete(key, nil)
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value at key into v.
func (s *Store) GetJSON(ctx context.Context, key []byte, v interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and writes it at key.
func (s *Store) SetJSON(ctx context.Context, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// ScanFunc receives each key/value pair. Both slices are only valid for the
// duration of the call. Returning ErrStop ends the scan without error.
type ScanFunc func(key, value []byte) error

// ErrStop ends a scan early.
var ErrStop = errors.New("kv: stop scan")

// Scan visits every key with prefix in ascending order.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn ScanFunc) error {
	return s.scan(ctx, prefix, false, fn)
}

// ScanReverse visits every key with prefix in descending order.
func (s *Store) ScanReverse(ctx context.Context, prefix []byte, fn ScanFunc) error {
	return s.scan(ctx, prefix, true, fn)
}

func (s *Store) scan(ctx context.Context, prefix []byte, reverse bool, fn ScanFunc) error {
	iter, err := s.reader(ctx).NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})
	if err != nil {
		return fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	valid := iter.First
	step := iter.Next
	if reverse {
		valid, step = iter.Last, iter.Prev
	}
	for ok := valid(); ok; ok = step() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// NextSeq increments and returns the named sequence. The first value is 1.
func (s *Store) NextSeq(ctx context.Context, name string) (int64, error) {
	var next int64
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		key := []byte("seq/" + name)
		raw, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case len(raw) != 8:
			return fmt.Errorf("sequence %q is corrupt", name)
		default:
			next = int64(binary.BigEndian.Uint64(raw))
		}
		next++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(next))
		return s.Set(ctx, key, buf)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Check is a db.HealthCheck for the Pebble backend.
func (s *Store) Check(ctx context.Context) (interface{}, error) {
	if _, err := s.Get(ctx, []byte("seq/")); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	m := s.db.Metrics()
	return map[string]interface{}{
		"disk_space_usage": m.DiskSpaceUsage(),
		"memtable_size":    m.MemTable.Size,
	}, nil
}

// PrefixEnd returns the smallest key greater than every key with prefix, or
// nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Key joins parts with '/'.
func Key(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte('/')
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// Uint64Key renders n so that byte order matches numeric order.
func Uint64Key(n uint64) string {
	return fmt.Sprintf("%020d", n)
}
