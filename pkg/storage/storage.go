// Package storage persists reference results in BadgerDB and journals
// comparison outcomes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/vjranagit/simregress/pkg/failure"
	"github.com/vjranagit/simregress/pkg/table"
)

// ErrNotFound is returned when a reference does not exist.
var ErrNotFound = errors.New("reference not found")

// Store is the contract for reference result storage.
type Store interface {
	// Put stores a reference, replacing any previous one with the same name.
	Put(ctx context.Context, ref *Reference) error

	// Get loads a reference by name.
	Get(ctx context.Context, name string) (*Reference, error)

	// List returns the metadata of references matching all label selectors,
	// sorted by name.
	List(ctx context.Context, selectors map[string]string) ([]Meta, error)

	// Delete removes a reference.
	Delete(ctx context.Context, name string) error

	// Close closes the store.
	Close() error
}

// Reference is a named reference result.
type Reference struct {
	Name      string
	Labels    map[string]string
	Table     *table.Table
	CreatedAt time.Time
}

// Meta describes a stored reference without its data.
type Meta struct {
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels,omitempty"`
	Columns   []string          `json:"columns"`
	Rows      int               `json:"rows"`
	CreatedAt time.Time         `json:"created_at"`
}

// Config holds storage configuration
type Config struct {
	Path             string
	CompressionLevel int
	InMemory         bool
	CacheCapacity    int
	CacheTTL         time.Duration
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 3,
		CacheCapacity:    64,
		CacheTTL:         10 * time.Minute,
	}
}

const (
	metaPrefix = "meta/"
	dataPrefix = "data/"
)

// payload is the stored form of a reference table.
type payload struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
	Data    [][]byte `json:"data"`
}

// badgerStore implements Store using BadgerDB
type badgerStore struct {
	db         *badger.DB
	index      *Index
	compressor *Compressor
	logger     *zap.Logger
	mu         sync.RWMutex
}

// Open opens the reference store described by cfg. When the cache is enabled
// the store is wrapped in a CachedStore.
func Open(cfg *Config, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	// badger is chatty at info level
	opts.Logger = &badgerLogger{logger.Named("badger").WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	s := &badgerStore{
		db:         db,
		index:      NewIndex(),
		compressor: compressor,
		logger:     logger,
	}

	if err := s.rebuildIndex(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}
	logger.Debug("Opened reference store", zap.String("path", cfg.Path), zap.Int("references", s.index.Len()))

	if cfg.CacheCapacity > 0 {
		return NewCachedStore(s, cfg.CacheCapacity, cfg.CacheTTL), nil
	}
	return s, nil
}

func (s *badgerStore) rebuildIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var meta Meta
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("failed to unmarshal metadata: %w", err)
				}
				s.index.Add(meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Put implements Store.Put
func (s *badgerStore) Put(ctx context.Context, ref *Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ref == nil || ref.Table == nil {
		return failure.Validationf("reference and its table are required")
	}
	if ref.Name == "" {
		return failure.Validationf("reference name is required")
	}

	created := ref.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	meta := Meta{
		Name:      ref.Name,
		Labels:    copyLabels(ref.Labels),
		Columns:   ref.Table.Columns(),
		Rows:      ref.Table.Len(),
		CreatedAt: created,
	}

	p := payload{Rows: ref.Table.Len(), Columns: ref.Table.Columns()}
	for _, c := range p.Columns {
		values, _ := ref.Table.Column(c)
		p.Data = append(p.Data, s.compressor.CompressColumn(values))
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+ref.Name), metaBytes); err != nil {
			return err
		}
		return txn.Set([]byte(dataPrefix+ref.Name), payloadBytes)
	})
	if err != nil {
		return fmt.Errorf("failed to write reference %q: %w", ref.Name, err)
	}

	s.index.Add(meta)
	s.logger.Debug("Stored reference",
		zap.String("name", ref.Name),
		zap.Int("rows", meta.Rows),
		zap.Int("bytes", len(payloadBytes)))
	return nil
}

// Get implements Store.Get
func (s *badgerStore) Get(ctx context.Context, name string) (*Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	meta, ok := s.index.Get(name)
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "reference %q", name)
	}

	var payloadBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + name))
		if err != nil {
			return err
		}
		payloadBytes, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "reference %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reference %q: %w", name, err)
	}

	var p payload
	if err := json.Unmarshal(payloadBytes, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if len(p.Data) != len(p.Columns) {
		return nil, fmt.Errorf("reference %q is corrupt: %d columns, %d encoded", name, len(p.Columns), len(p.Data))
	}

	data := make([][]float64, len(p.Columns))
	for i, encoded := range p.Data {
		values, err := s.compressor.DecompressColumn(encoded, p.Rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress column %q: %w", p.Columns[i], err)
		}
		data[i] = values
	}

	t, err := table.New(p.Columns, data)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild reference %q: %w", name, err)
	}

	return &Reference{
		Name:      meta.Name,
		Labels:    copyLabels(meta.Labels),
		Table:     t,
		CreatedAt: meta.CreatedAt,
	}, nil
}

// List implements Store.List
func (s *badgerStore) List(ctx context.Context, selectors map[string]string) ([]Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.index.Find(selectors)
	sort.Strings(names)

	out := make([]Meta, 0, len(names))
	for _, name := range names {
		if meta, ok := s.index.Get(name); ok {
			out = append(out, meta)
		}
	}
	return out, nil
}

// Delete implements Store.Delete
func (s *badgerStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Get(name); !ok {
		return errors.Wrapf(ErrNotFound, "reference %q", name)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(metaPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(dataPrefix + name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete reference %q: %w", name, err)
	}

	s.index.Remove(name)
	s.logger.Debug("Deleted reference", zap.String("name", name))
	return nil
}

// Close implements Store.Close
func (s *badgerStore) Close() error {
	if s.compressor != nil {
		s.compressor.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
