package core

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"skipdb/pkg/config"
	"skipdb/pkg/core/memory"
	"skipdb/pkg/monitor"
)

const tableDegree = 32

// Store keeps records of type R in insertion order and maintains one
// skip-list index per registered field. Records are identified by ==, so
// R is usually a pointer type.
//
// All methods are safe for concurrent use. Mutations take the write lock;
// planning, scans and materialisation run under the read lock.
type Store[R comparable] struct {
	name string

	mutex   sync.RWMutex
	table   *memory.Table[R]
	fields  map[string]Accessor[R]
	names   []string
	indexes map[string]fieldIndex[R]
	indexed []string

	conf *config.Config
	log  *slog.Logger
	mon  *monitor.Monitor
	set  settings
}

func NewStore[R comparable](name string, opts ...Option) *Store[R] {
	set := newSettings(opts)
	return &Store[R]{
		name:    name,
		table:   memory.NewTable[R](tableDegree),
		fields:  make(map[string]Accessor[R]),
		indexes: make(map[string]fieldIndex[R]),
		conf:    set.cfg,
		log:     set.log.With("store", name),
		mon:     set.mon,
		set:     set,
	}
}

func (s *Store[R]) Name() string { return s.name }

// Declare registers field accessors. A name that is already declared keeps
// its first accessor.
func (s *Store[R]) Declare(fields ...Accessor[R]) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, f := range fields {
		if _, ok := s.fields[f.Name()]; ok {
			continue
		}
		s.fields[f.Name()] = f
		s.names = append(s.names, f.Name())
	}
}

// RegisterIndex builds an index over a declared field, covering the
// records already stored. Registering an indexed field again is a no-op.
// A unique index over data that already holds duplicates fails with
// ErrDuplicateKey and is not registered.
func (s *Store[R]) RegisterIndex(name string, unique bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnregisteredField, s.name, name)
	}
	if existing, ok := s.indexes[name]; ok {
		if existing.unique() != unique {
			s.log.Debug("index already registered", "field", name, "unique", existing.unique())
		}
		return nil
	}

	idx := f.newIndex(unique, s.set.indexOptions())
	var err error
	s.table.Iterator(func(rec R) bool {
		err = idx.insert(rec)
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("index %s.%s: %w", s.name, name, err)
	}

	s.indexes[name] = idx
	s.indexed = append(s.indexed, name)
	s.log.Info("index registered", "field", name, "unique", unique, "records", idx.len(), "keys", idx.keyCount())
	return nil
}

// Index declares f and registers an index on it.
func (s *Store[R]) Index(f Accessor[R], unique bool) error {
	s.Declare(f)
	return s.RegisterIndex(f.Name(), unique)
}

// Save stores rec and enters it into every index. Nothing changes when any
// unique index already holds rec's key or rec is already stored.
func (s *Store[R]) Save(rec R) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.validateLocked(rec, nil); err != nil {
		return err
	}
	s.commitLocked(rec)
	s.mon.Saved(s.name, 1)
	return nil
}

// SaveAll stores recs atomically: the batch is validated against the store
// and against itself before any record is committed.
func (s *Store[R]) SaveAll(recs ...R) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	batch := make(map[string]fieldIndex[R])
	for _, name := range s.indexed {
		if idx := s.indexes[name]; idx.unique() {
			batch[name] = idx.fresh()
		}
	}
	seen := make(map[R]struct{}, len(recs))
	for _, rec := range recs {
		if _, dup := seen[rec]; dup {
			return fmt.Errorf("%w: repeated in batch for %s", ErrRecordExists, s.name)
		}
		seen[rec] = struct{}{}
		if err := s.validateLocked(rec, batch); err != nil {
			return err
		}
		for name, idx := range batch {
			if err := idx.insert(rec); err != nil {
				panic(fmt.Sprintf("skipdb: batch index %s.%s rejected a validated record: %v", s.name, name, err))
			}
		}
	}

	for _, rec := range recs {
		s.commitLocked(rec)
	}
	s.mon.Saved(s.name, len(recs))
	return nil
}

func (s *Store[R]) validateLocked(rec R, batch map[string]fieldIndex[R]) error {
	if s.table.Has(rec) {
		return fmt.Errorf("%w: %s", ErrRecordExists, s.name)
	}
	for _, name := range s.indexed {
		idx := s.indexes[name]
		if !idx.unique() {
			continue
		}
		if idx.conflicts(rec) || (batch != nil && batch[name].conflicts(rec)) {
			s.mon.Duplicate(s.name)
			s.log.Warn("unique index violation", "field", name)
			return fmt.Errorf("%w: %s.%s", ErrDuplicateKey, s.name, name)
		}
	}
	return nil
}

func (s *Store[R]) commitLocked(rec R) {
	s.table.Put(rec)
	for _, name := range s.indexed {
		if err := s.indexes[name].insert(rec); err != nil {
			// validated above; reaching this means an accessor is not
			// deterministic
			panic(fmt.Sprintf("skipdb: index %s.%s rejected a validated record: %v", s.name, name, err))
		}
	}
}

// Delete removes rec from the store and every index. It reports whether
// rec was stored.
func (s *Store[R]) Delete(rec R) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.table.Delete(rec) {
		return false
	}
	for _, name := range s.indexed {
		s.indexes[name].remove(rec)
	}
	s.mon.Deleted(s.name)
	return true
}

func (s *Store[R]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.table.Count()
}

// All returns every record in insertion order.
func (s *Store[R]) All() []R {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.table.Records()
}

// Indexes returns the indexed field names in registration order.
func (s *Store[R]) Indexes() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.indexed)
}

// Fields returns the declared field names in declaration order.
func (s *Store[R]) Fields() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.names)
}

// IndexStats describes one index.
type IndexStats struct {
	Field   string `json:"field"`
	Unique  bool   `json:"unique"`
	Keys    int    `json:"keys"`
	Records int    `json:"records"`
}

func (s *Store[R]) IndexStats() []IndexStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]IndexStats, 0, len(s.indexed))
	for _, name := range s.indexed {
		idx := s.indexes[name]
		out = append(out, IndexStats{Field: name, Unique: idx.unique(), Keys: idx.keyCount(), Records: idx.len()})
	}
	return out
}
