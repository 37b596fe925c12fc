package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// Storage errors.
var (
	ErrClosed   = errors.New("storage: store is closed")
	ErrNotFound = errors.New("storage: registration not found")
)

const registrationPrefix = "actor/"

// Config configures the Badger registration store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests and ephemeral servers.
	InMemory bool

	// SyncWrites fsyncs after every write.
	SyncWrites bool

	// GCInterval is the interval between value log GC runs.
	// Zero disables background GC.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64
}

// DefaultConfig returns the default store configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// BadgerStore implements actor.Store on top of Badger.
type BadgerStore struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	closed     atomic.Bool
	lastGCTime atomic.Int64

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Open opens (or creates) the registration store.
func Open(cfg Config, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("storage: dir is required")
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "storage"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneCh)
	}

	s.logger.Info("registration store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
	)
	return s, nil
}

// SaveRegistration stores or replaces a registration.
func (s *BadgerStore) SaveRegistration(ctx context.Context, reg domain.Registration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if reg.Name == "" {
		return errors.New("storage: registration name is required")
	}

	value, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(registrationKey(reg.Name), value)
	})
}

// DeleteRegistration removes a registration. Deleting a missing name is not
// an error.
func (s *BadgerStore) DeleteRegistration(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(registrationKey(name))
	})
}

// GetRegistration returns a single registration.
func (s *BadgerStore) GetRegistration(ctx context.Context, name string) (domain.Registration, error) {
	var reg domain.Registration
	if s.closed.Load() {
		return reg, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return reg, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(registrationKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &reg)
		})
	})
	return reg, err
}

// ListRegistrations returns every registration ordered by registration time,
// then by name.
func (s *BadgerStore) ListRegistrations(ctx context.Context) ([]domain.Registration, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var regs []domain.Registration
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(registrationPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var reg domain.Registration
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &reg)
			})
			if err != nil {
				s.logger.Warn("skipping corrupt registration",
					"key", string(item.Key()),
					"error", err,
				)
				continue
			}
			regs = append(regs, reg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(regs, func(i, j int) bool {
		if !regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
		}
		return regs[i].Name < regs[j].Name
	})
	return regs, nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (s *BadgerStore) GC() error {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return fmt.Errorf("gc: %w", err)
		}
		runs++
	}
	s.lastGCTime.Store(time.Now().UnixMilli())
	s.logger.Debug("gc completed", "runs", runs, "elapsed", time.Since(start))
	return nil
}

// Size returns the LSM and value log sizes in bytes.
func (s *BadgerStore) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Collectors returns gauges describing the store, for registration with a
// Prometheus registry.
func (s *BadgerStore) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gedis",
			Subsystem: "storage",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, func() float64 {
			lsm, _ := s.Size()
			return float64(lsm)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gedis",
			Subsystem: "storage",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, func() float64 {
			_, vlog := s.Size()
			return float64(vlog)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gedis",
			Subsystem: "storage",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last value log GC",
		}, func() float64 {
			return float64(s.lastGCTime.Load()) / 1000.0
		}),
	}
}

// Close stops background GC and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		<-s.doneCh

		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
			return
		}
		s.logger.Info("registration store closed")
	})
	return err
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.GC(); err != nil && !errors.Is(err, ErrClosed) {
				s.logger.Error("auto gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

func registrationKey(name string) []byte {
	return []byte(registrationPrefix + name)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
