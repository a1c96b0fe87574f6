package floorstore

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "conv/"

// Config configures a BadgerStore. The defaults favor a small,
// embedded-in-the-same-process deployment over a tuned write-heavy one —
// the floor manager's state is small metadata records, not a bulk data
// store.
type Config struct {
	Dir        string
	SyncWrites bool
	Logger     logr.Logger
}

// DefaultConfig returns a Config writing to dir with a discarding logr
// logger (spec default: persistence is opt-in and silent unless the
// embedder supplies its own Logger).
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: false, Logger: logr.Discard()}
}

// BadgerStore is a Store backed by an embedded Badger database, with
// ConversationSnapshot values serialized via msgpack at rest — distinct
// from the JSON wire format internal/envelope's codec uses, since this
// encoding never crosses the network and benefits from msgpack's more
// compact binary representation.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// NewBadgerStore opens (creating if necessary) a Badger database at
// cfg.Dir.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("floorstore: Dir must be set")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("floorstore: failed to create directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = &logrBadgerLogger{log: cfg.Logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("floorstore: failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Save serializes snap with msgpack and writes it under its id's key.
func (s *BadgerStore) Save(snap ConversationSnapshot) error {
	if s.isClosed() {
		return fmt.Errorf("floorstore: store is closed")
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("floorstore: marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+snap.ID), data)
	})
}

// Load reads and deserializes the snapshot saved for id.
func (s *BadgerStore) Load(id string) (ConversationSnapshot, error) {
	if s.isClosed() {
		return ConversationSnapshot{}, fmt.Errorf("floorstore: store is closed")
	}
	var snap ConversationSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return ConversationSnapshot{}, err
	}
	return snap, nil
}

// Delete removes id's saved snapshot, if any.
func (s *BadgerStore) Delete(id string) error {
	if s.isClosed() {
		return fmt.Errorf("floorstore: store is closed")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// List returns every conversation id with a saved snapshot.
func (s *BadgerStore) List() ([]string, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("floorstore: store is closed")
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, keyPrefix))
		}
		return nil
	})
	return ids, err
}

// Close releases the underlying Badger database. Calls after the first
// are no-ops.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// logrBadgerLogger adapts a logr.Logger to badger's four-method Logger
// interface (Errorf/Warningf/Infof/Debugf). Badger's own callers format
// their own messages, so this only needs to route severity, not parse it.
type logrBadgerLogger struct {
	log logr.Logger
}

func (l *logrBadgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Errorf(strings.TrimSuffix(format, "\n"), args...), "badger error")
}

func (l *logrBadgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(strings.TrimSuffix(format, "\n"), args...), "level", "warning")
}

func (l *logrBadgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(strings.TrimSuffix(format, "\n"), args...))
}

func (l *logrBadgerLogger) Debugf(format string, args ...interface{}) {
	l.log.V(1).Info(fmt.Sprintf(strings.TrimSuffix(format, "\n"), args...))
}
