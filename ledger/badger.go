package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	// ErrBadgerCorrupted is returned when a stored entry fails its CRC check.
	ErrBadgerCorrupted = errors.New("ledger entry corrupted (CRC mismatch)")

	// ErrBadgerSequenceGap is returned when replay detects missing keys.
	ErrBadgerSequenceGap = errors.New("ledger sequence gap detected")
)

// BadgerConfig configures a BadgerSink.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// SyncWrites enables synchronous writes. MUST be true for durability of
	// the evidence chain. Default: true.
	SyncWrites bool

	// InMemory uses in-memory BadgerDB (for testing).
	InMemory bool

	// Logger for sink operations. Default: slog.Default().
	Logger *slog.Logger
}

func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// BadgerSink persists entries in BadgerDB.
//
// Key format: "entry:{seq:016d}"
// Value format: [4-byte CRC32][JSON entry]
//
// The CRC is defense against on-disk bit rot below the hash chain: a flipped
// byte surfaces as a CRC failure at replay instead of a confusing chain break.
type BadgerSink struct {
	mu     sync.Mutex
	db     *badger.DB
	logger *slog.Logger
}

func OpenBadgerSink(config BadgerConfig) (*BadgerSink, error) {
	if !config.InMemory && config.Path == "" {
		return nil, errors.New("path is required for persistent sink")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	opts := badger.DefaultOptions(config.Path).
		WithSyncWrites(config.SyncWrites).
		WithInMemory(config.InMemory).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerSink{
		db:     db,
		logger: config.Logger.With(slog.String("component", "ledger-badger")),
	}
	s.logger.Info("badger sink opened",
		slog.String("path", config.Path),
		slog.Bool("sync_writes", config.SyncWrites))
	return s, nil
}

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("entry:%016d", seq))
}

func encodeValue(e Entry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], crc)
	copy(out[4:], body)
	return out, nil
}

func decodeValue(data []byte) (Entry, error) {
	if len(data) < 5 {
		return Entry{}, fmt.Errorf("%w: value too short", ErrBadgerCorrupted)
	}
	stored := binary.BigEndian.Uint32(data[:4])
	body := data[4:]
	if computed := crc32.ChecksumIEEE(body); stored != computed {
		return Entry{}, fmt.Errorf("%w: stored=%08x computed=%08x", ErrBadgerCorrupted, stored, computed)
	}
	var e Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *BadgerSink) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("badger sink closed")
	}

	val, err := encodeValue(e)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.Seq), val)
	})
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	s.logger.Debug("entry persisted",
		slog.Uint64("seq", e.Seq),
		slog.Int("bytes", len(val)))
	return nil
}

func (s *BadgerSink) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("badger sink closed")
	}

	var entries []Entry
	prefix := []byte("entry:")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			var seq uint64
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%016d", &seq); err != nil {
				continue
			}
			if seq != uint64(len(entries)) {
				return fmt.Errorf("%w: expected %d, got %d", ErrBadgerSequenceGap, len(entries), seq)
			}
			err := item.Value(func(val []byte) error {
				e, err := decodeValue(val)
				if err != nil {
					return fmt.Errorf("seq %d: %w", seq, err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BadgerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing badger sink")
	err := s.db.Close()
	s.db = nil
	return err
}
