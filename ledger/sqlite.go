package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"
	"rubriq.co/rubriq/keys"
)

// SQLiteSink persists entries in a single-table SQLite database. seq is the
// primary key, so duplicate appends fail at the database rather than
// silently forking the chain.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			seq INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			ref TEXT NOT NULL,
			payload_cid TEXT NOT NULL DEFAULT '',
			payload_hash TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			entry_hash TEXT NOT NULL,
			appended_at TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("sqlite sink closed")
	}

	sig := ""
	if e.Signature != nil {
		b, err := json.Marshal(e.Signature)
		if err != nil {
			return err
		}
		sig = string(b)
	}

	_, err := s.db.Exec(`
		INSERT INTO ledger_entries
			(seq, kind, ref, payload_cid, payload_hash, prev_hash, entry_hash, appended_at, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Seq, e.Kind, e.Ref, e.PayloadCID, e.PayloadHash, e.PrevHash, e.EntryHash,
		e.AppendedAt.UTC().Format(time.RFC3339Nano), sig)
	return err
}

func (s *SQLiteSink) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("sqlite sink closed")
	}

	rows, err := s.db.Query(`
		SELECT seq, kind, ref, payload_cid, payload_hash, prev_hash, entry_hash, appended_at, signature
		FROM ledger_entries ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var appendedAt, sig string
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Ref, &e.PayloadCID, &e.PayloadHash,
			&e.PrevHash, &e.EntryHash, &appendedAt, &sig); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, appendedAt)
		if err != nil {
			return nil, err
		}
		e.AppendedAt = t
		if sig != "" {
			e.Signature = new(keys.DetachedSignature)
			if err := json.Unmarshal([]byte(sig), e.Signature); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
