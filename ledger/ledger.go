// Package ledger implements the append-only, hash-linked evidence ledger.
//
// Every sealed certificate and rollup node lands here as one entry whose hash
// chains to its predecessor. The ledger is single-writer: a mutex serializes
// appends, and a detected integrity failure halts all further appends until
// the operator intervenes.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"rubriq.co/rubriq/compliance"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

// Sink persists ledger entries. Implementations must return entries from
// Entries() in ascending Seq order.
type Sink interface {
	Append(e Entry) error
	Entries() ([]Entry, error)
	Close() error
}

// Ledger is the single-writer chain head over a Sink.
type Ledger struct {
	mu      sync.Mutex
	sink    Sink
	entries []Entry
	halted  bool

	signer *keys.SignerOptions
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Ledger)

// WithSigner makes every appended entry carry a detached signature over its
// entry hash.
func WithSigner(opts keys.SignerOptions) Option {
	return func(l *Ledger) { l.signer = &opts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the AppendedAt timestamp source. Tests use this to get
// reproducible entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open replays the sink and verifies hash linkage before accepting appends.
// A sink whose chain does not verify cannot be opened; use Verify on the raw
// entries to locate the first divergent index.
func Open(sink Sink, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		sink:   sink,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := sink.Entries()
	if err != nil {
		return nil, model.WrapError(model.KindLedger, "RBQ-LEDGER-010", "ledger replay failed", err)
	}
	if err := Verify(entries, compliance.Permissive); err != nil {
		return nil, err
	}
	l.entries = entries

	l.logger.Info("ledger opened",
		slog.Int("entries", len(entries)),
		slog.String("head", l.headHash()))
	return l, nil
}

func (l *Ledger) headHash() string {
	if len(l.entries) == 0 {
		return GenesisDigest
	}
	return l.entries[len(l.entries)-1].EntryHash
}

// Append seals payload into a new chain entry. kind names the payload class
// (certificate, rollup); ref carries the unit or node identifier for lookup.
// payloadCID optionally points at the archived payload in content storage.
func (l *Ledger) Append(kind, ref, payloadCID string, payload []byte) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return Entry{}, model.NewError(model.KindLedger, "RBQ-LEDGER-001",
			"ledger halted after integrity failure; appends refused")
	}

	e := Entry{
		Seq:         uint64(len(l.entries)),
		Kind:        kind,
		Ref:         ref,
		PayloadCID:  payloadCID,
		PayloadHash: PayloadDigest(payload),
		PrevHash:    l.headHash(),
		AppendedAt:  l.now().UTC(),
	}
	e.EntryHash = ChainDigest(e.PayloadHash, e.PrevHash)
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	if l.signer != nil {
		sig, err := keys.SignDetached([]byte(e.EntryHash), *l.signer)
		if err != nil {
			return Entry{}, model.WrapError(model.KindCrypto, "RBQ-CRYPTO-501", "entry signing failed", err)
		}
		e.Signature = &sig
	}

	if err := l.sink.Append(e); err != nil {
		return Entry{}, model.WrapError(model.KindLedger, "RBQ-LEDGER-011", "sink append failed", err)
	}
	l.entries = append(l.entries, e)

	l.logger.Debug("entry appended",
		slog.Uint64("seq", e.Seq),
		slog.String("kind", e.Kind),
		slog.String("ref", e.Ref),
		slog.String("entry_hash", e.EntryHash))
	return e, nil
}

// Head returns the newest entry, or false for an empty ledger.
func (l *Ledger) Head() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the chain in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Entry returns the entry at seq.
func (l *Ledger) Entry(seq uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq >= uint64(len(l.entries)) {
		return Entry{}, false
	}
	return l.entries[seq], true
}

// LatestByRef returns the newest entry for a given kind and ref.
func (l *Ledger) LatestByRef(kind, ref string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Kind == kind && l.entries[i].Ref == ref {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// CheckIntegrity re-verifies the in-memory chain. On failure the ledger halts:
// every subsequent Append is refused until the operator repairs the sink and
// reopens.
func (l *Ledger) CheckIntegrity(mode compliance.ComplianceMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := Verify(l.entries, mode); err != nil {
		l.halted = true
		l.logger.Error("ledger integrity failure, halting appends",
			slog.Int("first_bad_index", model.ErrorIndex(err)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Halted reports whether appends are refused.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

// Close closes the underlying sink.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Close()
}
