package cert

import (
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"
	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/storage"
)

// Store seals certificates and anchors them: canonical bytes go to content
// storage, and a chain entry committing to those bytes goes to the ledger.
type Store struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	cas    storage.CAS
	logger *slog.Logger
}

type StoreOption func(*Store)

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

func NewStore(l *ledger.Ledger, cas storage.CAS, opts ...StoreOption) *Store {
	s := &Store{ledger: l, cas: cas, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seal seals input into a certificate, archives it, and appends a ledger
// entry. Sealing identical inputs is idempotent in content: the canonical
// bytes and payload hash repeat exactly, though each seal occupies a new
// ledger position (the chain never deduplicates).
func (s *Store) Seal(input SealInput) (*Certificate, ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := Seal(input)
	if err != nil {
		return nil, ledger.Entry{}, err
	}

	id, err := s.cas.Put(c.Raw)
	if err != nil {
		return nil, ledger.Entry{}, model.WrapError(model.KindInternal, "RBQ-LEDGER-020",
			"certificate archive failed", err)
	}
	e, err := s.ledger.Append(ledger.KindCertificate, c.UnitID(), id.String(), c.Raw)
	if err != nil {
		return nil, ledger.Entry{}, err
	}

	s.logger.Info("certificate sealed",
		slog.String("unit_id", c.UnitID()),
		slog.String("cid", id.String()),
		slog.Uint64("seq", e.Seq))
	return c, e, nil
}

// Reseal seals a replacement certificate that supersedes the unit's current
// one. The old certificate stays archived and chained; the new one points at
// it via Supersedes-Cert-CID.
func (s *Store) Reseal(input SealInput) (*Certificate, ledger.Entry, error) {
	old, ok, err := s.Latest(input.Record.UnitID)
	if err != nil {
		return nil, ledger.Entry{}, err
	}
	if !ok {
		return nil, ledger.Entry{}, model.NewError(model.KindValidation, "RBQ-VAL-031",
			"no prior certificate for unit "+input.Record.UnitID)
	}
	input.SupersedesCertCID = old.CID()

	c, e, err := s.Seal(input)
	if err != nil {
		return nil, ledger.Entry{}, err
	}
	if err := ValidateSupersession(c, old); err != nil {
		return nil, ledger.Entry{}, err
	}
	return c, e, nil
}

// Get fetches and parses the certificate identified by a CID string.
func (s *Store) Get(cidStr string) (*Certificate, error) {
	id, err := cid.Decode(cidStr)
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "RBQ-VAL-032", "invalid certificate CID", err)
	}
	raw, err := s.cas.Get(id)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Latest returns the unit's newest sealed certificate, following the ledger.
func (s *Store) Latest(unitID string) (*Certificate, bool, error) {
	e, ok := s.ledger.LatestByRef(ledger.KindCertificate, unitID)
	if !ok {
		return nil, false, nil
	}
	c, err := s.Get(e.PayloadCID)
	if err != nil {
		return nil, false, err
	}
	if err := ledger.VerifyPayload(e, c.Raw); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// UnitScore reports the final score of the unit's newest sealed
// certificate. It satisfies the aggregation hierarchy's score source:
// units without a verifiable certificate simply report no score.
func (s *Store) UnitScore(unitID string) (float64, bool) {
	c, ok, err := s.Latest(unitID)
	if err != nil || !ok {
		return 0, false
	}
	final, err := c.FinalScore()
	if err != nil {
		return 0, false
	}
	return final, true
}

// History returns every certificate ever sealed for a unit, oldest first.
func (s *Store) History(unitID string) ([]*Certificate, error) {
	var out []*Certificate
	for _, e := range s.ledger.Entries() {
		if e.Kind != ledger.KindCertificate || e.Ref != unitID {
			continue
		}
		c, err := s.Get(e.PayloadCID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
