package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

// GenesisDigest is the prev-hash of the first ledger entry: 64 ASCII zeros.
// Two independently produced ledgers over the same payload sequence are
// byte-identical, so the genesis link must be a constant, not a random salt.
const GenesisDigest = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry kinds recorded by the engine. The ledger itself accepts any non-empty
// kind; these constants name the ones the core writes.
const (
	KindCertificate = "certificate"
	KindRollup      = "rollup"
)

// Entry is one append-only ledger record.
//
// EntryHash = sha256(PayloadHash || PrevHash), where both operands are the
// lowercase ASCII hex strings, not the raw digest bytes. The concatenation is
// over the 64-character hex encodings; this is part of the wire contract.
type Entry struct {
	Seq         uint64    `json:"seq"`
	Kind        string    `json:"kind"`
	Ref         string    `json:"ref"`
	PayloadCID  string    `json:"payloadCid,omitempty"`
	PayloadHash string    `json:"payloadHash"`
	PrevHash    string    `json:"prevHash"`
	EntryHash   string    `json:"entryHash"`
	AppendedAt  time.Time `json:"appendedAt"`

	// Signature, when present, covers the ASCII bytes of EntryHash. Signing
	// the chain head transitively commits to every prior entry.
	Signature *keys.DetachedSignature `json:"signature,omitempty"`
}

// PayloadDigest returns the lowercase hex sha256 of payload bytes.
func PayloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ChainDigest computes an entry hash from its payload hash and the previous
// entry hash (or GenesisDigest).
func ChainDigest(payloadHash, prevHash string) string {
	sum := sha256.Sum256([]byte(payloadHash + prevHash))
	return hex.EncodeToString(sum[:])
}

// Validate checks structural well-formedness of a single entry, independent
// of its position in a chain.
func (e Entry) Validate() error {
	if e.Kind == "" {
		return model.NewError(model.KindValidation, "RBQ-VAL-040", "entry kind must not be empty")
	}
	if !isHexDigest(e.PayloadHash) {
		return model.NewError(model.KindValidation, "RBQ-VAL-041", "payload hash is not a sha256 hex digest")
	}
	if !isHexDigest(e.PrevHash) {
		return model.NewError(model.KindValidation, "RBQ-VAL-042", "prev hash is not a sha256 hex digest")
	}
	if !isHexDigest(e.EntryHash) {
		return model.NewError(model.KindValidation, "RBQ-VAL-043", "entry hash is not a sha256 hex digest")
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}
