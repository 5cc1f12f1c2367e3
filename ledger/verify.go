package ledger

import (
	"fmt"

	"rubriq.co/rubriq/compliance"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

// Verify walks a chain and reports the first divergent entry.
//
// Permissive mode checks sequence contiguity and hash linkage. Strict mode
// additionally validates entry structure and verifies any attached signatures.
// The returned error carries the index of the first bad entry; everything
// before it is intact.
func Verify(entries []Entry, mode compliance.ComplianceMode) error {
	prev := GenesisDigest
	for i, e := range entries {
		if e.Seq != uint64(i) {
			return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-101",
				fmt.Sprintf("sequence gap at index %d: seq=%d", i, e.Seq), i)
		}
		if e.PrevHash != prev {
			return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-102",
				fmt.Sprintf("broken link at index %d: prev=%s head=%s", i, e.PrevHash, prev), i)
		}
		if e.EntryHash != ChainDigest(e.PayloadHash, e.PrevHash) {
			return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-103",
				fmt.Sprintf("entry hash mismatch at index %d", i), i)
		}
		if mode == compliance.Strict {
			if err := e.Validate(); err != nil {
				return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-104",
					fmt.Sprintf("malformed entry at index %d: %v", i, err), i)
			}
			if e.Signature != nil {
				if err := keys.VerifyDetached([]byte(e.EntryHash), *e.Signature); err != nil {
					return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-105",
						fmt.Sprintf("signature invalid at index %d: %v", i, err), i)
				}
			}
		}
		prev = e.EntryHash
	}
	return nil
}

// VerifyPayload checks that payload bytes match the digest an entry committed
// to. Content storage returning different bytes for an entry's PayloadCID is
// an integrity failure.
func VerifyPayload(e Entry, payload []byte) error {
	if got := PayloadDigest(payload); got != e.PayloadHash {
		return model.NewIndexedError(model.KindLedger, "RBQ-LEDGER-106",
			fmt.Sprintf("payload digest mismatch for seq %d", e.Seq), int(e.Seq))
	}
	return nil
}
