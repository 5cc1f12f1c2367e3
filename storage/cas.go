// Package storage defines the content-addressable archive for evidence
// payloads: canonical certificate bytes and aggregation-node payloads are
// stored immutably, keyed by CID, so that ledger verification can always
// re-fetch the exact bytes behind a payload hash.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (callers are responsible for supplying canonical bytes).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
