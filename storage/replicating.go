package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"rubriq.co/rubriq/cidutil"
)

// NamedCAS associates an archive backend with a stable name, retained for
// audit reporting of where each evidence payload is mirrored.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS mirrors every evidence payload to all configured archives.
//
// Reads fall back in order. Writes go to all archives and require all returned
// CIDs to match (otherwise ErrCIDMismatch is returned).
type ReplicatingCAS struct {
	Archives []NamedCAS
}

var _ CAS = (*ReplicatingCAS)(nil)

// PutAll writes the same bytes to all archives and returns the canonical CID
// plus the per-archive CID map. Any divergent CID is an ErrCIDMismatch.
func (r ReplicatingCAS) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if !want.Defined() {
		return cid.Undef, nil, ErrInvalidCID
	}
	if len(r.Archives) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no archives")
	}

	out := make(map[string]cid.Cid, len(r.Archives))
	for _, a := range r.Archives {
		if a.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for archive %q", a.Name)
		}
		got, err := a.CAS.Put(bytes)
		if err != nil {
			return cid.Undef, nil, err
		}
		out[a.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(bytes)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, a := range r.Archives {
		if a.CAS == nil {
			continue
		}
		out, err := a.CAS.Get(id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, a := range r.Archives {
		if a.CAS != nil && a.CAS.Has(id) {
			return true
		}
	}
	return false
}
