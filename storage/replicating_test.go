package storage_test

import (
	"bytes"
	"testing"

	"rubriq.co/rubriq/storage"
	"rubriq.co/rubriq/storage/memfs"
	"rubriq.co/rubriq/storage/testkit"
)

func TestReplicatingConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.ReplicatingCAS{Archives: []storage.NamedCAS{
			{Name: "primary", CAS: memfs.New()},
			{Name: "mirror", CAS: memfs.New()},
		}}
	})
}

func TestReplicatingMirrorsToAllArchives(t *testing.T) {
	primary := memfs.New()
	mirror := memfs.New()
	rep := storage.ReplicatingCAS{Archives: []storage.NamedCAS{
		{Name: "primary", CAS: primary},
		{Name: "mirror", CAS: mirror},
	}}

	payload := []byte("sealed node payload")
	id, perArchive, err := rep.PutAll(payload)
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(perArchive) != 2 {
		t.Fatalf("perArchive size = %d", len(perArchive))
	}
	for name, got := range perArchive {
		if got != id {
			t.Fatalf("archive %q CID mismatch", name)
		}
	}
	for _, cas := range []*memfs.CAS{primary, mirror} {
		b, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get from archive: %v", err)
		}
		if !bytes.Equal(b, payload) {
			t.Fatalf("archive bytes mismatch")
		}
	}
}

func TestReplicatingRejectsEmpty(t *testing.T) {
	rep := storage.ReplicatingCAS{}
	if _, err := rep.Put([]byte("x")); err == nil {
		t.Fatalf("Put on empty ReplicatingCAS should fail")
	}
}
