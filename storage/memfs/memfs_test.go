package memfs

import (
	"testing"

	"rubriq.co/rubriq/storage"
	"rubriq.co/rubriq/storage/testkit"
)

func TestMemfsConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return New()
	})
}

func TestMemfsLen(t *testing.T) {
	cas := New()
	if cas.Len() != 0 {
		t.Fatalf("fresh store not empty")
	}
	if _, err := cas.Put([]byte("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := cas.Put([]byte("a")); err != nil {
		t.Fatalf("Put(dup): %v", err)
	}
	if _, err := cas.Put([]byte("b")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if cas.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cas.Len())
	}
}
