package cert

import (
	"testing"

	"rubriq.co/rubriq/fuse"
	"rubriq.co/rubriq/model"
)

func TestValidateSupersession(t *testing.T) {
	old := sealTestCert(t)

	rec := testRecord()
	rec.Layers.Question = 0.9
	replacement := func(supersedes string) *Certificate {
		c, err := Seal(SealInput{
			Record: rec,
			Result: fuse.Result{Raw: 0.745, Final: 0.745, Label: model.LabelGood},
			SupersedesCertCID: supersedes,
		})
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		return c
	}

	t.Run("valid", func(t *testing.T) {
		if err := ValidateSupersession(replacement(old.CID()), old); err != nil {
			t.Fatalf("ValidateSupersession: %v", err)
		}
	})

	t.Run("missing declaration", func(t *testing.T) {
		if err := ValidateSupersession(replacement(""), old); err == nil {
			t.Fatalf("accepted replacement without Supersedes-Cert-CID")
		}
	})

	t.Run("wrong target", func(t *testing.T) {
		other := replacement(old.CID())
		if err := ValidateSupersession(replacement(other.CID()), old); err == nil {
			t.Fatalf("accepted replacement pointing at a different certificate")
		}
	})

	t.Run("identical bytes", func(t *testing.T) {
		if err := ValidateSupersession(old, old); err == nil {
			t.Fatalf("accepted self-supersession")
		}
	})

	t.Run("unit mismatch", func(t *testing.T) {
		otherRec := testRecord()
		otherRec.UnitID = "plan-2025-099"
		c, err := Seal(SealInput{
			Record:            otherRec,
			Result:            testResult(),
			SupersedesCertCID: old.CID(),
		})
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if err := ValidateSupersession(c, old); err == nil {
			t.Fatalf("accepted replacement for a different unit")
		}
	})
}
