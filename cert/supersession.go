package cert

import (
	"fmt"

	"rubriq.co/rubriq/model"
)

func supersessionErr(format string, args ...any) error {
	return model.NewError(model.KindValidation, "RBQ-VAL-030",
		fmt.Sprintf("supersession invalid: "+format, args...))
}

// ValidateSupersession enforces certificate supersession semantics.
//
// A certificate B supersedes certificate A when:
// - B's META includes Supersedes-Cert-CID equal to CID(A)
// - B and A score the same Unit-ID
// - B and A were sealed by the same Engine-ID
//
// Re-scoring never rewrites history: the old certificate stays in the ledger
// and in content storage; B only points at it.
func ValidateSupersession(newCert, oldCert *Certificate) error {
	oldCID := oldCert.CID()
	newCID := newCert.CID()
	if newCID == oldCID {
		return supersessionErr("new certificate bytes identical to old")
	}

	sup := newCert.SupersedesCertCID()
	if sup == "" {
		return supersessionErr("new certificate does not declare Supersedes-Cert-CID")
	}
	if sup != oldCID {
		return supersessionErr("Supersedes-Cert-CID=%q does not match old CID=%q", sup, oldCID)
	}

	if oldCert.UnitID() != newCert.UnitID() {
		return supersessionErr("unit mismatch old=%q new=%q", oldCert.UnitID(), newCert.UnitID())
	}
	if oldCert.EngineID() != newCert.EngineID() {
		return supersessionErr("engine mismatch old=%q new=%q", oldCert.EngineID(), newCert.EngineID())
	}
	return nil
}
