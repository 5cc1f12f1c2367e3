package compliance

// ComplianceMode selects how aggressively the library rejects ambiguity.
//
// Strict mode prefers explicit failure over silent acceptance: ledger
// verification additionally checks entry signatures and structural fields.
// Permissive mode verifies hash linkage only.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)
