package cert

import (
	"bytes"
	"time"

	"rubriq.co/rubriq/fuse"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

// DefaultEngineID identifies this engine in certificates sealed without an
// explicit Engine-ID.
const DefaultEngineID = "rubriq-engine-reference"

// SealInput carries everything needed to seal one scored unit into a
// certificate.
type SealInput struct {
	Record model.UnitRecord
	Result fuse.Result

	// EngineID names the scoring engine build. Empty means DefaultEngineID.
	EngineID string

	// SealedAt is informational only; zero means omit. Certificates sealed
	// from identical inputs with SealedAt omitted are byte-identical, which
	// keeps re-sealing idempotent at the ledger.
	SealedAt time.Time

	// SupersedesCertCID, when set, asserts this certificate replaces a prior
	// one identified by CID.
	SupersedesCertCID string

	// Sign, when non-nil, populates the CRYPTO section.
	Sign *keys.SignerOptions
}

// Seal validates input, renders canonical QCF bytes, optionally signs them,
// and returns the parsed certificate.
func Seal(input SealInput) (*Certificate, error) {
	if err := input.Record.Validate(); err != nil {
		return nil, err
	}
	if !model.IsValidScore(input.Result.Raw) || !model.IsValidScore(input.Result.Final) {
		return nil, model.NewError(model.KindValidation, "RBQ-VAL-002",
			"fusion result scores outside [0,1]")
	}
	if !model.KnownLabel(input.Result.Label) {
		return nil, model.NewError(model.KindValidation, "RBQ-VAL-003",
			"unknown quality label "+string(input.Result.Label))
	}

	engineID := input.EngineID
	if engineID == "" {
		engineID = DefaultEngineID
	}

	meta := map[string]string{
		"Engine-ID":  engineID,
		"Profile-ID": input.Record.ProfileID,
		"Spec":       SpecTag,
		"Version":    "1",
	}
	if !input.SealedAt.IsZero() {
		meta["Sealed-At"] = input.SealedAt.UTC().Format(time.RFC3339)
	}
	if input.SupersedesCertCID != "" {
		meta["Supersedes-Cert-CID"] = input.SupersedesCertCID
	}

	layers := make(map[string]string, len(model.Layers))
	for _, l := range model.Layers {
		x, _ := input.Record.Layers.Value(l)
		layers[string(l)] = model.FormatScore(x)
	}

	score := map[string]string{
		"Raw-Score":   model.FormatScore(input.Result.Raw),
		"Final-Score": model.FormatScore(input.Result.Final),
		"Label":       string(input.Result.Label),
	}
	if input.Result.GateReason != fuse.GateNone {
		score["Gate-Reason"] = string(input.Result.GateReason)
	}

	unit := map[string]string{"Unit-ID": input.Record.UnitID}
	if input.Record.UnitType != "" {
		unit["Unit-Type"] = input.Record.UnitType
	}

	doc := Document{
		Meta:   meta,
		Unit:   unit,
		Layers: layers,
		Score:  score,
	}

	if input.Sign != nil {
		unsigned, err := Render(doc)
		if err != nil {
			return nil, err
		}
		scope, err := signatureScope(unsigned)
		if err != nil {
			return nil, err
		}
		crypto, err := keys.SignDetached(scope, *input.Sign)
		if err != nil {
			return nil, err
		}
		doc.Crypto = map[string]string{
			"Engine-Key":    crypto.PublicKey,
			"Hash-Alg":      crypto.HashAlg,
			"Signature":     crypto.Signature,
			"Signature-Alg": crypto.SignatureAlg,
		}
	}

	out, err := Render(doc)
	if err != nil {
		return nil, err
	}
	return Parse(out)
}

// signatureScope returns the signed prefix of canonical QCF bytes: everything
// through the blank line preceding the CRYPTO header. The CRYPTO section is
// excluded so the signature can be embedded without changing the signed bytes.
func signatureScope(canonical []byte) ([]byte, error) {
	idx := bytes.Index(canonical, []byte("\nCRYPTO\n"))
	if idx < 0 {
		return nil, parseErr("RBQ-PARSE-014", "cannot determine signature scope")
	}
	return canonical[:idx+1], nil
}
