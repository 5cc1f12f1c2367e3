package cert

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

func cryptoErr(ruleID, msg string) error {
	return model.NewError(model.KindCrypto, ruleID, msg)
}

func (c *Certificate) SignatureAlg() string { return c.field("CRYPTO", "Signature-Alg") }
func (c *Certificate) HashAlg() string      { return c.field("CRYPTO", "Hash-Alg") }
func (c *Certificate) Signature() string    { return c.field("CRYPTO", "Signature") }

// EngineKey returns the sealing key string ("<alg>:<base64>"), or "" for an
// unsigned certificate.
func (c *Certificate) EngineKey() string { return c.field("CRYPTO", "Engine-Key") }

// IsSigned reports whether the CRYPTO section is populated.
func (c *Certificate) IsSigned() bool {
	sec, ok := c.Sections["CRYPTO"]
	return ok && len(sec.Pairs) > 0
}

// EnginePublicKeyBytes returns the raw public key bytes for the sealing engine.
// Supported encodings:
// - ed25519:<base64>
// - dilithium3:<base64>
func (c *Certificate) EnginePublicKeyBytes() ([]byte, error) {
	engineKey := c.EngineKey()
	if engineKey == "" {
		return nil, cryptoErr("RBQ-CRYPTO-103", "missing Engine-Key")
	}

	alg, enc, ok := strings.Cut(engineKey, ":")
	if !ok {
		return nil, cryptoErr("RBQ-CRYPTO-111", "invalid Engine-Key encoding")
	}
	pub, err := decodeBase64(enc)
	if err != nil {
		return nil, model.WrapError(model.KindCrypto, "RBQ-CRYPTO-113", "invalid engine key base64", err)
	}

	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return nil, cryptoErr("RBQ-CRYPTO-114", "invalid ed25519 public key length")
		}
		return pub, nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return nil, model.WrapError(model.KindCrypto, "RBQ-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		return pub, nil
	default:
		return nil, cryptoErr("RBQ-CRYPTO-112", "unsupported engine key encoding")
	}
}

func (c *Certificate) SignatureBytes() ([]byte, error) {
	s := c.Signature()
	if s == "" {
		return nil, cryptoErr("RBQ-CRYPTO-104", "missing Signature")
	}
	sig, err := decodeBase64(s)
	if err != nil {
		return nil, model.WrapError(model.KindCrypto, "RBQ-CRYPTO-131", "invalid signature base64", err)
	}
	switch c.SignatureAlg() {
	case "":
		return nil, cryptoErr("RBQ-CRYPTO-101", "missing Signature-Alg")
	case "ed25519":
		if len(sig) != ed25519.SignatureSize {
			return nil, cryptoErr("RBQ-CRYPTO-132", "invalid ed25519 signature length")
		}
	case "dilithium3":
		if len(sig) != mode3.SignatureSize {
			return nil, cryptoErr("RBQ-CRYPTO-133", "invalid dilithium3 signature length")
		}
	}
	return sig, nil
}

// Verify verifies the certificate signature.
// For Signature-Alg=ed25519 and Hash-Alg=sha256, the signed message is
// sha256(Signed). Also supported:
// - Hash-Alg: sha512, sha3-256
// - Signature-Alg: dilithium3 (post-quantum)
func (c *Certificate) Verify() error {
	if c == nil {
		return cryptoErr("RBQ-CRYPTO-001", "nil certificate")
	}
	// Re-parse the receiver bytes so canonicalization cannot be bypassed via
	// a manually-constructed Certificate or mutated fields.
	parsed, err := Parse(c.Raw)
	if err != nil {
		return err
	}
	c = parsed

	if c.SignatureAlg() == "" {
		return cryptoErr("RBQ-CRYPTO-101", "missing Signature-Alg")
	}
	if c.HashAlg() == "" {
		return cryptoErr("RBQ-CRYPTO-102", "missing Hash-Alg")
	}

	engineKey := c.EngineKey()
	if engineKey == "" {
		return cryptoErr("RBQ-CRYPTO-103", "missing Engine-Key")
	}
	keyAlg, _, ok := strings.Cut(engineKey, ":")
	if !ok {
		return cryptoErr("RBQ-CRYPTO-111", "invalid Engine-Key encoding")
	}
	if keyAlg != c.SignatureAlg() {
		return cryptoErr("RBQ-CRYPTO-121", "Engine-Key alg does not match Signature-Alg")
	}

	pub, err := c.EnginePublicKeyBytes()
	if err != nil {
		return err
	}
	sig, err := c.SignatureBytes()
	if err != nil {
		return err
	}
	digest, err := keys.DigestFor(c.HashAlg(), c.Signed)
	if err != nil {
		return model.WrapError(model.KindCrypto, "RBQ-CRYPTO-201", "unsupported Hash-Alg", err)
	}

	switch c.SignatureAlg() {
	case "ed25519":
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return cryptoErr("RBQ-CRYPTO-401", "signature invalid")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return model.WrapError(model.KindCrypto, "RBQ-CRYPTO-115", "invalid dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return cryptoErr("RBQ-CRYPTO-401", "signature invalid")
		}
		return nil
	default:
		return cryptoErr("RBQ-CRYPTO-301", "unsupported Signature-Alg")
	}
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
