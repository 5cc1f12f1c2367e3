package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// DigestFor hashes message with one of the supported algorithms:
// sha256, sha512, sha3-256.
func DigestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// SignEd25519SHA256 returns a base64 signature over sha256(message).
func SignEd25519SHA256(message []byte, privateKey ed25519.PrivateKey) string {
	digest := sha256.Sum256(message)
	sig := ed25519.Sign(privateKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig)
}

// SignDilithium3 returns a base64 dilithium3 signature over hash(message).
// hashAlg must be one of: sha256, sha512, sha3-256.
func SignDilithium3(message []byte, hashAlg string, privateKey *mode3.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("missing private key")
	}
	digest, err := DigestFor(hashAlg, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// SignerOptions selects a signing key. Exactly one of Ed25519Key and
// Dilithium3Key must be set.
type SignerOptions struct {
	// HashAlg selects the digest for the signed scope. Empty means sha256.
	HashAlg string

	Ed25519Key    ed25519.PrivateKey
	Dilithium3Key *mode3.PrivateKey
}

// DetachedSignature is a signature over an external message, together with
// everything a verifier needs.
type DetachedSignature struct {
	PublicKey    string // "<alg>:<base64>"
	SignatureAlg string // ed25519 or dilithium3
	HashAlg      string
	Signature    string // base64
}

// SignDetached signs hash(message) with the configured key.
func SignDetached(message []byte, opts SignerOptions) (DetachedSignature, error) {
	hashAlg := opts.HashAlg
	if hashAlg == "" {
		hashAlg = "sha256"
	}
	switch {
	case opts.Ed25519Key != nil && opts.Dilithium3Key != nil:
		return DetachedSignature{}, fmt.Errorf("multiple signing keys configured")
	case opts.Ed25519Key != nil:
		digest, err := DigestFor(hashAlg, message)
		if err != nil {
			return DetachedSignature{}, err
		}
		pub, err := EngineKeyFromPublicKey(opts.Ed25519Key.Public().(ed25519.PublicKey))
		if err != nil {
			return DetachedSignature{}, err
		}
		sig := ed25519.Sign(opts.Ed25519Key, digest)
		return DetachedSignature{
			PublicKey:    pub,
			SignatureAlg: "ed25519",
			HashAlg:      hashAlg,
			Signature:    base64.StdEncoding.EncodeToString(sig),
		}, nil
	case opts.Dilithium3Key != nil:
		sig, err := SignDilithium3(message, hashAlg, opts.Dilithium3Key)
		if err != nil {
			return DetachedSignature{}, err
		}
		pubBytes, err := opts.Dilithium3Key.Public().(*mode3.PublicKey).MarshalBinary()
		if err != nil {
			return DetachedSignature{}, err
		}
		return DetachedSignature{
			PublicKey:    "dilithium3:" + base64.StdEncoding.EncodeToString(pubBytes),
			SignatureAlg: "dilithium3",
			HashAlg:      hashAlg,
			Signature:    sig,
		}, nil
	default:
		return DetachedSignature{}, fmt.Errorf("no signing key configured")
	}
}

// VerifyDetached checks a detached signature produced by SignDetached.
func VerifyDetached(message []byte, sig DetachedSignature) error {
	alg, encoded, ok := strings.Cut(sig.PublicKey, ":")
	if !ok {
		return fmt.Errorf("invalid public key encoding")
	}
	if alg != sig.SignatureAlg {
		return fmt.Errorf("public key alg %q does not match signature alg %q", alg, sig.SignatureAlg)
	}
	pub, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid public key base64: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature base64: %w", err)
	}
	digest, err := DigestFor(sig.HashAlg, message)
	if err != nil {
		return err
	}

	switch sig.SignatureAlg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid ed25519 public key length")
		}
		if len(raw) != ed25519.SignatureSize {
			return fmt.Errorf("invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, raw) {
			return fmt.Errorf("signature did not verify")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		if len(raw) != mode3.SignatureSize {
			return fmt.Errorf("invalid dilithium3 signature length")
		}
		if !mode3.Verify(&pk, digest, raw) {
			return fmt.Errorf("signature did not verify")
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature alg %q", sig.SignatureAlg)
	}
}
