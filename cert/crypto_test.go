package cert

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"testing"

	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

type fixedReader struct{ b byte }

func (r *fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func testSigningKey() ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i * 3)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func TestSignedCertificateVerifies(t *testing.T) {
	c, err := Seal(SealInput{
		Record: testRecord(),
		Result: testResult(),
		Sign:   &keys.SignerOptions{Ed25519Key: testSigningKey()},
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !c.IsSigned() {
		t.Fatalf("certificate not signed")
	}
	if c.SignatureAlg() != "ed25519" || c.HashAlg() != "sha256" {
		t.Fatalf("unexpected crypto fields: %q %q", c.SignatureAlg(), c.HashAlg())
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSignedCertificateVerifies_Dilithium3(t *testing.T) {
	_, sk, err := keys.GenerateDilithium3Keypair(io.Reader(&fixedReader{}))
	if err != nil {
		t.Fatalf("GenerateDilithium3Keypair: %v", err)
	}
	c, err := Seal(SealInput{
		Record: testRecord(),
		Result: testResult(),
		Sign:   &keys.SignerOptions{Dilithium3Key: sk, HashAlg: "sha3-256"},
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if c.SignatureAlg() != "dilithium3" || c.HashAlg() != "sha3-256" {
		t.Fatalf("unexpected crypto fields: %q %q", c.SignatureAlg(), c.HashAlg())
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedScore(t *testing.T) {
	c, err := Seal(SealInput{
		Record: testRecord(),
		Result: testResult(),
		Sign:   &keys.SignerOptions{Ed25519Key: testSigningKey()},
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := bytes.Replace(c.Raw, []byte("Final-Score: 0.7190"), []byte("Final-Score: 0.9990"), 1)
	p, err := Parse(tampered)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := p.Verify(); model.RuleID(err) != "RBQ-CRYPTO-401" {
		t.Fatalf("tampered certificate verified: %v", err)
	}
}

func TestVerifyRejectsUnsigned(t *testing.T) {
	c := sealTestCert(t)
	if c.IsSigned() {
		t.Fatalf("expected unsigned certificate")
	}
	if err := c.Verify(); !model.IsKind(err, model.KindCrypto) {
		t.Fatalf("Verify of unsigned certificate: %v", err)
	}
}

func TestVerifyRejectsAlgMismatch(t *testing.T) {
	c, err := Seal(SealInput{
		Record: testRecord(),
		Result: testResult(),
		Sign:   &keys.SignerOptions{Ed25519Key: testSigningKey()},
	})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	tampered := bytes.Replace(c.Raw, []byte("Signature-Alg: ed25519"), []byte("Signature-Alg: sphincs"), 1)
	p, err := Parse(tampered)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := p.Verify(); model.RuleID(err) != "RBQ-CRYPTO-121" {
		t.Fatalf("mismatched algs verified: %v", err)
	}
}
