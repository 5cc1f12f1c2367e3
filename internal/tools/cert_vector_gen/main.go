// Command cert_vector_gen prints a reference sealed certificate with its
// CID, for regenerating documentation examples and cross-implementation
// checks.
package main

import (
	"crypto/ed25519"
	"fmt"

	"rubriq.co/rubriq/cert"
	"rubriq.co/rubriq/fuse"
	"rubriq.co/rubriq/keys"
	"rubriq.co/rubriq/model"
)

func mustKeypair(seedByte byte) ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	return ed25519.NewKeyFromSeed(seed)
}

func main() {
	priv := mustKeypair(0xA1)

	c, err := cert.Seal(cert.SealInput{
		Record: model.UnitRecord{
			UnitID:    "plan-2025-014",
			UnitType:  "json-layers",
			ProfileID: "cohort-2025a",
			Layers: model.LayerVector{
				Base: 0.9, Chain: 0.8, Question: 0.7, Dimension: 0.6,
				Policy: 0.5, Contract: 0.9, Unit: 0.6, Maturity: 0.5,
			},
		},
		Result: fuse.Result{
			Raw:        0.719,
			Final:      0.719,
			GateReason: fuse.GateNone,
			Label:      model.LabelGood,
		},
		Sign: &keys.SignerOptions{Ed25519Key: priv},
	})
	if err != nil {
		panic(err)
	}
	if err := c.Verify(); err != nil {
		panic(err)
	}

	fmt.Printf("CID=%s\n", c.CID())
	fmt.Printf("---BEGIN---\n%s\n---END---\n", string(c.Raw))
}
