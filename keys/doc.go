// Package keys provides key-related helpers for sealing and verifying
// evidence documents.
//
// API stability:
//
// Stable:
//   - Pure, deterministic primitives for engine-key formatting, role-seed
//     derivation, and detached signatures.
//
// Experimental:
//   - Filesystem-backed key storage and convenience helpers (KeyStore and
//     related functions). These are local-first utilities and are not part of
//     the long-term protocol contract.
package keys
