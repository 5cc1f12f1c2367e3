// Package model defines the shared value types of the scoring core: the
// eight-layer quality signal vector, quality labels, fixed-precision score
// arithmetic, and the structured error taxonomy used across packages.
package model
