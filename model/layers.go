package model

// Layer names one of the eight quality signals feeding a fusion computation.
type Layer string

const (
	LayerBase      Layer = "b"     // base quality
	LayerChain     Layer = "chain" // wiring/orchestration integrity
	LayerQuestion  Layer = "q"     // question fit
	LayerDimension Layer = "d"     // dimension fit
	LayerPolicy    Layer = "p"     // policy-area fit
	LayerContract  Layer = "C"     // contract compliance
	LayerUnit      Layer = "u"     // unit/document quality
	LayerMaturity  Layer = "m"     // governance maturity
)

// Layers lists all layers in canonical order. The order is part of the wire
// contract: canonical renderings and hashes depend on it.
var Layers = []Layer{
	LayerBase,
	LayerChain,
	LayerQuestion,
	LayerDimension,
	LayerPolicy,
	LayerContract,
	LayerUnit,
	LayerMaturity,
}

// KnownLayer reports whether l names one of the eight layers.
func KnownLayer(l Layer) bool {
	for _, k := range Layers {
		if k == l {
			return true
		}
	}
	return false
}

// LayerVector holds one scalar per layer, each in [0,1].
// A vector is immutable once handed to the core: every consumer takes it by
// value and never writes through it.
type LayerVector struct {
	Base      float64 `json:"b" yaml:"b"`
	Chain     float64 `json:"chain" yaml:"chain"`
	Question  float64 `json:"q" yaml:"q"`
	Dimension float64 `json:"d" yaml:"d"`
	Policy    float64 `json:"p" yaml:"p"`
	Contract  float64 `json:"C" yaml:"C"`
	Unit      float64 `json:"u" yaml:"u"`
	Maturity  float64 `json:"m" yaml:"m"`
}

// Value returns the scalar for layer l. The second result is false for an
// unknown layer name.
func (v LayerVector) Value(l Layer) (float64, bool) {
	switch l {
	case LayerBase:
		return v.Base, true
	case LayerChain:
		return v.Chain, true
	case LayerQuestion:
		return v.Question, true
	case LayerDimension:
		return v.Dimension, true
	case LayerPolicy:
		return v.Policy, true
	case LayerContract:
		return v.Contract, true
	case LayerUnit:
		return v.Unit, true
	case LayerMaturity:
		return v.Maturity, true
	default:
		return 0, false
	}
}

// WithValue returns a copy of v with layer l set to x.
// It exists for tests and producers; the core never mutates vectors.
func (v LayerVector) WithValue(l Layer, x float64) LayerVector {
	switch l {
	case LayerBase:
		v.Base = x
	case LayerChain:
		v.Chain = x
	case LayerQuestion:
		v.Question = x
	case LayerDimension:
		v.Dimension = x
	case LayerPolicy:
		v.Policy = x
	case LayerContract:
		v.Contract = x
	case LayerUnit:
		v.Unit = x
	case LayerMaturity:
		v.Maturity = x
	}
	return v
}

// Validate rejects vectors with any component outside [0,1] or non-finite.
// Invalid vectors never enter the ledger; rejection happens at the boundary.
func (v LayerVector) Validate() error {
	for _, l := range Layers {
		x, _ := v.Value(l)
		if !IsValidScore(x) {
			return newError(KindValidation, "RBQ-VAL-001",
				"layer "+string(l)+" value "+FormatScore(x)+" outside [0,1]")
		}
	}
	return nil
}
