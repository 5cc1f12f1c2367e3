package rollup

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/storage"
)

// ScoreSource supplies final scores for MICRO children, keyed by unit ID.
// The certificate store is the usual implementation; only units whose
// evaluation has been sealed report a score.
type ScoreSource interface {
	UnitScore(unitID string) (float64, bool)
}

// Aggregator builds and seals the aggregation hierarchy. Each node scores
// its children by a dispersion-penalized mean:
//
//	score = clamp(weighted_mean - k*sqrt(variance), 0, 1)
//
// so a tier with uneven children scores below its average. k is the
// imbalance penalty and variance is the population variance of the child
// scores under the same weights as the mean.
type Aggregator struct {
	mu      sync.Mutex
	source  ScoreSource
	penalty float64
	ledger  *ledger.Ledger
	archive storage.CAS
	nodes   map[string]*Node
	logger  *slog.Logger
}

type Option func(*Aggregator)

// WithArchive stores sealed rollup payloads in content storage so ledger
// entries carry a resolvable CID.
func WithArchive(cas storage.CAS) Option {
	return func(a *Aggregator) { a.archive = cas }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func New(source ScoreSource, penalty float64, l *ledger.Ledger, opts ...Option) (*Aggregator, error) {
	if source == nil {
		return nil, model.NewError(model.KindValidation, "RBQ-AGG-005", "aggregator requires a score source")
	}
	if math.IsNaN(penalty) || math.IsInf(penalty, 0) || penalty < 0 {
		return nil, model.NewError(model.KindValidation, "RBQ-AGG-006", "imbalance penalty must be >= 0")
	}
	if l == nil {
		return nil, model.NewError(model.KindValidation, "RBQ-AGG-005", "aggregator requires a ledger")
	}
	a := &Aggregator{
		source:  source,
		penalty: penalty,
		ledger:  l,
		nodes:   make(map[string]*Node),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Plan registers a PENDING node for the given children without resolving
// their scores.
func (a *Aggregator) Plan(level Level, key string, children []ChildRef) (Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plan(level, key, children)
}

func (a *Aggregator) plan(level Level, key string, children []ChildRef) (Node, error) {
	if err := level.validateAggregable(); err != nil {
		return Node{}, err
	}
	if key == "" {
		return Node{}, model.NewError(model.KindValidation, "RBQ-AGG-003", "aggregation node requires a key")
	}
	if err := validateChildren(children); err != nil {
		return Node{}, err
	}
	n := &Node{
		ID:       uuid.NewString(),
		Level:    level,
		Key:      key,
		Children: append([]ChildRef(nil), children...),
		State:    StatePending,
	}
	a.nodes[n.ID] = n
	return *n, nil
}

// Compute resolves the node's children and derives its score, moving it
// from PENDING to COMPUTED. Resolution is fail-fast: the first child
// without a sealed or computed score aborts the computation, named in the
// error, and the node stays PENDING.
func (a *Aggregator) Compute(nodeID string) (Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[nodeID]
	if !ok {
		return Node{}, model.NewError(model.KindAggregation, "RBQ-AGG-020", "unknown aggregation node "+nodeID)
	}
	if err := a.compute(n); err != nil {
		return Node{}, err
	}
	return *n, nil
}

func (a *Aggregator) compute(n *Node) error {
	switch n.State {
	case StatePending, StateComputed:
	default:
		return model.NewError(model.KindAggregation, "RBQ-AGG-021",
			"node "+n.ID+" is "+string(n.State)+" and cannot be recomputed in place")
	}

	childLevel, _ := n.Level.Below()
	scores := make([]float64, len(n.Children))
	weights := make([]float64, len(n.Children))
	uniform := true
	for i, c := range n.Children {
		s, err := a.childScore(childLevel, c)
		if err != nil {
			return err
		}
		scores[i] = s
		weights[i] = c.Weight
		if c.Weight != 0 {
			uniform = false
		}
	}
	if uniform {
		for i := range weights {
			weights[i] = 1
		}
	}

	var wsum, mean float64
	for i := range scores {
		wsum += weights[i]
		mean += weights[i] * scores[i]
	}
	mean /= wsum
	var variance float64
	for i := range scores {
		d := scores[i] - mean
		variance += weights[i] * d * d
	}
	variance /= wsum

	n.Mean = mean
	n.Variance = variance
	n.Score = model.RoundScore(model.Clamp(mean-a.penalty*math.Sqrt(variance), 0, 1))
	n.State = StateComputed
	return nil
}

func (a *Aggregator) childScore(childLevel Level, ref ChildRef) (float64, error) {
	if child, ok := a.nodes[ref.ID]; ok {
		if child.Level != childLevel {
			return 0, model.NewError(model.KindAggregation, "RBQ-AGG-011",
				"child "+ref.ID+" is a "+string(child.Level)+" node, want "+string(childLevel))
		}
		switch child.State {
		case StateComputed, StateSealed:
			return child.Score, nil
		case StateArchived:
			return 0, model.NewError(model.KindAggregation, "RBQ-AGG-012",
				"child "+ref.ID+" is archived; aggregate its replacement instead")
		default:
			return 0, model.NewError(model.KindAggregation, "RBQ-AGG-010",
				"aggregation incomplete: child "+ref.ID+" has no computed score")
		}
	}
	if childLevel == LevelMicro {
		if s, ok := a.source.UnitScore(ref.ID); ok {
			return s, nil
		}
	}
	return 0, model.NewError(model.KindAggregation, "RBQ-AGG-010",
		"aggregation incomplete: child "+ref.ID+" has no sealed score")
}

// Aggregate registers a node and computes it in one step. On a missing
// child the node is left registered as PENDING and the error names the
// child.
func (a *Aggregator) Aggregate(level Level, key string, children []ChildRef) (Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, err := a.plan(level, key, children)
	if err != nil {
		return Node{}, err
	}
	if err := a.compute(a.nodes[n.ID]); err != nil {
		return Node{}, err
	}
	return *a.nodes[n.ID], nil
}

// Recompute builds a replacement for an existing node with a new child set.
// The old node is archived, never rewritten, and points at its replacement.
func (a *Aggregator) Recompute(nodeID string, children []ChildRef) (Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	old, ok := a.nodes[nodeID]
	if !ok {
		return Node{}, model.NewError(model.KindAggregation, "RBQ-AGG-020", "unknown aggregation node "+nodeID)
	}
	replacement, err := a.plan(old.Level, old.Key, children)
	if err != nil {
		return Node{}, err
	}
	if err := a.compute(a.nodes[replacement.ID]); err != nil {
		delete(a.nodes, replacement.ID)
		return Node{}, err
	}
	old.State = StateArchived
	old.SupersededBy = replacement.ID
	a.logger.Info("aggregation node superseded",
		slog.String("node_id", old.ID),
		slog.String("replacement", replacement.ID))
	return *a.nodes[replacement.ID], nil
}

// Node returns a copy of the node with the given ID.
func (a *Aggregator) Node(nodeID string) (Node, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[nodeID]
	if !ok {
		return Node{}, false
	}
	return *n, true
}
