package rollup

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/storage/memfs"
)

type mapSource map[string]float64

func (m mapSource) UnitScore(id string) (float64, bool) {
	s, ok := m[id]
	return s, ok
}

func testAggregator(t *testing.T, source ScoreSource, penalty float64, opts ...Option) *Aggregator {
	t.Helper()
	l, err := ledger.Open(ledger.NewMemorySink())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	a, err := New(source, penalty, l, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func uniformChildren(ids ...string) []ChildRef {
	out := make([]ChildRef, len(ids))
	for i, id := range ids {
		out[i] = ChildRef{ID: id}
	}
	return out
}

func TestAggregateDispersionPenalty(t *testing.T) {
	// Nine strong units and one weak one: the outlier drags the tier below
	// its plain average through the variance penalty.
	source := mapSource{}
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
		source[ids[i]] = 0.9
	}
	source[ids[9]] = 0.1

	a := testAggregator(t, source, 0.5)
	n, err := a.Aggregate(LevelDimension, "clarity", uniformChildren(ids...))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if math.Abs(n.Mean-0.82) > 1e-9 {
		t.Fatalf("Mean = %v, want 0.82", n.Mean)
	}
	if math.Abs(n.Variance-0.0576) > 1e-9 {
		t.Fatalf("Variance = %v, want 0.0576", n.Variance)
	}
	if n.Score != 0.7 {
		t.Fatalf("Score = %v, want 0.7000", n.Score)
	}
	if n.Score >= n.Mean {
		t.Fatalf("dispersion penalty did not apply: score %v >= mean %v", n.Score, n.Mean)
	}
}

func TestAggregateUniformShift(t *testing.T) {
	// Lifting every child by the same amount leaves the variance untouched,
	// so the node score lifts by exactly that amount.
	a := testAggregator(t, mapSource{"a": 0.5, "b": 0.6, "c": 0.7}, 0.5)
	base, err := a.Aggregate(LevelDimension, "base", uniformChildren("a", "b", "c"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	shifted := testAggregator(t, mapSource{"a": 0.6, "b": 0.7, "c": 0.8}, 0.5)
	lifted, err := shifted.Aggregate(LevelDimension, "base", uniformChildren("a", "b", "c"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if math.Abs((lifted.Score-base.Score)-0.1) > 1e-9 {
		t.Fatalf("shift by 0.1 changed score by %v", lifted.Score-base.Score)
	}
	if math.Abs(lifted.Variance-base.Variance) > 1e-12 {
		t.Fatalf("uniform shift changed variance: %v vs %v", lifted.Variance, base.Variance)
	}
}

func TestAggregateWeighted(t *testing.T) {
	a := testAggregator(t, mapSource{"a": 0.8, "b": 0.4}, 0)
	n, err := a.Aggregate(LevelDimension, "weighted", []ChildRef{
		{ID: "a", Weight: 3},
		{ID: "b", Weight: 1},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if n.Score != 0.7 {
		t.Fatalf("Score = %v, want weighted mean 0.7000", n.Score)
	}
}

func TestAggregateRejectsBadInput(t *testing.T) {
	a := testAggregator(t, mapSource{"a": 0.5}, 0.5)

	if _, err := a.Aggregate(LevelMicro, "leaf", uniformChildren("a")); model.RuleID(err) != "RBQ-AGG-002" {
		t.Fatalf("MICRO aggregation: %v", err)
	}
	if _, err := a.Aggregate(LevelDimension, "d", nil); model.RuleID(err) != "RBQ-AGG-003" {
		t.Fatalf("empty children: %v", err)
	}
	if _, err := a.Aggregate(LevelDimension, "d", []ChildRef{{ID: "a", Weight: -1}}); model.RuleID(err) != "RBQ-AGG-004" {
		t.Fatalf("negative weight: %v", err)
	}
	if _, err := a.Aggregate(LevelDimension, "d", []ChildRef{{ID: "a", Weight: 2}, {ID: "b"}}); model.RuleID(err) != "RBQ-AGG-004" {
		t.Fatalf("partial weights: %v", err)
	}

	if _, err := New(mapSource{}, -0.1, nil); model.RuleID(err) != "RBQ-AGG-006" {
		t.Fatalf("negative penalty: %v", err)
	}
}

func TestComputeFailsFastOnMissingChild(t *testing.T) {
	a := testAggregator(t, mapSource{"a": 0.5, "b": 0.6}, 0.5)

	n, err := a.Plan(LevelDimension, "partial", uniformChildren("a", "b", "missing-unit"))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	_, err = a.Compute(n.ID)
	if model.RuleID(err) != "RBQ-AGG-010" || !model.IsKind(err, model.KindAggregation) {
		t.Fatalf("Compute with missing child: %v", err)
	}
	if !strings.Contains(err.Error(), "missing-unit") {
		t.Fatalf("error does not name the missing child: %v", err)
	}

	got, ok := a.Node(n.ID)
	if !ok || got.State != StatePending {
		t.Fatalf("incomplete node should stay PENDING, got %v", got.State)
	}
}

func TestStateMachine(t *testing.T) {
	a := testAggregator(t, mapSource{"a": 0.5, "b": 0.7}, 0.5, WithArchive(memfs.New()))

	n, err := a.Plan(LevelDimension, "d", uniformChildren("a", "b"))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if n.State != StatePending {
		t.Fatalf("planned node is %v", n.State)
	}
	if _, _, err := a.Seal(n.ID); model.RuleID(err) != "RBQ-AGG-022" {
		t.Fatalf("sealed a PENDING node: %v", err)
	}

	n, err = a.Compute(n.ID)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if n.State != StateComputed {
		t.Fatalf("computed node is %v", n.State)
	}

	sealed, e, err := a.Seal(n.ID)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.State != StateSealed || sealed.SealedSeq != e.Seq {
		t.Fatalf("sealed node = %+v, entry seq %d", sealed, e.Seq)
	}
	if e.Kind != ledger.KindRollup || e.Ref != n.ID {
		t.Fatalf("ledger entry = %+v", e)
	}
	if e.PayloadCID == "" {
		t.Fatalf("archived seal has no payload CID")
	}

	if _, _, err := a.Seal(n.ID); model.RuleID(err) != "RBQ-AGG-022" {
		t.Fatalf("double seal: %v", err)
	}
	if _, err := a.Compute(n.ID); model.RuleID(err) != "RBQ-AGG-021" {
		t.Fatalf("recomputed a SEALED node in place: %v", err)
	}
}

func TestRecomputeArchivesOldNode(t *testing.T) {
	source := mapSource{"a": 0.5, "b": 0.7, "c": 0.9}
	a := testAggregator(t, source, 0)

	old, err := a.Aggregate(LevelDimension, "d", uniformChildren("a", "b"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if _, _, err := a.Seal(old.ID); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	replacement, err := a.Recompute(old.ID, uniformChildren("a", "b", "c"))
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if replacement.ID == old.ID {
		t.Fatalf("recompute reused the node ID")
	}
	if math.Abs(replacement.Score-0.7) > 1e-9 {
		t.Fatalf("replacement score = %v", replacement.Score)
	}

	archived, ok := a.Node(old.ID)
	if !ok {
		t.Fatalf("old node gone after recompute")
	}
	if archived.State != StateArchived || archived.SupersededBy != replacement.ID {
		t.Fatalf("old node = %+v", archived)
	}
	if archived.Score != old.Score {
		t.Fatalf("archival rewrote the old score")
	}

	// Archived nodes cannot feed new aggregates.
	if _, err := a.Aggregate(LevelArea, "area", uniformChildren(old.ID)); model.RuleID(err) != "RBQ-AGG-012" {
		t.Fatalf("aggregated an archived child: %v", err)
	}
}

func TestHierarchyTiers(t *testing.T) {
	source := mapSource{"a": 0.8, "b": 0.6, "c": 0.7, "d": 0.9}
	a := testAggregator(t, source, 0.25)

	d1, err := a.Aggregate(LevelDimension, "clarity", uniformChildren("a", "b"))
	if err != nil {
		t.Fatalf("Aggregate dimension: %v", err)
	}
	d2, err := a.Aggregate(LevelDimension, "rigor", uniformChildren("c", "d"))
	if err != nil {
		t.Fatalf("Aggregate dimension: %v", err)
	}

	area, err := a.Aggregate(LevelArea, "method", uniformChildren(d1.ID, d2.ID))
	if err != nil {
		t.Fatalf("Aggregate area: %v", err)
	}
	if area.Score <= 0 || area.Score > 1 {
		t.Fatalf("area score = %v", area.Score)
	}

	// An AREA node aggregates DIMENSION children only.
	if _, err := a.Aggregate(LevelMacro, "overall", uniformChildren(d1.ID)); model.RuleID(err) != "RBQ-AGG-011" {
		t.Fatalf("level mismatch accepted: %v", err)
	}

	cluster, err := a.Aggregate(LevelCluster, "portfolio", uniformChildren(area.ID))
	if err != nil {
		t.Fatalf("Aggregate cluster: %v", err)
	}
	if _, err := a.Aggregate(LevelMacro, "overall", uniformChildren(cluster.ID)); err != nil {
		t.Fatalf("Aggregate macro: %v", err)
	}
}
