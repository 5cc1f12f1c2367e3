package rollup

import (
	"encoding/json"
	"log/slog"

	"rubriq.co/rubriq/ledger"
	"rubriq.co/rubriq/model"
)

// sealedPayload is the canonical form of a sealed node. Scores are carried
// as fixed-precision strings so the payload bytes, and therefore the chain
// digest, never depend on float formatting.
type sealedPayload struct {
	NodeID   string     `json:"node_id"`
	Level    Level      `json:"level"`
	Key      string     `json:"key"`
	Children []ChildRef `json:"children"`
	Mean     string     `json:"mean"`
	Variance string     `json:"variance"`
	Score    string     `json:"score"`
}

// Seal writes a COMPUTED node to the ledger and marks it SEALED. Sealing is
// terminal: the node can never be recomputed in place afterwards, only
// superseded through Recompute.
func (a *Aggregator) Seal(nodeID string) (Node, ledger.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.nodes[nodeID]
	if !ok {
		return Node{}, ledger.Entry{}, model.NewError(model.KindAggregation, "RBQ-AGG-020",
			"unknown aggregation node "+nodeID)
	}
	if n.State != StateComputed {
		return Node{}, ledger.Entry{}, model.NewError(model.KindAggregation, "RBQ-AGG-022",
			"node "+n.ID+" is "+string(n.State)+", only COMPUTED nodes can be sealed")
	}

	payload, err := json.Marshal(sealedPayload{
		NodeID:   n.ID,
		Level:    n.Level,
		Key:      n.Key,
		Children: n.Children,
		Mean:     model.FormatScore(model.RoundScore(n.Mean)),
		Variance: model.FormatScore(model.RoundScore(n.Variance)),
		Score:    model.FormatScore(n.Score),
	})
	if err != nil {
		return Node{}, ledger.Entry{}, model.WrapError(model.KindInternal, "RBQ-AGG-023",
			"rollup payload encoding failed", err)
	}

	payloadCID := ""
	if a.archive != nil {
		id, err := a.archive.Put(payload)
		if err != nil {
			return Node{}, ledger.Entry{}, model.WrapError(model.KindInternal, "RBQ-AGG-024",
				"rollup archive failed", err)
		}
		payloadCID = id.String()
	}

	e, err := a.ledger.Append(ledger.KindRollup, n.ID, payloadCID, payload)
	if err != nil {
		return Node{}, ledger.Entry{}, err
	}
	n.State = StateSealed
	n.SealedSeq = e.Seq

	a.logger.Info("aggregation node sealed",
		slog.String("node_id", n.ID),
		slog.String("level", string(n.Level)),
		slog.String("key", n.Key),
		slog.Uint64("seq", e.Seq))
	return *n, e, nil
}
