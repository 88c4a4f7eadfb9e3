package diamond

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// CutEvent is the decoded payload of a DiamondCut log.
type CutEvent struct {
	Initiator ir.Address    `json:"initiator"`
	Cuts      []ir.FacetCut `json:"cuts"`
	Init      ir.Address    `json:"init"`
	Calldata  string        `json:"calldata"`
}

// DecodeCutEvent parses a DiamondCut log payload.
func DecodeCutEvent(l ir.Log) (*CutEvent, error) {
	if l.Event != EventDiamondCut {
		return nil, fmt.Errorf("log %d is %s, not %s", l.Seq, l.Event, EventDiamondCut)
	}
	var ev CutEvent
	if err := json.Unmarshal(l.Data, &ev); err != nil {
		return nil, fmt.Errorf("log %d: decode %s: %w", l.Seq, EventDiamondCut, err)
	}
	return &ev, nil
}

// Replay rebuilds a routing table from a diamond's DiamondCut logs alone,
// the way an off-chain indexer would. Logs must be in seq order; logs of
// other events are skipped.
func Replay(logs []ir.Log) (*Registry, error) {
	reg := NewRegistry(MemorySlots{})
	for _, l := range logs {
		if l.Event != EventDiamondCut {
			continue
		}
		ev, err := DecodeCutEvent(l)
		if err != nil {
			return nil, err
		}
		// Cuts in the log were validated when applied; code checks would
		// need live state.
		if err := reg.ApplyCuts(ev.Cuts, nil); err != nil {
			return nil, fmt.Errorf("replay log %d: %w", l.Seq, err)
		}
	}
	return reg, nil
}

// VerifyResult compares the live registry with its audit-log replay.
type VerifyResult struct {
	Diamond   ir.Address `json:"diamond"`
	Live      ir.Hash    `json:"live"`
	Replayed  ir.Hash    `json:"replayed"`
	Cuts      int        `json:"cuts"`
	Match     bool       `json:"match"`
	Violation string     `json:"violation,omitempty"`
}

// OK reports whether the digests match and the live registry is sound.
func (r *VerifyResult) OK() bool {
	return r.Match && r.Violation == ""
}

// Verify replays a diamond's audit log and compares the resulting routing
// digest with the live registry. It also runs Check on the live registry.
func Verify(ctx context.Context, e *engine.Engine, diamond ir.Address) (*VerifyResult, error) {
	res := &VerifyResult{Diamond: diamond}

	err := e.Inspect(ctx, diamond, func(f *engine.Frame) error {
		reg := State(f)
		var err error
		if res.Live, err = reg.Digest(); err != nil {
			return err
		}
		if cerr := reg.Check(); cerr != nil {
			res.Violation = cerr.Error()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify %s: read live registry: %w", diamond, err)
	}

	logs, err := e.Logs(ctx, ir.LogFilter{Address: diamond, Event: EventDiamondCut})
	if err != nil {
		return nil, fmt.Errorf("verify %s: read logs: %w", diamond, err)
	}
	res.Cuts = len(logs)

	replayed, err := Replay(logs)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", diamond, err)
	}
	if res.Replayed, err = replayed.Digest(); err != nil {
		return nil, fmt.Errorf("verify %s: %w", diamond, err)
	}
	res.Match = res.Live == res.Replayed
	return res, nil
}

// View is a snapshot of a diamond's routing state.
type View struct {
	Diamond ir.Address `json:"diamond"`
	Owner   ir.Address `json:"owner"`
	Facets  []ir.Facet `json:"facets"`
	Digest  ir.Hash    `json:"digest"`
}

// Snapshot reads a diamond's owner and facets without sending a message.
func Snapshot(ctx context.Context, e *engine.Engine, diamond ir.Address) (*View, error) {
	v := &View{Diamond: diamond}
	err := e.Inspect(ctx, diamond, func(f *engine.Frame) error {
		reg := State(f)
		var err error
		if v.Owner, err = reg.Owner(); err != nil {
			return err
		}
		if v.Facets, err = reg.Facets(); err != nil {
			return err
		}
		v.Digest, err = reg.Digest()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", diamond, err)
	}
	return v, nil
}
