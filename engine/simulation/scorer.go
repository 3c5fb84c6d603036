// Package simulation hosts the in-process simulator nodes that analyze
// intents and report risk assessments back to the verification engine.
package simulation

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/intentgate/intentgate-go/model/intent"
)

// RiskScorer analyzes a single intent against the target state it was
// snapshotted on and produces a risk assessment. Implementations must be safe
// for concurrent use and must respect ctx cancellation: an analysis cut short
// returns an error and no assessment.
type RiskScorer interface {
	Score(ctx context.Context, item *intent.Intent) (*intent.Assessment, error)
}

// Selector risk classes used by the heuristic scorer. The selectors are the
// first four payload bytes, matching the calldata convention of the targeted
// chains.
var riskySelectors = map[[4]byte]uint8{
	{0x09, 0x5e, 0xa7, 0xb3}: 35, // approve(address,uint256)
	{0xa2, 0x2c, 0xb4, 0x65}: 45, // setApprovalForAll(address,bool)
	{0x23, 0xb8, 0x72, 0xdd}: 30, // transferFrom(address,address,uint256)
	{0xf2, 0xfd, 0xe3, 0x8b}: 60, // transferOwnership(address)
}

// valueRiskCap bounds the contribution of the transferred value to the score.
const valueRiskCap = 40

// HeuristicScorer is a deterministic scorer that rates an intent from its
// calldata selector and the magnitude of the transferred value. It stands in
// for a full execution simulator and gives the pool a scorer that behaves the
// same in every run.
type HeuristicScorer struct {
	// Threshold is the value (in wei) at which the value contribution
	// saturates at valueRiskCap.
	Threshold *big.Int
}

var _ RiskScorer = (*HeuristicScorer)(nil)

// NewHeuristicScorer returns a scorer that saturates its value contribution
// at the given threshold. A nil threshold disables the value heuristic.
func NewHeuristicScorer(threshold *big.Int) *HeuristicScorer {
	return &HeuristicScorer{Threshold: threshold}
}

// Score rates the intent. The returned assessment approves any intent scoring
// below 50.
func (h *HeuristicScorer) Score(ctx context.Context, item *intent.Intent) (*intent.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var score uint8
	analysis := "no risk indicators"

	if sel := item.Selector(); sel != nil {
		var selector [4]byte
		copy(selector[:], sel)
		if risk, known := riskySelectors[selector]; known {
			score = risk
			analysis = "payload matches privileged selector 0x" + hex.EncodeToString(selector[:])
		}
	}

	if h.Threshold != nil && h.Threshold.Sign() > 0 && item.Value != nil && item.Value.Sign() > 0 {
		// scaled linearly against the threshold, saturating at the cap
		contribution := new(big.Int).Mul(item.Value, big.NewInt(valueRiskCap))
		contribution.Quo(contribution, h.Threshold)
		if contribution.Cmp(big.NewInt(valueRiskCap)) > 0 {
			contribution.SetInt64(valueRiskCap)
		}
		if contribution.Sign() > 0 {
			score += uint8(contribution.Int64())
			if analysis == "no risk indicators" {
				analysis = "transferred value raises exposure"
			}
		}
	}

	if score > intent.MaxRiskScore {
		score = intent.MaxRiskScore
	}
	return &intent.Assessment{
		RiskScore: score,
		Approve:   score < 50,
		Analysis:  analysis,
	}, nil
}
