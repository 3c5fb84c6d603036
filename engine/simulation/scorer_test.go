package simulation

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/utils/unittest"
)

func TestScoreUnknownSelector(t *testing.T) {
	scorer := NewHeuristicScorer(nil)
	item := unittest.IntentFixture()

	assessment, err := scorer.Score(context.Background(), item)
	require.NoError(t, err)
	require.Zero(t, assessment.RiskScore)
	require.True(t, assessment.Approve)
}

func TestScorePrivilegedSelectors(t *testing.T) {
	scorer := NewHeuristicScorer(nil)

	t.Run("approve stays below the line", func(t *testing.T) {
		item := unittest.IntentFixture()
		item.Payload = []byte{0x09, 0x5e, 0xa7, 0xb3}
		item.Value = nil

		assessment, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		require.Equal(t, uint8(35), assessment.RiskScore)
		require.True(t, assessment.Approve)
		require.Contains(t, assessment.Analysis, "0x095ea7b3")
	})

	t.Run("ownership transfer is rejected", func(t *testing.T) {
		item := unittest.IntentFixture()
		item.Payload = []byte{0xf2, 0xfd, 0xe3, 0x8b}
		item.Value = nil

		assessment, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		require.Equal(t, uint8(60), assessment.RiskScore)
		require.False(t, assessment.Approve)
	})
}

func TestScoreValueContribution(t *testing.T) {
	scorer := NewHeuristicScorer(big.NewInt(1000))

	t.Run("scales linearly below the threshold", func(t *testing.T) {
		item := unittest.IntentFixture()
		item.Payload = nil
		item.Value = big.NewInt(500)

		assessment, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		require.Equal(t, uint8(20), assessment.RiskScore)
	})

	t.Run("saturates at the cap", func(t *testing.T) {
		item := unittest.IntentFixture()
		item.Payload = nil
		item.Value = big.NewInt(1_000_000)

		assessment, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		require.Equal(t, uint8(valueRiskCap), assessment.RiskScore)
	})

	t.Run("selector and value stack", func(t *testing.T) {
		item := unittest.IntentFixture()
		item.Payload = []byte{0x09, 0x5e, 0xa7, 0xb3}
		item.Value = big.NewInt(500)

		assessment, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		require.Equal(t, uint8(55), assessment.RiskScore)
		require.False(t, assessment.Approve)
	})
}

func TestScoreRespectsCancellation(t *testing.T) {
	scorer := NewHeuristicScorer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scorer.Score(ctx, unittest.IntentFixture())
	require.ErrorIs(t, err, context.Canceled)
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewHeuristicScorer(big.NewInt(1000))
	item := unittest.IntentFixture()

	first, err := scorer.Score(context.Background(), item)
	require.NoError(t, err)
	var assessments []*intent.Assessment
	for i := 0; i < 10; i++ {
		a, err := scorer.Score(context.Background(), item)
		require.NoError(t, err)
		assessments = append(assessments, a)
	}
	for _, a := range assessments {
		require.Equal(t, first, a)
	}
}
