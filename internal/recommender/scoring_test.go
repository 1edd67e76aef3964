package recommender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/parkgazer/internal/models"
)

func intPtr(v int) *int { return &v }

func TestWeightsSumToOne(t *testing.T) {
	for tier, w := range weightsByTier {
		sum := w.Availability + w.Proximity + w.WalkTime + w.Convenience
		assert.InDelta(t, 1.0, sum, 1e-9, "tier %s", tier)
	}
}

func TestTierForModeMapping(t *testing.T) {
	assert.Equal(t, UrgencyCritical, TierFor(ModeNearby, nil))
	assert.Equal(t, UrgencyRelaxed, TierFor(ModePlanned, nil))
	assert.Equal(t, UrgencyModerate, TierFor(ModeNow, nil))
	assert.Equal(t, UrgencyCritical, TierFor(ModeNow, intPtr(5)))
	assert.Equal(t, UrgencyModerate, TierFor(ModeNow, intPtr(15)))
	assert.Equal(t, UrgencyRelaxed, TierFor(ModeNow, intPtr(45)))
}

func TestDriveMinutes(t *testing.T) {
	// 3 公里 @ 18 km/h = 10 分钟，加 3 分钟找位
	assert.InDelta(t, 13.0, DriveMinutes(3000), 1e-9)
	// 零距离仍有找位缓冲
	assert.InDelta(t, SearchBufferMinutes, DriveMinutes(0), 1e-9)
}

func TestProximityScoreDecay(t *testing.T) {
	assert.InDelta(t, 1.0, proximityScore(0), 1e-9)
	// 远场降权但不归零
	far := proximityScore(5000)
	assert.Greater(t, far, 0.0)
	assert.Less(t, far, proximityScore(500))
	assert.InDelta(t, math.Exp(-0.25), proximityScore(500), 1e-9)
}

func makeCandidate(id string, predicted, distance float64) *Candidate {
	return &Candidate{
		Lot:              &models.Lot{ID: id},
		PredictedPercent: predicted,
		DistanceMeters:   distance,
		PermitOK:         true,
	}
}

func TestCombinedPenaltyAdditive(t *testing.T) {
	limit := 120
	clean := makeCandidate("A1", 30, 400)
	flagged := makeCandidate("A1", 30, 400)
	flagged.Lot.IsIcingZone = true
	flagged.Lot.TimeLimitMinutes = &limit

	w := WeightsFor(UrgencyModerate)
	ScoreCandidate(clean, w)
	ScoreCandidate(flagged, w)

	// 15 + 20 = 35 点线性扣减，不做乘法复合
	assert.InDelta(t, 35.0, flagged.Penalty, 1e-9)
	assert.InDelta(t, clean.Score-35.0, flagged.Score, 1e-9)
}

func TestPenaltyFloorAtZero(t *testing.T) {
	c := makeCandidate("A1", 100, 100000)
	c.Lot.IsIcingZone = true
	c.PermitOK = false
	c.AlreadyHere = true

	ScoreCandidate(c, WeightsFor(UrgencyModerate))
	assert.Equal(t, 0.0, c.Score)
	assert.InDelta(t, 55.0, c.Penalty, 1e-9)
}

func TestShuttleReducesConvenience(t *testing.T) {
	direct := makeCandidate("A1", 30, 400)
	shuttle := makeCandidate("A1", 30, 400)
	shuttle.Lot.RequiresShuttle = true

	w := WeightsFor(UrgencyModerate)
	ScoreCandidate(direct, w)
	ScoreCandidate(shuttle, w)
	assert.Greater(t, direct.Score, shuttle.Score)
	assert.InDelta(t, ShuttleConvenienceFactor, shuttle.ConvenienceScore, 1e-9)
}

func TestSortDeterministic(t *testing.T) {
	build := func() []*Candidate {
		// B2 与 C3 得分并列，距离相同，按场 ID 决胜
		a := makeCandidate("B2", 40, 300)
		b := makeCandidate("C3", 40, 300)
		c := makeCandidate("A1", 20, 300)
		w := WeightsFor(UrgencyModerate)
		ScoreCandidate(a, w)
		ScoreCandidate(b, w)
		ScoreCandidate(c, w)
		return []*Candidate{b, a, c}
	}

	first := build()
	SortCandidates(first)
	second := build()
	SortCandidates(second)

	require.Len(t, first, 3)
	assert.Equal(t, "A1", first[0].Lot.ID)
	assert.Equal(t, "B2", first[1].Lot.ID)
	assert.Equal(t, "C3", first[2].Lot.ID)

	// 两次运行顺序完全一致
	for i := range first {
		assert.Equal(t, first[i].Lot.ID, second[i].Lot.ID)
	}

	// 得分严格降序（允许并列）
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
	}
}

func TestSortTieBreakByDistance(t *testing.T) {
	near := makeCandidate("Z9", 40, 200)
	far := makeCandidate("A1", 40, 200)
	// 人为制造同分不同距
	w := WeightsFor(UrgencyModerate)
	ScoreCandidate(near, w)
	ScoreCandidate(far, w)
	near.Score, far.Score = 50, 50
	near.DistanceMeters, far.DistanceMeters = 100, 900

	list := []*Candidate{far, near}
	SortCandidates(list)
	assert.Equal(t, "Z9", list[0].Lot.ID)
	assert.Equal(t, "A1", list[1].Lot.ID)
}

func TestAvailabilityScoreClamped(t *testing.T) {
	assert.Equal(t, 0.0, availabilityScore(150))
	assert.Equal(t, 1.0, availabilityScore(-10))
	assert.InDelta(t, 0.7, availabilityScore(30), 1e-9)
}
