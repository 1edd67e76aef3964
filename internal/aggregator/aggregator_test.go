package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/parkgazer/internal/models"
)

var testNow = time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)

func makeReport(pct float64, ageMinutes float64, tier models.TrustTier, up, down int) *models.Report {
	return &models.Report{
		LotID:            "C11",
		Kind:             models.ReportStatus,
		OccupancyPercent: &pct,
		TrustTier:        tier,
		Upvotes:          up,
		Downvotes:        down,
		CreatedAt:        testNow.Add(-time.Duration(ageMinutes * float64(time.Minute))),
	}
}

func TestReportWeightDecayAsymptote(t *testing.T) {
	// 无限老的上报权重趋近 0
	r := makeReport(80, 10000, models.TrustVerified, 100, 0)
	w := ReportWeight(r, testNow)
	assert.Less(t, w, 1e-6)
}

func TestReportWeightFreshReport(t *testing.T) {
	r := makeReport(80, 0, models.TrustNew, 0, 0)
	assert.InDelta(t, 1.0, ReportWeight(r, testNow), 1e-9)
}

func TestReportWeightVoteFloor(t *testing.T) {
	// 大量负净赞不低于 0.5 下限
	r := makeReport(80, 0, models.TrustNew, 0, 20)
	assert.InDelta(t, 0.5, ReportWeight(r, testNow), 1e-9)
}

func TestReportWeightVoteBonus(t *testing.T) {
	r := makeReport(80, 0, models.TrustNew, 5, 2)
	// 净赞 3：1 + 0.1*3 = 1.3
	assert.InDelta(t, 1.3, ReportWeight(r, testNow), 1e-9)
}

func TestTrustMultiplierMonotonic(t *testing.T) {
	tiers := []models.TrustTier{
		models.TrustNew, models.TrustBasic, models.TrustRegular,
		models.TrustTrusted, models.TrustVerified,
	}
	prev := 0.0
	for _, tier := range tiers {
		m := tier.Multiplier()
		assert.Greater(t, m, prev, "tier %s", tier)
		prev = m
	}
	assert.InDelta(t, 1.0, models.TrustNew.Multiplier(), 1e-9)
	assert.InDelta(t, 2.0, models.TrustVerified.Multiplier(), 1e-9)
}

func TestComputeZeroReports(t *testing.T) {
	status := Compute("C11", nil, testNow)
	assert.InDelta(t, 50.0, status.OccupancyPercent, 1e-9)
	assert.Equal(t, models.ConfidenceLow, status.Confidence)
	assert.Equal(t, models.TrendStable, status.Trend)
	assert.Equal(t, 0, status.ReportCount)
	assert.False(t, status.IsClosed)
}

func TestComputeWeightedMeanExample(t *testing.T) {
	// 三条上报：2/8/40 分钟前，80/70/50，信誉与投票相同
	// 权重 exp(-2/30)/exp(-8/30)/exp(-40/30)，加权均值 ≈ 72.08
	reports := []*models.Report{
		makeReport(80, 2, models.TrustNew, 0, 0),
		makeReport(70, 8, models.TrustNew, 0, 0),
		makeReport(50, 40, models.TrustNew, 0, 0),
	}
	status := Compute("C11", reports, testNow)
	assert.InDelta(t, 72.08, status.OccupancyPercent, 0.005)
	assert.Equal(t, models.StatusFilling, status.Status)
}

func TestComputeBucketThresholds(t *testing.T) {
	tests := []struct {
		percent float64
		want    models.StatusBucket
	}{
		{0, models.StatusOpen},
		{20, models.StatusOpen},
		{20.01, models.StatusLight},
		{40, models.StatusLight},
		{60, models.StatusModerate},
		{80, models.StatusFilling},
		{80.01, models.StatusFull},
		{100, models.StatusFull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.BucketFor(tt.percent), "percent %v", tt.percent)
	}
}

func TestConfidenceTierSteps(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		newestAge float64 // 分钟
		want      models.ConfidenceTier
	}{
		{"zero reports", 0, 0, models.ConfidenceLow},
		{"two reports", 2, 1, models.ConfidenceLow},
		{"five reports", 5, 1, models.ConfidenceMedium},
		{"eight fresh", 8, 5, models.ConfidenceHigh},
		{"eight stale", 8, 30, models.ConfidenceMedium},
		{"twelve very fresh", 12, 2, models.ConfidenceVerified},
		{"twelve stale", 12, 20, models.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reports []*models.Report
			for i := 0; i < tt.count; i++ {
				age := tt.newestAge + float64(i)
				reports = append(reports, makeReport(60, age, models.TrustNew, 0, 0))
			}
			status := Compute("C11", reports, testNow)
			assert.Equal(t, tt.want, status.Confidence)
		})
	}
}

func TestTrendStableWhenRecentEmpty(t *testing.T) {
	// 最近窗口无上报 → stable，无论旧数据如何
	reports := []*models.Report{
		makeReport(90, 30, models.TrustNew, 0, 0),
		makeReport(20, 60, models.TrustNew, 0, 0),
	}
	status := Compute("C11", reports, testNow)
	assert.Equal(t, models.TrendStable, status.Trend)
}

func TestTrendRisingAndFalling(t *testing.T) {
	rising := []*models.Report{
		makeReport(85, 2, models.TrustNew, 0, 0),
		makeReport(80, 5, models.TrustNew, 0, 0),
		makeReport(50, 30, models.TrustNew, 0, 0),
	}
	status := Compute("C11", rising, testNow)
	assert.Equal(t, models.TrendRising, status.Trend)

	falling := []*models.Report{
		makeReport(30, 2, models.TrustNew, 0, 0),
		makeReport(70, 30, models.TrustNew, 0, 0),
	}
	status = Compute("C11", falling, testNow)
	assert.Equal(t, models.TrendFalling, status.Trend)
}

func TestTrendStableWithinThreshold(t *testing.T) {
	// 差值恰好 10 点不触发
	reports := []*models.Report{
		makeReport(60, 2, models.TrustNew, 0, 0),
		makeReport(50, 30, models.TrustNew, 0, 0),
	}
	status := Compute("C11", reports, testNow)
	assert.Equal(t, models.TrendStable, status.Trend)
}

func TestClosureRequiresTwoReports(t *testing.T) {
	note := "flooded entrance"
	hazard := func(age float64) *models.Report {
		return &models.Report{
			LotID:     "C11",
			Kind:      models.ReportHazard,
			Note:      &note,
			TrustTier: models.TrustNew,
			CreatedAt: testNow.Add(-time.Duration(age * float64(time.Minute))),
		}
	}

	// 单条障碍上报永不触发封闭
	status := Compute("C11", []*models.Report{hazard(5)}, testNow)
	assert.False(t, status.IsClosed)

	// 两条独立上报触发封闭
	status = Compute("C11", []*models.Report{hazard(5), hazard(15)}, testNow)
	require.True(t, status.IsClosed)
	require.NotNil(t, status.ClosedReason)
	assert.Equal(t, "flooded entrance", *status.ClosedReason)
}

func TestComputeIgnoresReportsWithoutOccupancy(t *testing.T) {
	reports := []*models.Report{
		{LotID: "C11", Kind: models.ReportArrived, TrustTier: models.TrustNew, CreatedAt: testNow.Add(-time.Minute)},
		makeReport(40, 3, models.TrustNew, 0, 0),
	}
	status := Compute("C11", reports, testNow)
	assert.Equal(t, 1, status.ReportCount)
	assert.InDelta(t, 40, status.OccupancyPercent, 1e-9)
}
