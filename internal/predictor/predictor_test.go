package predictor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/parkgazer/internal/models"
)

var testNow = time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC) // 周一

func TestFeaturesCyclicalContinuity(t *testing.T) {
	// 23 点与 0 点在 sin/cos 编码下应当相邻
	late := Features(time.Date(2025, 10, 6, 23, 0, 0, 0, time.UTC), nil)
	early := Features(time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC), nil)

	dist := math.Hypot(late[featHourSin]-early[featHourSin], late[featHourCos]-early[featHourCos])
	assert.Less(t, dist, 0.3)

	// 裸小时特征的断崖依旧存在，周期编码是补充不是替代
	assert.InDelta(t, 23, late[featHour], 1e-9)
	assert.InDelta(t, 0, early[featHour], 1e-9)
}

func TestFeaturesEventFlags(t *testing.T) {
	events := []*models.Event{
		{
			LotID:     "C11",
			EventType: models.EventSports,
			StartTime: testNow.Add(-time.Hour),
			EndTime:   testNow.Add(time.Hour),
		},
		{
			// 已结束的活动不计入
			LotID:     "C11",
			EventType: models.EventAcademic,
			StartTime: testNow.Add(-3 * time.Hour),
			EndTime:   testNow.Add(-2 * time.Hour),
		},
	}
	f := Features(testNow, events)
	assert.Equal(t, 1.0, f[featHasEvent])
	assert.Equal(t, 1.0, f[featEventSports])
	assert.Equal(t, 0.0, f[featEventAcademic])
	assert.Equal(t, 0.0, f[featEventSpecial])
}

func TestFeaturesWeekend(t *testing.T) {
	saturday := time.Date(2025, 10, 11, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, Features(saturday, nil)[featIsWeekend])
	assert.Equal(t, 0.0, Features(testNow, nil)[featIsWeekend])
}

func TestTrainTreeSplitsOnSignal(t *testing.T) {
	// 小时 <12 残差 -20，否则 +20：一次分裂即可完美拟合
	var features [][]float64
	var residuals []float64
	for hour := 0; hour < 24; hour++ {
		features = append(features, Features(time.Date(2025, 10, 6, hour, 0, 0, 0, time.UTC), nil))
		if hour < 12 {
			residuals = append(residuals, -20)
		} else {
			residuals = append(residuals, 20)
		}
	}

	importance := make(map[string]float64)
	tree := TrainTree(features, residuals, importance)

	for i, f := range features {
		assert.InDelta(t, residuals[i], tree.Evaluate(f), 1e-9, "hour %d", i)
	}
	assert.Positive(t, importance["hour"])
}

func TestTrainModelInsufficientData(t *testing.T) {
	samples := make([]Sample, 40)
	for i := range samples {
		ts := testNow.Add(time.Duration(i) * time.Hour)
		samples[i] = Sample{LotID: "C11", Timestamp: ts, Features: Features(ts, nil), Label: 50}
	}
	_, err := TrainModel(samples, "v-test", testNow)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "50")
}

func TestTrainModelLearnsHourlyPattern(t *testing.T) {
	// 上午 90、下午 20 的固定日形态，模型应学到小时分界
	var samples []Sample
	for day := 0; day < 10; day++ {
		for hour := 6; hour < 22; hour++ {
			ts := time.Date(2025, 9, 1+day, hour, 0, 0, 0, time.UTC)
			label := 20.0
			if hour < 13 {
				label = 90.0
			}
			samples = append(samples, Sample{
				LotID:     "C11",
				Timestamp: ts,
				Features:  Features(ts, nil),
				Label:     label,
			})
		}
	}
	require.GreaterOrEqual(t, len(samples), MinTrainingSamples)

	model, err := TrainModel(samples, "v-test", testNow)
	require.NoError(t, err)

	assert.Equal(t, models.ModelTypeGradientBoosting, model.ModelType)
	assert.Len(t, model.Trees, TreeCount)
	assert.Equal(t, len(samples), model.Metrics.SampleCount)
	assert.Equal(t, model.Metrics.TrainCount+model.Metrics.TestCount, len(samples))

	morning := Score(model, Features(time.Date(2025, 9, 15, 9, 0, 0, 0, time.UTC), nil))
	evening := Score(model, Features(time.Date(2025, 9, 15, 20, 0, 0, 0, time.UTC), nil))
	assert.Greater(t, morning, 70.0)
	assert.Less(t, evening, 40.0)

	// 10 轮 × 0.1 学习率只吸收约 65% 的初始残差，精度上限受此约束
	assert.Less(t, model.Metrics.MAE, 15.0)
	assert.GreaterOrEqual(t, model.Metrics.Within20, 0.9)
}

func TestScoreClamped(t *testing.T) {
	// 人为构造叶子值巨大的模型，输出仍在 [0,100]
	model := &models.TrainedModel{
		BaseScore:    95,
		LearningRate: 1.0,
		Trees:        models.TreeList{models.NewLeaf(500)},
	}
	assert.Equal(t, 100.0, Score(model, Features(testNow, nil)))

	model.BaseScore = 5
	model.Trees = models.TreeList{models.NewLeaf(-500)}
	assert.Equal(t, 0.0, Score(model, Features(testNow, nil)))
}

func TestModelConfidenceMapping(t *testing.T) {
	assert.Equal(t, models.ConfidenceHigh, modelConfidence(models.TrainingMetrics{Within20: 0.85}))
	assert.Equal(t, models.ConfidenceHigh, modelConfidence(models.TrainingMetrics{Within20: 0.80}))
	assert.Equal(t, models.ConfidenceMedium, modelConfidence(models.TrainingMetrics{Within20: 0.70}))
	assert.Equal(t, models.ConfidenceLow, modelConfidence(models.TrainingMetrics{Within20: 0.50}))
}

func TestFallbackPredictDeterministic(t *testing.T) {
	target := time.Date(2025, 10, 7, 10, 0, 0, 0, time.UTC)
	a := FallbackPredict(target, nil, testNow)
	b := FallbackPredict(target, nil, testNow)
	assert.Equal(t, a, b)
	// 工作日 10 点纯基准表
	assert.InDelta(t, 85, a, 1e-9)
}

func TestFallbackPredictWeekendDamping(t *testing.T) {
	weekday := FallbackPredict(time.Date(2025, 10, 7, 10, 0, 0, 0, time.UTC), nil, testNow)
	weekend := FallbackPredict(time.Date(2025, 10, 11, 10, 0, 0, 0, time.UTC), nil, testNow)
	assert.InDelta(t, weekday*weekendDamping, weekend, 1e-9)
}

func TestFallbackPredictBlendsLiveStatus(t *testing.T) {
	target := testNow.Add(time.Hour) // 13 点，基准 80
	live := &models.LotStatus{OccupancyPercent: 20, Trend: models.TrendStable}
	got := FallbackPredict(target, live, testNow)
	want := 0.7*80 + 0.3*20
	assert.InDelta(t, want, got, 1e-9)
}

func TestFallbackPredictTrendExtrapolation(t *testing.T) {
	target := testNow.Add(time.Hour)
	base := FallbackPredict(target, &models.LotStatus{OccupancyPercent: 50, Trend: models.TrendStable}, testNow)
	rising := FallbackPredict(target, &models.LotStatus{OccupancyPercent: 50, Trend: models.TrendRising}, testNow)
	falling := FallbackPredict(target, &models.LotStatus{OccupancyPercent: 50, Trend: models.TrendFalling}, testNow)

	assert.InDelta(t, base+TrendSlopePerHour, rising, 1e-9)
	assert.InDelta(t, base-TrendSlopePerHour, falling, 1e-9)

	// 超过外推上限后趋势贡献不再增长
	far := testNow.Add(6 * time.Hour)
	farBase := FallbackPredict(far, &models.LotStatus{OccupancyPercent: 50, Trend: models.TrendStable}, testNow)
	farRising := FallbackPredict(far, &models.LotStatus{OccupancyPercent: 50, Trend: models.TrendRising}, testNow)
	assert.InDelta(t, farBase+TrendSlopePerHour*TrendHorizonHours, farRising, 1e-9)
}

func TestHourlyTargets(t *testing.T) {
	from := time.Date(2025, 10, 6, 12, 30, 0, 0, time.UTC)
	targets := HourlyTargets(from, 3)
	require.Len(t, targets, 3)
	assert.Equal(t, time.Date(2025, 10, 6, 13, 0, 0, 0, time.UTC), targets[0])
	assert.Equal(t, time.Date(2025, 10, 6, 15, 0, 0, 0, time.UTC), targets[2])
}

func TestBuildSamplesJoinsEventsByLot(t *testing.T) {
	pct := 75.0
	reports := []*models.Report{
		{LotID: "C11", OccupancyPercent: &pct, CreatedAt: testNow},
		{LotID: "C11", CreatedAt: testNow}, // 无占用率，跳过
	}
	events := []*models.Event{
		{LotID: "C11", EventType: models.EventSpecial, StartTime: testNow.Add(-time.Hour), EndTime: testNow.Add(time.Hour)},
		{LotID: "B3", EventType: models.EventSports, StartTime: testNow.Add(-time.Hour), EndTime: testNow.Add(time.Hour)},
	}

	samples := BuildSamples(reports, events)
	require.Len(t, samples, 1)
	assert.Equal(t, 75.0, samples[0].Label)
	// 只连接同停车场活动
	assert.Equal(t, 1.0, samples[0].Features[featEventSpecial])
	assert.Equal(t, 0.0, samples[0].Features[featEventSports])
}
