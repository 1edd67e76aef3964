package recommender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/langchou/parkgazer/internal/models"
)

var testNow = time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC) // 周一

func TestFallbackOccupancyUsesHourlyHeuristic(t *testing.T) {
	// 无预测批次且无实时状态时按工作日逐小时基准表估计，不是平坦的 50 先验
	arrival := time.Date(2025, 10, 7, 10, 0, 0, 0, time.UTC) // 周二上午高峰
	assert.InDelta(t, 85.0, fallbackOccupancy(nil, arrival, testNow), 1e-9)

	night := time.Date(2025, 10, 7, 2, 0, 0, 0, time.UTC)
	assert.InDelta(t, 5.0, fallbackOccupancy(nil, night, testNow), 1e-9)

	// 周末折减
	weekend := time.Date(2025, 10, 11, 10, 0, 0, 0, time.UTC)
	assert.InDelta(t, 51.0, fallbackOccupancy(nil, weekend, testNow), 1e-9)
}

func TestFallbackOccupancyBlendsLiveStatus(t *testing.T) {
	live := &models.LotStatus{OccupancyPercent: 20, Trend: models.TrendStable}

	// 基准 85 与实时 20 按 0.7/0.3 混合
	arrival := time.Date(2025, 10, 7, 10, 0, 0, 0, time.UTC)
	assert.InDelta(t, 65.5, fallbackOccupancy(live, arrival, testNow), 1e-9)

	// 上升趋势向未来外推
	rising := &models.LotStatus{OccupancyPercent: 20, Trend: models.TrendRising}
	oneHour := testNow.Add(time.Hour) // 周一 13:00，基准 80
	assert.InDelta(t, 0.7*80+0.3*20+5, fallbackOccupancy(rising, oneHour, testNow), 1e-9)
}

func TestArrivalTimeByMode(t *testing.T) {
	planned := testNow.Add(3 * time.Hour)

	tests := []struct {
		name string
		req  *Request
		want time.Time
	}{
		{"nearby evaluates now", &Request{Mode: ModeNearby}, testNow},
		{"planned uses target time", &Request{Mode: ModePlanned, PlannedTime: &planned}, planned},
		{"planned without time falls back to now", &Request{Mode: ModePlanned}, testNow},
		{"now offsets by drive time", &Request{Mode: ModeNow}, testNow.Add(13 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arrivalTime(tt.req, 13, testNow))
		})
	}
}
