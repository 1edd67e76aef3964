package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantMeters             float64
		tolerance              float64
	}{
		{"same point", 40.0, -83.0, 40.0, -83.0, 0, 0.001},
		// 纬度 1 度 ≈ 111.19 km
		{"one degree latitude", 40.0, -83.0, 41.0, -83.0, 111195, 200},
		// 赤道上经度 1 度 ≈ 111.19 km
		{"one degree longitude at equator", 0.0, 0.0, 0.0, 1.0, 111195, 200},
		// 校园尺度：约 100 米
		{"campus scale", 40.0000, -83.0000, 40.0009, -83.0000, 100, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantMeters, got, tt.tolerance)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	d1 := Haversine(40.001, -83.012, 40.015, -83.020)
	d2 := Haversine(40.015, -83.020, 40.001, -83.012)
	assert.InDelta(t, d1, d2, 1e-9)
}
