package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
)

// 两个相距约 550 米的停车场
var testLots = []*models.Lot{
	{ID: "A", Latitude: 40.0000, Longitude: -105.0000},
	{ID: "B", Latitude: 40.0050, Longitude: -105.0000},
}

var detectorNow = time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)

func newTestDetector(settings Settings) *Detector {
	return NewDetector("device-1", zap.NewNop(), testLots, nil, settings, nil)
}

func TestDetectorEnterExitSequence(t *testing.T) {
	d := newTestDetector(Settings{})

	// 场外 → A 场内 → A 场内 → 场外：恰好两个事件
	var events []*models.GeofenceEvent
	ticks := []struct {
		lat, lon float64
	}{
		{40.0020, -105.0000}, // 距 A 约 222 米，场外
		{40.0001, -105.0000}, // 距 A 约 11 米，进场
		{40.0002, -105.0000}, // 距 A 约 22 米，仍在场内
		{40.0020, -105.0000}, // 离场
	}
	for i, tick := range ticks {
		if ev := d.OnLocation(tick.lat, tick.lon, detectorNow.Add(time.Duration(i)*time.Minute)); ev != nil {
			events = append(events, ev)
		}
	}

	require.Len(t, events, 2)
	assert.Equal(t, models.GeofenceEnter, events[0].Type)
	assert.Equal(t, "A", events[0].LotID)
	assert.Equal(t, models.GeofenceExit, events[1].Type)
	assert.Equal(t, "A", events[1].LotID)
	assert.Equal(t, StateOutside, d.CurrentState())
	assert.Nil(t, d.CurrentLotID())
}

func TestDetectorHysteresisOnBoundary(t *testing.T) {
	d := newTestDetector(Settings{})

	// 先进场
	ev := d.OnLocation(40.0001, -105.0000, detectorNow)
	require.NotNil(t, ev)

	// 在 75 米边界附近反复抖动，同场不重复触发
	for i := 0; i < 5; i++ {
		ev = d.OnLocation(40.0005, -105.0000, detectorNow.Add(time.Duration(i)*time.Second)) // 约 56 米
		assert.Nil(t, ev)
	}
	require.NotNil(t, d.CurrentLotID())
	assert.Equal(t, "A", *d.CurrentLotID())
}

func TestDetectorLotSwitchEmitsEnter(t *testing.T) {
	d := newTestDetector(Settings{})

	require.NotNil(t, d.OnLocation(40.0001, -105.0000, detectorNow)) // 进 A
	ev := d.OnLocation(40.0050, -105.0000, detectorNow.Add(time.Minute))
	require.NotNil(t, ev)
	assert.Equal(t, models.GeofenceEnter, ev.Type)
	assert.Equal(t, "B", ev.LotID)
	assert.Equal(t, StateInside, d.CurrentState())
}

func TestDetectorResumesFromPersistedLot(t *testing.T) {
	lotA := "A"
	d := NewDetector("device-1", zap.NewNop(), testLots, &lotA, Settings{}, nil)

	assert.Equal(t, StateInside, d.CurrentState())
	// 重启后仍在 A 场内不重复触发进场
	assert.Nil(t, d.OnLocation(40.0001, -105.0000, detectorNow))
}

func TestAutoReportDisabledByDefault(t *testing.T) {
	d := newTestDetector(Settings{})
	ev := d.OnLocation(40.0001, -105.0000, detectorNow)
	require.NotNil(t, ev)
	assert.False(t, d.ShouldAutoReport(ev))
}

func TestAutoReportCooldown(t *testing.T) {
	d := newTestDetector(Settings{AutoReportOnEnter: true})

	enter := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "A", Timestamp: detectorNow,
	}
	assert.True(t, d.ShouldAutoReport(enter))

	// 冷却期内同场再次进入不上报
	again := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "A",
		Timestamp: detectorNow.Add(10 * time.Minute),
	}
	assert.False(t, d.ShouldAutoReport(again))

	// 冷却期满恢复
	later := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "A",
		Timestamp: detectorNow.Add(16 * time.Minute),
	}
	assert.True(t, d.ShouldAutoReport(later))

	// 冷却按场隔离
	otherLot := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "B",
		Timestamp: detectorNow.Add(17 * time.Minute),
	}
	assert.True(t, d.ShouldAutoReport(otherLot))
}

func TestAutoReportPerDirection(t *testing.T) {
	d := newTestDetector(Settings{AutoReportOnEnter: true})

	exit := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceExit, LotID: "A", Timestamp: detectorNow,
	}
	assert.False(t, d.ShouldAutoReport(exit))

	d.UpdateSettings(Settings{AutoReportOnExit: true})
	assert.True(t, d.ShouldAutoReport(exit))
}

func TestManagerPerDevice(t *testing.T) {
	m := NewManager(zap.NewNop(), nil)

	d1 := m.GetOrCreate("device-1", testLots, nil, Settings{})
	d2 := m.GetOrCreate("device-2", testLots, nil, Settings{})
	same := m.GetOrCreate("device-1", testLots, nil, Settings{})

	assert.Same(t, d1, same)
	assert.NotSame(t, d1, d2)

	// 设备状态互不影响
	require.NotNil(t, d1.OnLocation(40.0001, -105.0000, detectorNow))
	assert.Nil(t, d2.CurrentLotID())

	got, ok := m.Get("device-2")
	require.True(t, ok)
	assert.Same(t, d2, got)
}

func TestManagerRefreshesSettingsOnLookup(t *testing.T) {
	m := NewManager(zap.NewNop(), nil)

	d := m.GetOrCreate("device-1", testLots, nil, Settings{})
	enter := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "A", Timestamp: detectorNow,
	}
	assert.False(t, d.ShouldAutoReport(enter))

	// 运营侧开启自动上报后，已存在的探测器在下次查找时拿到新开关
	same := m.GetOrCreate("device-1", testLots, nil, Settings{AutoReportOnEnter: true})
	require.Same(t, d, same)
	assert.True(t, d.ShouldAutoReport(enter))

	// 再次关闭同样立即生效
	m.GetOrCreate("device-1", testLots, nil, Settings{})
	later := &models.GeofenceEvent{
		DeviceID: "device-1", Type: models.GeofenceEnter, LotID: "B",
		Timestamp: detectorNow.Add(time.Minute),
	}
	assert.False(t, d.ShouldAutoReport(later))
}
