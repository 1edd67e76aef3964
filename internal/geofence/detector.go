package geofence

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/pkg/geo"
)

// 围栏常量
// 校准参数：半径与冷却时长为工程估计值，需用真实轨迹数据重新标定
const (
	// RadiusMeters 围栏判定半径，按场中心直线距离圆形近似，不做多边形包含
	RadiusMeters = 75.0
	// AutoReportCooldown 单场自动上报冷却时长
	AutoReportCooldown = 15 * time.Minute
	// PollInterval 后台定位轮询间隔
	PollInterval = 30 * time.Second
)

// 围栏状态
const (
	StateOutside = "outside"
	StateInside  = "inside"
)

// 围栏事件
const (
	EventEnter = "enter"
	EventExit  = "exit"
)

// Settings 自动上报开关，默认两个方向都关闭
type Settings struct {
	AutoReportOnEnter bool `json:"auto_report_on_enter"`
	AutoReportOnExit  bool `json:"auto_report_on_exit"`
}

// LocationSource 定位源端口
// 后台轮询的平台契约由调用方实现，探测器只消费定位点
type LocationSource interface {
	Current(ctx context.Context) (*models.LatLng, error)
}

// EventHandler 围栏事件回调
type EventHandler func(event *models.GeofenceEvent)

// Detector 单设备围栏探测器
// 序列化单设备的定位流，镜像一台设备只有一条位置时间线
type Detector struct {
	mu       sync.Mutex
	deviceID string
	logger   *zap.Logger
	lots     []*models.Lot
	fsm      *fsm.FSM
	settings Settings
	onEvent  EventHandler

	currentLotID   *string
	lastAutoReport map[string]time.Time

	source  LocationSource
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewDetector 创建探测器
// initialLotID 为持久化的上次所在场，重启后滞回状态得以延续
func NewDetector(deviceID string, logger *zap.Logger, lots []*models.Lot, initialLotID *string, settings Settings, onEvent EventHandler) *Detector {
	initial := StateOutside
	if initialLotID != nil {
		initial = StateInside
	}

	d := &Detector{
		deviceID:       deviceID,
		logger:         logger,
		lots:           lots,
		settings:       settings,
		onEvent:        onEvent,
		currentLotID:   initialLotID,
		lastAutoReport: make(map[string]time.Time),
	}

	d.fsm = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: EventEnter, Src: []string{StateOutside, StateInside}, Dst: StateInside},
			{Name: EventExit, Src: []string{StateInside}, Dst: StateOutside},
		},
		fsm.Callbacks{},
	)
	return d
}

// lotAt 定位点所在的停车场，按场中心距离取最近的命中场
func (d *Detector) lotAt(lat, lon float64) *string {
	var bestID *string
	bestDist := RadiusMeters
	for _, lot := range d.lots {
		dist := geo.Haversine(lat, lon, lot.Latitude, lot.Longitude)
		if dist <= bestDist {
			id := lot.ID
			bestID = &id
			bestDist = dist
		}
	}
	return bestID
}

// OnLocation 处理一个定位点，状态变化时返回事件，否则返回 nil
// 滞回：新旧场 ID 相同（含同为 nil）不重复触发，75 米边界上的抖动被吸收
func (d *Detector) OnLocation(lat, lon float64, now time.Time) *models.GeofenceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	newLotID := d.lotAt(lat, lon)
	if lotIDEqual(d.currentLotID, newLotID) {
		return nil
	}

	var event *models.GeofenceEvent
	if newLotID != nil {
		// 进场（换场时直接以新场的进场事件覆盖）
		event = &models.GeofenceEvent{
			DeviceID:  d.deviceID,
			Type:      models.GeofenceEnter,
			LotID:     *newLotID,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: now,
		}
		_ = d.fsm.Event(context.Background(), EventEnter)
	} else {
		// 离场：之前在场内，现在哪个场都不在
		event = &models.GeofenceEvent{
			DeviceID:  d.deviceID,
			Type:      models.GeofenceExit,
			LotID:     *d.currentLotID,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: now,
		}
		_ = d.fsm.Event(context.Background(), EventExit)
	}

	d.currentLotID = newLotID
	return event
}

// lotIDEqual 两个可空场 ID 是否相同
func lotIDEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CurrentLotID 当前所在场 ID，不在任何场内时返回 nil
func (d *Detector) CurrentLotID() *string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.currentLotID == nil {
		return nil
	}
	id := *d.currentLotID
	return &id
}

// CurrentState 围栏状态机当前状态
func (d *Detector) CurrentState() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fsm.Current()
}

// ShouldAutoReport 是否应为该事件生成自动上报
// 方向开关默认关闭，开启后仍受单场 15 分钟冷却约束
func (d *Detector) ShouldAutoReport(event *models.GeofenceEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch event.Type {
	case models.GeofenceEnter:
		if !d.settings.AutoReportOnEnter {
			return false
		}
	case models.GeofenceExit:
		if !d.settings.AutoReportOnExit {
			return false
		}
	default:
		return false
	}

	if last, ok := d.lastAutoReport[event.LotID]; ok {
		if event.Timestamp.Sub(last) < AutoReportCooldown {
			return false
		}
	}
	d.lastAutoReport[event.LotID] = event.Timestamp
	return true
}

// UpdateSettings 更新自动上报开关
func (d *Detector) UpdateSettings(settings Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = settings
}

// Start 启动后台轮询，已在运行时幂等返回
func (d *Detector) Start(ctx context.Context, source LocationSource) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	d.source = source
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.pollLoop(pollCtx)
	d.logger.Info("Geofence detector started", zap.String("device_id", d.deviceID))
}

// Stop 停止后台轮询并等待退出
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	d.logger.Info("Geofence detector stopped", zap.String("device_id", d.deviceID))
}

// IsRunning 是否在后台轮询中
func (d *Detector) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// pollLoop 固定间隔拉取定位点并喂给探测逻辑
func (d *Detector) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loc, err := d.source.Current(ctx)
			if err != nil {
				d.logger.Warn("Failed to fetch location",
					zap.String("device_id", d.deviceID), zap.Error(err))
				continue
			}
			if loc == nil {
				continue
			}
			if event := d.OnLocation(loc.Latitude, loc.Longitude, time.Now()); event != nil && d.onEvent != nil {
				d.onEvent(event)
			}
		}
	}
}
