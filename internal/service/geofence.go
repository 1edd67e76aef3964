package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/cache"
	"github.com/langchou/parkgazer/internal/config"
	"github.com/langchou/parkgazer/internal/geofence"
	"github.com/langchou/parkgazer/internal/metrics"
	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/pkg/ws"
)

// GeofenceService 围栏服务
// 持有多设备探测器，负责事件持久化、自动上报与推送
type GeofenceService struct {
	logger       *zap.Logger
	lotRepo      *repository.LotRepository
	geofenceRepo *repository.GeofenceRepository
	reportSvc    *ReportService
	settings     *config.Cache
	wsHub        *ws.Hub
	cache        *cache.Service
	manager      *geofence.Manager
}

// NewGeofenceService 创建围栏服务
func NewGeofenceService(
	logger *zap.Logger,
	lotRepo *repository.LotRepository,
	geofenceRepo *repository.GeofenceRepository,
	reportSvc *ReportService,
	settings *config.Cache,
	wsHub *ws.Hub,
	cacheSvc *cache.Service,
) *GeofenceService {
	svc := &GeofenceService{
		logger:       logger,
		lotRepo:      lotRepo,
		geofenceRepo: geofenceRepo,
		reportSvc:    reportSvc,
		settings:     settings,
		wsHub:        wsHub,
		cache:        cacheSvc,
	}
	svc.manager = geofence.NewManager(logger, svc.handleEvent)
	return svc
}

// detectorSettings 从运营配置读取自动上报开关，默认全关
func (s *GeofenceService) detectorSettings(ctx context.Context) geofence.Settings {
	return geofence.Settings{
		AutoReportOnEnter: s.settings.GetBool(ctx, config.KeyAutoReportEnter, false),
		AutoReportOnExit:  s.settings.GetBool(ctx, config.KeyAutoReportExit, false),
	}
}

// detectorFor 获取或创建设备探测器，初始所在场从持久化状态恢复
// 每次查找都回灌配置缓存里的开关，设置变更无需重建探测器
func (s *GeofenceService) detectorFor(ctx context.Context, deviceID string) (*geofence.Detector, error) {
	if d, ok := s.manager.Get(deviceID); ok {
		d.UpdateSettings(s.detectorSettings(ctx))
		return d, nil
	}

	lots, err := s.lotRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	var initialLotID *string
	state, err := s.geofenceRepo.GetDeviceState(ctx, deviceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load device state: %w", err)
	}
	if state != nil {
		initialLotID = state.CurrentLotID
	}

	return s.manager.GetOrCreate(deviceID, lots, initialLotID, s.detectorSettings(ctx)), nil
}

// OnLocation 处理一次定位上报，事件发生时落库并推送
func (s *GeofenceService) OnLocation(ctx context.Context, deviceID string, lat, lon float64) (*models.GeofenceEvent, error) {
	d, err := s.detectorFor(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	event := d.OnLocation(lat, lon, nowFunc())
	if event == nil {
		return nil, nil
	}
	s.persistEvent(ctx, d, event)
	return event, nil
}

// Start 启动设备的后台定位轮询
func (s *GeofenceService) Start(ctx context.Context, deviceID string, source geofence.LocationSource) error {
	d, err := s.detectorFor(ctx, deviceID)
	if err != nil {
		return err
	}
	d.Start(ctx, source)
	return nil
}

// Stop 停止设备的后台定位轮询
func (s *GeofenceService) Stop(deviceID string) {
	if d, ok := s.manager.Get(deviceID); ok {
		d.Stop()
	}
}

// IsRunning 设备是否在后台轮询中
func (s *GeofenceService) IsRunning(deviceID string) bool {
	if d, ok := s.manager.Get(deviceID); ok {
		return d.IsRunning()
	}
	return false
}

// StopAll 进程退出时停止全部设备
func (s *GeofenceService) StopAll() {
	s.manager.StopAll()
}

// handleEvent 后台轮询产生的事件走与主动上报相同的处理路径
func (s *GeofenceService) handleEvent(event *models.GeofenceEvent) {
	ctx := context.Background()
	d, ok := s.manager.Get(event.DeviceID)
	if !ok {
		return
	}
	s.persistEvent(ctx, d, event)
}

// persistEvent 事件落库、设备状态更新、自动上报与推送
func (s *GeofenceService) persistEvent(ctx context.Context, d *geofence.Detector, event *models.GeofenceEvent) {
	metrics.GeofenceEvents.WithLabelValues(string(event.Type)).Inc()

	if err := s.geofenceRepo.CreateEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to persist geofence event",
			zap.String("device_id", event.DeviceID), zap.Error(err))
	}
	eventAt := event.Timestamp
	if err := s.geofenceRepo.UpsertDeviceState(ctx, event.DeviceID, d.CurrentLotID(), &eventAt); err != nil {
		s.logger.Warn("Failed to persist device state",
			zap.String("device_id", event.DeviceID), zap.Error(err))
	}

	s.wsHub.BroadcastGeofenceEvent(event)
	if err := s.cache.Publish(ctx, cache.ChannelGeofence, event); err != nil {
		s.logger.Warn("Failed to publish geofence event", zap.Error(err))
	}

	// 后台轮询产生的事件也要看到最新开关
	d.UpdateSettings(s.detectorSettings(ctx))
	if d.ShouldAutoReport(event) {
		s.autoReport(ctx, event)
	}
}

// autoReport 围栏事件折算为一条到场/离场上报
func (s *GeofenceService) autoReport(ctx context.Context, event *models.GeofenceEvent) {
	kind := models.ReportArrived
	if event.Type == models.GeofenceExit {
		kind = models.ReportDeparted
	}

	req := &SubmitReportRequest{
		LotID:             event.LotID,
		Kind:              string(kind),
		Latitude:          &event.Latitude,
		Longitude:         &event.Longitude,
		GeofenceTriggered: true,
	}
	if _, _, err := s.reportSvc.Submit(ctx, req); err != nil {
		s.logger.Warn("Failed to submit auto report",
			zap.String("lot_id", event.LotID), zap.Error(err))
		return
	}
	s.logger.Info("Auto report submitted",
		zap.String("device_id", event.DeviceID),
		zap.String("lot_id", event.LotID),
		zap.String("kind", string(kind)))
}
