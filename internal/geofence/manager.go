package geofence

import (
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
)

// Manager 多设备探测器管理器
// 每台设备一个探测器，设备内串行、设备间互不影响
type Manager struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	detectors map[string]*Detector
	onEvent   EventHandler
}

// NewManager 创建管理器
func NewManager(logger *zap.Logger, onEvent EventHandler) *Manager {
	return &Manager{
		logger:    logger,
		detectors: make(map[string]*Detector),
		onEvent:   onEvent,
	}
}

// GetOrCreate 获取或创建设备探测器
// 已存在时同步最新开关配置，运营侧改动对在线设备立即生效
func (m *Manager) GetOrCreate(deviceID string, lots []*models.Lot, initialLotID *string, settings Settings) *Detector {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.detectors[deviceID]; ok {
		d.UpdateSettings(settings)
		return d
	}

	d := NewDetector(deviceID, m.logger, lots, initialLotID, settings, m.onEvent)
	m.detectors[deviceID] = d
	return d
}

// Get 获取设备探测器
func (m *Manager) Get(deviceID string) (*Detector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.detectors[deviceID]
	return d, ok
}

// StopAll 停止全部探测器（进程退出时调用）
func (m *Manager) StopAll() {
	m.mu.RLock()
	detectors := make([]*Detector, 0, len(m.detectors))
	for _, d := range m.detectors {
		detectors = append(detectors, d)
	}
	m.mu.RUnlock()

	for _, d := range detectors {
		d.Stop()
	}
}
