package models

import "time"

// GeofenceEventType 围栏事件类型
type GeofenceEventType string

const (
	GeofenceEnter GeofenceEventType = "enter"
	GeofenceExit  GeofenceEventType = "exit"
)

// GeofenceEvent 进出场事件（短暂数据，仅最近一条需要持久化）
type GeofenceEvent struct {
	ID        int64             `json:"id" db:"id"`
	DeviceID  string            `json:"device_id" db:"device_id"`
	Type      GeofenceEventType `json:"type" db:"type"`
	LotID     string            `json:"lot_id" db:"lot_id"`
	Latitude  float64           `json:"latitude" db:"latitude"`
	Longitude float64           `json:"longitude" db:"longitude"`
	Timestamp time.Time         `json:"timestamp" db:"timestamp"`
}

// DeviceState 设备围栏状态（当前所在停车场 + 各场最近自动上报时间）
type DeviceState struct {
	DeviceID     string     `json:"device_id" db:"device_id"`
	CurrentLotID *string    `json:"current_lot_id,omitempty" db:"current_lot_id"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastEventAt  *time.Time `json:"last_event_at,omitempty" db:"last_event_at"`
}

// Settings 运营可调配置项（免费停车时长等）
type Settings struct {
	ID    int64  `json:"id" db:"id"`
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}
