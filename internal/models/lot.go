package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// LatLng 经纬度坐标点
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Polygon 多边形围栏顶点（可选，未配置时按圆形近似）
type Polygon []LatLng

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (p Polygon) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (p *Polygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, p)
}

// WalkTimes 步行时间表：目的地 ID -> 步行分钟数
type WalkTimes map[string]float64

// Value 实现 driver.Valuer 接口
func (w WalkTimes) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan 实现 sql.Scanner 接口
func (w *WalkTimes) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, w)
}

// StringList 字符串数组（JSONB 存储）
type StringList []string

// Value 实现 driver.Valuer 接口
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Lot 停车场（不可变参考数据，由外部管理端维护）
type Lot struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Capacity         int        `json:"capacity" db:"capacity"`
	Latitude         float64    `json:"latitude" db:"latitude"`
	Longitude        float64    `json:"longitude" db:"longitude"`
	Boundary         Polygon    `json:"boundary,omitempty" db:"boundary"`
	WalkTimes        WalkTimes  `json:"walk_times,omitempty" db:"walk_times"`
	PermitTypes      StringList `json:"permit_types,omitempty" db:"permit_types"`
	IsIcingZone      bool       `json:"is_icing_zone" db:"is_icing_zone"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty" db:"time_limit_minutes"`
	RequiresShuttle  bool       `json:"requires_shuttle" db:"requires_shuttle"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// HasTimeLimit 是否限时停车
func (l *Lot) HasTimeLimit() bool {
	return l.TimeLimitMinutes != nil && *l.TimeLimitMinutes > 0
}

// PermitsAllow 检查许可证类型是否可停本场
// 未配置 permit_types 的停车场视为对所有许可开放
func (l *Lot) PermitsAllow(permits []string) bool {
	if len(l.PermitTypes) == 0 {
		return true
	}
	for _, have := range permits {
		for _, want := range l.PermitTypes {
			if have == want {
				return true
			}
		}
	}
	return false
}
