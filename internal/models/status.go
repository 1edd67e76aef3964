package models

import "time"

// StatusBucket 占用率分档
type StatusBucket string

const (
	StatusOpen     StatusBucket = "open"     // <=20
	StatusLight    StatusBucket = "light"    // <=40
	StatusModerate StatusBucket = "moderate" // <=60
	StatusFilling  StatusBucket = "filling"  // <=80
	StatusFull     StatusBucket = "full"     // >80
)

// ConfidenceTier 置信等级
type ConfidenceTier string

const (
	ConfidenceLow      ConfidenceTier = "low"
	ConfidenceMedium   ConfidenceTier = "medium"
	ConfidenceHigh     ConfidenceTier = "high"
	ConfidenceVerified ConfidenceTier = "verified"
)

// TrendDirection 短期趋势方向
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendStable  TrendDirection = "stable"
	TrendFalling TrendDirection = "falling"
)

// LotStatus 停车场实时状态（每场一行，聚合器全量覆盖写入）
type LotStatus struct {
	LotID            string         `json:"lot_id" db:"lot_id"`
	OccupancyPercent float64        `json:"occupancy_percent" db:"occupancy_percent"`
	Status           StatusBucket   `json:"status" db:"status"`
	Confidence       ConfidenceTier `json:"confidence" db:"confidence"`
	Trend            TrendDirection `json:"trend" db:"trend"`
	ReportCount      int            `json:"report_count" db:"report_count"`
	LastReportAt     *time.Time     `json:"last_report_at,omitempty" db:"last_report_at"`
	IsClosed         bool           `json:"is_closed" db:"is_closed"`
	ClosedReason     *string        `json:"closed_reason,omitempty" db:"closed_reason"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// BucketFor 按占用率分档，阈值是设计契约不可调
func BucketFor(percent float64) StatusBucket {
	switch {
	case percent <= 20:
		return StatusOpen
	case percent <= 40:
		return StatusLight
	case percent <= 60:
		return StatusModerate
	case percent <= 80:
		return StatusFilling
	default:
		return StatusFull
	}
}
