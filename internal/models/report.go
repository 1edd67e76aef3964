package models

import "time"

// ReportKind 上报类型
type ReportKind string

const (
	ReportArrived  ReportKind = "arrived"  // 已到达并停好
	ReportDeparted ReportKind = "departed" // 已驶离
	ReportStatus   ReportKind = "status"   // 占用率观察
	ReportFull     ReportKind = "full"     // 已满
	ReportHazard   ReportKind = "hazard"   // 障碍/封闭（两条独立上报才会触发封闭）
)

// Valid 检查上报类型是否合法
func (k ReportKind) Valid() bool {
	switch k {
	case ReportArrived, ReportDeparted, ReportStatus, ReportFull, ReportHazard:
		return true
	}
	return false
}

// TrustTier 上报者信誉等级
type TrustTier string

const (
	TrustNew      TrustTier = "new"
	TrustBasic    TrustTier = "basic"
	TrustRegular  TrustTier = "regular"
	TrustTrusted  TrustTier = "trusted"
	TrustVerified TrustTier = "verified"
)

// Multiplier 信誉权重系数，最低档 1.0，最高档 2.0，单调递增
func (t TrustTier) Multiplier() float64 {
	switch t {
	case TrustBasic:
		return 1.25
	case TrustRegular:
		return 1.5
	case TrustTrusted:
		return 1.75
	case TrustVerified:
		return 2.0
	default:
		return 1.0
	}
}

// Report 众包占用上报（仅追加，创建后不可变更）
type Report struct {
	ID                int64      `json:"id" db:"id"`
	LotID             string     `json:"lot_id" db:"lot_id"`
	AuthorID          *string    `json:"author_id,omitempty" db:"author_id"`
	Kind              ReportKind `json:"kind" db:"kind"`
	OccupancyPercent  *float64   `json:"occupancy_percent,omitempty" db:"occupancy_percent"`
	Note              *string    `json:"note,omitempty" db:"note"`
	Latitude          *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64   `json:"longitude,omitempty" db:"longitude"`
	GeofenceTriggered bool       `json:"geofence_triggered" db:"geofence_triggered"`
	Upvotes           int        `json:"upvotes" db:"upvotes"`
	Downvotes         int        `json:"downvotes" db:"downvotes"`
	TrustTier         TrustTier  `json:"trust_tier" db:"trust_tier"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// NetVotes 净赞数
func (r *Report) NetVotes() int {
	return r.Upvotes - r.Downvotes
}
