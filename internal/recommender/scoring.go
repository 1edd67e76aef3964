package recommender

import (
	"math"
	"sort"
)

// 评分常量
// 校准参数：衰减常数与扣分比例为工程估计值，需用真实数据重新标定
const (
	// CampusSpeedKmh 校内平均行驶速度
	CampusSpeedKmh = 18.0
	// SearchBufferMinutes 场内找位固定缓冲时间
	SearchBufferMinutes = 3.0
	// WalkSpeedKmh 无目的地时按步行速度从距离折算步行时间
	WalkSpeedKmh = 4.5
	// DistanceDecayK 距离衰减常数（1/米），远场降权但不骤降为零
	DistanceDecayK = 0.0005
	// WalkDecayPerMinute 步行时间衰减常数（1/分钟）
	WalkDecayPerMinute = 0.05
	// ShuttleConvenienceFactor 需要摆渡车的便利度折减
	ShuttleConvenienceFactor = 0.5
	// AllFullThreshold 全场爆满判定阈值（占用率）
	AllFullThreshold = 95.0
)

// 扣分项：加权和之后的线性扣减（加法叠加，下限 0，不做乘法复合）
const (
	PenaltyIcingZone     = 15.0
	PenaltyTimeLimit     = 20.0
	PenaltyInvalidPermit = 30.0
	PenaltyAlreadyHere   = 10.0
)

// UrgencyTier 紧急程度分档，决定各评分项权重
type UrgencyTier string

const (
	UrgencyCritical UrgencyTier = "critical"
	UrgencyModerate UrgencyTier = "moderate"
	UrgencyRelaxed  UrgencyTier = "relaxed"
)

// 紧急分档的分钟阈值（now 模式下按 urgencyMinutes 划分）
const (
	urgencyCriticalMaxMinutes = 10
	urgencyModerateMaxMinutes = 30
)

// Weights 四项评分权重，每档之和恒为 1.0
type Weights struct {
	Availability float64
	Proximity    float64
	WalkTime     float64
	Convenience  float64
}

// weightsByTier 紧急时偏向可用性与距离，宽松时偏向步行时间
var weightsByTier = map[UrgencyTier]Weights{
	UrgencyCritical: {Availability: 0.40, Proximity: 0.35, WalkTime: 0.10, Convenience: 0.15},
	UrgencyModerate: {Availability: 0.35, Proximity: 0.25, WalkTime: 0.25, Convenience: 0.15},
	UrgencyRelaxed:  {Availability: 0.25, Proximity: 0.15, WalkTime: 0.45, Convenience: 0.15},
}

// WeightsFor 查表取权重，未知档位按 moderate
func WeightsFor(tier UrgencyTier) Weights {
	if w, ok := weightsByTier[tier]; ok {
		return w
	}
	return weightsByTier[UrgencyModerate]
}

// TierFor 模式 + 紧急分钟数映射到紧急分档
// nearby 是"立刻要停"的隐式紧急，planned 天然宽松
func TierFor(mode Mode, urgencyMinutes *int) UrgencyTier {
	switch mode {
	case ModeNearby:
		return UrgencyCritical
	case ModePlanned:
		return UrgencyRelaxed
	default:
		if urgencyMinutes == nil {
			return UrgencyModerate
		}
		switch {
		case *urgencyMinutes < urgencyCriticalMaxMinutes:
			return UrgencyCritical
		case *urgencyMinutes < urgencyModerateMaxMinutes:
			return UrgencyModerate
		default:
			return UrgencyRelaxed
		}
	}
}

// DriveMinutes 行车时间估计：固定校内均速 + 场内找位缓冲
func DriveMinutes(distanceMeters float64) float64 {
	return distanceMeters/1000/CampusSpeedKmh*60 + SearchBufferMinutes
}

// walkMinutesFromDistance 无步行表时按直线距离折算
func walkMinutesFromDistance(distanceMeters float64) float64 {
	return distanceMeters / 1000 / WalkSpeedKmh * 60
}

// availabilityScore 有位概率：预测占用率的补
func availabilityScore(predictedPercent float64) float64 {
	s := (100 - predictedPercent) / 100
	return math.Max(0, math.Min(1, s))
}

// proximityScore 指数距离衰减
func proximityScore(distanceMeters float64) float64 {
	return math.Exp(-distanceMeters * DistanceDecayK)
}

// walkScore 步行时间衰减
func walkScore(walkMinutes float64) float64 {
	return math.Exp(-walkMinutes * WalkDecayPerMinute)
}

// convenienceScore 便利度基础分，需要摆渡车时折减
func convenienceScore(requiresShuttle bool) float64 {
	if requiresShuttle {
		return ShuttleConvenienceFactor
	}
	return 1.0
}

// ScoreCandidate 为单个候选停车场计算综合得分
// 加权和先缩放到 0-100，再做线性扣减，下限 0
func ScoreCandidate(c *Candidate, w Weights) {
	c.AvailabilityScore = availabilityScore(c.PredictedPercent)
	c.ProximityScore = proximityScore(c.DistanceMeters)
	c.WalkTimeScore = walkScore(c.WalkMinutes)
	c.ConvenienceScore = convenienceScore(c.Lot.RequiresShuttle)

	composite := 100 * (w.Availability*c.AvailabilityScore +
		w.Proximity*c.ProximityScore +
		w.WalkTime*c.WalkTimeScore +
		w.Convenience*c.ConvenienceScore)

	penalty := 0.0
	if c.Lot.IsIcingZone {
		penalty += PenaltyIcingZone
	}
	if c.Lot.HasTimeLimit() {
		penalty += PenaltyTimeLimit
	}
	if !c.PermitOK {
		// 候选集本应预过滤，这里兜底
		penalty += PenaltyInvalidPermit
	}
	if c.AlreadyHere {
		penalty += PenaltyAlreadyHere
	}
	c.Penalty = penalty
	c.Score = math.Max(0, composite-penalty)
}

// SortCandidates 得分降序，距离升序、场 ID 升序决胜
// 完全确定性排序：相同输入必得相同顺序
func SortCandidates(candidates []*Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		return a.Lot.ID < b.Lot.ID
	})
}
