package recommender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/parkgazer/internal/models"
	"github.com/langchou/parkgazer/internal/predictor"
	"github.com/langchou/parkgazer/internal/repository"
	"github.com/langchou/parkgazer/pkg/geo"
)

// Mode 推荐模式
type Mode string

const (
	// ModeNow 当下出发，按到达时刻的预测评估可用性
	ModeNow Mode = "now"
	// ModePlanned 计划停车，用户指定目标时刻
	ModePlanned Mode = "planned"
	// ModeNearby 就近找位，立即评估
	ModeNearby Mode = "nearby"
)

// ViewState 推荐结果的界面状态，退化情形是一等状态而非错误
type ViewState string

const (
	ViewIdle       ViewState = "idle"
	ViewLoading    ViewState = "loading"
	ViewSuccess    ViewState = "success"
	ViewError      ViewState = "error"
	ViewNoLocation ViewState = "no_location"
	ViewNoPermit   ViewState = "no_permit"
	ViewAllFull    ViewState = "all_full"
)

// Request 推荐请求
type Request struct {
	Location       *models.LatLng `json:"location"`
	Mode           Mode           `json:"mode"`
	DestinationID  *string        `json:"destination_id,omitempty"`
	UrgencyMinutes *int           `json:"urgency_minutes,omitempty"`
	PlannedTime    *time.Time     `json:"planned_time,omitempty"`
	Permits        []string       `json:"permits,omitempty"`
	CurrentLotID   *string        `json:"current_lot_id,omitempty"`
}

// Candidate 候选停车场与评分明细
type Candidate struct {
	Lot              *models.Lot       `json:"lot"`
	Live             *models.LotStatus `json:"live,omitempty"`
	PredictedPercent float64           `json:"predicted_percent"`
	DistanceMeters   float64           `json:"distance_meters"`
	DriveMinutes     float64           `json:"drive_minutes"`
	WalkMinutes      float64           `json:"walk_minutes"`
	PermitOK         bool              `json:"permit_ok"`
	AlreadyHere      bool              `json:"already_here"`

	AvailabilityScore float64 `json:"availability_score"`
	ProximityScore    float64 `json:"proximity_score"`
	WalkTimeScore     float64 `json:"walk_time_score"`
	ConvenienceScore  float64 `json:"convenience_score"`
	Penalty           float64 `json:"penalty"`
	Score             float64 `json:"score"`
	Recommended       bool    `json:"recommended"`
}

// Result 推荐结果
type Result struct {
	ViewState ViewState    `json:"view_state"`
	Urgency   UrgencyTier  `json:"urgency,omitempty"`
	Rankings  []*Candidate `json:"rankings,omitempty"`
	Fallback  *Candidate   `json:"fallback,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Recommender 就近推荐引擎
// 纯读路径，无副作用，可并发调用
type Recommender struct {
	logger         *zap.Logger
	lotRepo        *repository.LotRepository
	statusRepo     *repository.StatusRepository
	predictionRepo *repository.PredictionRepository
}

// New 创建推荐引擎
func New(
	logger *zap.Logger,
	lotRepo *repository.LotRepository,
	statusRepo *repository.StatusRepository,
	predictionRepo *repository.PredictionRepository,
) *Recommender {
	return &Recommender{
		logger:         logger,
		lotRepo:        lotRepo,
		statusRepo:     statusRepo,
		predictionRepo: predictionRepo,
	}
}

// fallbackOccupancy 预测缺失时的到达时刻占用估计
// 逐小时基准表混合实时状态，与无模型时的预测路径保持一致
func fallbackOccupancy(live *models.LotStatus, arrival, now time.Time) float64 {
	return predictor.FallbackPredict(arrival, live, now)
}

// arrivalTime 按模式确定可用性评估时刻
func arrivalTime(req *Request, driveMinutes float64, now time.Time) time.Time {
	switch req.Mode {
	case ModePlanned:
		if req.PlannedTime != nil {
			return *req.PlannedTime
		}
		return now
	case ModeNearby:
		return now
	default:
		return now.Add(time.Duration(driveMinutes * float64(time.Minute)))
	}
}

// Recommend 排序全部可停车场并返回带状态的结果
func (r *Recommender) Recommend(ctx context.Context, req *Request, now time.Time) (*Result, error) {
	if req.Location == nil {
		return &Result{ViewState: ViewNoLocation, Message: "location unavailable"}, nil
	}

	lots, err := r.lotRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	var permitted []*models.Lot
	for _, lot := range lots {
		if lot.PermitsAllow(req.Permits) {
			permitted = append(permitted, lot)
		}
	}
	if len(permitted) == 0 {
		return &Result{ViewState: ViewNoPermit, Message: "no lots match the held permits"}, nil
	}

	tier := TierFor(req.Mode, req.UrgencyMinutes)
	weights := WeightsFor(tier)

	var candidates []*Candidate
	for _, lot := range permitted {
		c, err := r.buildCandidate(ctx, lot, req, now)
		if err != nil {
			r.logger.Warn("Skipping lot in recommendation",
				zap.String("lot_id", lot.ID), zap.Error(err))
			continue
		}
		if c == nil {
			// 封闭场不参与排序
			continue
		}
		ScoreCandidate(c, weights)
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return &Result{ViewState: ViewAllFull, Urgency: tier, Message: "no open lots available"}, nil
	}

	SortCandidates(candidates)

	// 全场爆满：仍给出得分最高的场作为兜底建议
	allFull := true
	for _, c := range candidates {
		if c.PredictedPercent < AllFullThreshold {
			allFull = false
			break
		}
	}
	if allFull {
		return &Result{
			ViewState: ViewAllFull,
			Urgency:   tier,
			Rankings:  candidates,
			Fallback:  candidates[0],
			Message:   "all lots near capacity",
		}, nil
	}

	candidates[0].Recommended = true
	return &Result{ViewState: ViewSuccess, Urgency: tier, Rankings: candidates}, nil
}

// buildCandidate 组装单个候选：几何、实时状态与到达时刻预测
// 封闭场返回 nil
func (r *Recommender) buildCandidate(ctx context.Context, lot *models.Lot, req *Request, now time.Time) (*Candidate, error) {
	live, err := r.statusRepo.GetByLot(ctx, lot.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load status: %w", err)
	}
	if live != nil && live.IsClosed {
		return nil, nil
	}

	distance := geo.Haversine(
		req.Location.Latitude, req.Location.Longitude,
		lot.Latitude, lot.Longitude,
	)
	drive := DriveMinutes(distance)

	walk := walkMinutesFromDistance(distance)
	if req.DestinationID != nil {
		if minutes, ok := lot.WalkTimes[*req.DestinationID]; ok {
			walk = minutes
		}
	}

	// 到达时刻的有位概率：无预测批次时走与预测侧相同的启发式回退
	arrival := arrivalTime(req, drive, now)
	predicted := fallbackOccupancy(live, arrival, now)
	if p, err := r.predictionRepo.GetNearest(ctx, lot.ID, arrival); err == nil {
		predicted = p.PredictedPercent
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load prediction: %w", err)
	}

	return &Candidate{
		Lot:              lot,
		Live:             live,
		PredictedPercent: predicted,
		DistanceMeters:   distance,
		DriveMinutes:     drive,
		WalkMinutes:      walk,
		PermitOK:         lot.PermitsAllow(req.Permits),
		AlreadyHere:      req.CurrentLotID != nil && *req.CurrentLotID == lot.ID,
	}, nil
}
