package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/parkgazer/internal/models"
)

// PredictionRepository 预测数据仓库
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository 创建预测仓库
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// StoreBatch 批量写入预测，同一 (lot, target, version) 幂等覆盖
// 旧版本模型的历史预测保留，供离线评估
func (r *PredictionRepository) StoreBatch(ctx context.Context, predictions []*models.Prediction) (int, error) {
	stored := 0
	for _, p := range predictions {
		_, err := r.db.Pool.Exec(ctx, `
			INSERT INTO predictions (lot_id, target_time, predicted_percent,
				predicted_status, confidence, model_version)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (lot_id, target_time, model_version) DO UPDATE SET
				predicted_percent = EXCLUDED.predicted_percent,
				predicted_status = EXCLUDED.predicted_status,
				confidence = EXCLUDED.confidence
		`, p.LotID, p.TargetTime, p.PredictedPercent, p.PredictedStatus, p.Confidence, p.ModelVersion)
		if err != nil {
			return stored, fmt.Errorf("insert prediction for lot %s: %w", p.LotID, err)
		}
		stored++
	}
	return stored, nil
}

// GetNearest 获取距目标时刻最近的预测
func (r *PredictionRepository) GetNearest(ctx context.Context, lotID string, target time.Time) (*models.Prediction, error) {
	query := `
		SELECT id, lot_id, target_time, predicted_percent, predicted_status,
			confidence, model_version, created_at
		FROM predictions
		WHERE lot_id = $1
		ORDER BY ABS(EXTRACT(EPOCH FROM (target_time - $2::timestamptz))), created_at DESC
		LIMIT 1
	`
	p := &models.Prediction{}
	err := r.db.Pool.QueryRow(ctx, query, lotID, target).Scan(
		&p.ID,
		&p.LotID,
		&p.TargetTime,
		&p.PredictedPercent,
		&p.PredictedStatus,
		&p.Confidence,
		&p.ModelVersion,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get nearest prediction: %w", err)
	}
	return p, nil
}

// ListTimeline 获取时间区间内的预测序列
func (r *PredictionRepository) ListTimeline(ctx context.Context, lotID string, start, end time.Time) ([]*models.Prediction, error) {
	query := `
		SELECT id, lot_id, target_time, predicted_percent, predicted_status,
			confidence, model_version, created_at
		FROM predictions
		WHERE lot_id = $1 AND target_time >= $2 AND target_time <= $3
		ORDER BY target_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, lotID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list prediction timeline: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		p := &models.Prediction{}
		err := rows.Scan(
			&p.ID,
			&p.LotID,
			&p.TargetTime,
			&p.PredictedPercent,
			&p.PredictedStatus,
			&p.Confidence,
			&p.ModelVersion,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
