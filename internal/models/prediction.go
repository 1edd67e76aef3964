package models

import "time"

// Prediction 占用率预测（批量生成，历史行保留用于评估）
type Prediction struct {
	ID               int64          `json:"id" db:"id"`
	LotID            string         `json:"lot_id" db:"lot_id"`
	TargetTime       time.Time      `json:"target_time" db:"target_time"`
	PredictedPercent float64        `json:"predicted_percent" db:"predicted_percent"`
	PredictedStatus  StatusBucket   `json:"predicted_status" db:"predicted_status"`
	Confidence       ConfidenceTier `json:"confidence" db:"confidence"`
	ModelVersion     string         `json:"model_version" db:"model_version"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}
