package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/parkgazer/internal/models"
)

// StatusRepository 实时状态数据仓库
type StatusRepository struct {
	db *DB
}

// NewStatusRepository 创建状态仓库
func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

const statusColumns = `lot_id, occupancy_percent, status, confidence, trend,
	report_count, last_report_at, is_closed, closed_reason, updated_at`

// Upsert 覆盖写入停车场状态，按 lot_id 幂等，不会产生重复行
func (r *StatusRepository) Upsert(ctx context.Context, status *models.LotStatus) error {
	query := `
		INSERT INTO lot_statuses (lot_id, occupancy_percent, status, confidence, trend,
			report_count, last_report_at, is_closed, closed_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lot_id) DO UPDATE SET
			occupancy_percent = EXCLUDED.occupancy_percent,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			trend = EXCLUDED.trend,
			report_count = EXCLUDED.report_count,
			last_report_at = EXCLUDED.last_report_at,
			is_closed = EXCLUDED.is_closed,
			closed_reason = EXCLUDED.closed_reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Pool.Exec(ctx, query,
		status.LotID,
		status.OccupancyPercent,
		status.Status,
		status.Confidence,
		status.Trend,
		status.ReportCount,
		status.LastReportAt,
		status.IsClosed,
		status.ClosedReason,
		status.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lot status: %w", err)
	}
	return nil
}

func scanStatus(row pgx.Row) (*models.LotStatus, error) {
	status := &models.LotStatus{}
	err := row.Scan(
		&status.LotID,
		&status.OccupancyPercent,
		&status.Status,
		&status.Confidence,
		&status.Trend,
		&status.ReportCount,
		&status.LastReportAt,
		&status.IsClosed,
		&status.ClosedReason,
		&status.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// GetByLot 获取停车场当前状态
func (r *StatusRepository) GetByLot(ctx context.Context, lotID string) (*models.LotStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM lot_statuses WHERE lot_id = $1`
	status, err := scanStatus(r.db.Pool.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lot status: %w", err)
	}
	return status, nil
}

// ListAll 获取全部停车场状态
func (r *StatusRepository) ListAll(ctx context.Context) ([]*models.LotStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM lot_statuses ORDER BY lot_id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lot statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.LotStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot status: %w", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}
