package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/parkgazer/internal/models"
)

// ReportRepository 上报数据仓库（仅追加）
type ReportRepository struct {
	db *DB
}

// NewReportRepository 创建上报仓库
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, lot_id, author_id, kind, occupancy_percent, note,
	latitude, longitude, geofence_triggered, upvotes, downvotes, trust_tier, created_at`

// Create 创建上报记录
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (lot_id, author_id, kind, occupancy_percent, note,
			latitude, longitude, geofence_triggered, upvotes, downvotes, trust_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		report.LotID,
		report.AuthorID,
		report.Kind,
		report.OccupancyPercent,
		report.Note,
		report.Latitude,
		report.Longitude,
		report.GeofenceTriggered,
		report.Upvotes,
		report.Downvotes,
		report.TrustTier,
		report.CreatedAt,
	).Scan(&report.ID)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ListActiveByLot 获取停车场活跃窗口内的上报（聚合器输入）
func (r *ReportRepository) ListActiveByLot(ctx context.Context, lotID string, since time.Time) ([]*models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE lot_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, lotID, since)
	if err != nil {
		return nil, fmt.Errorf("list active reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report := &models.Report{}
		err := rows.Scan(
			&report.ID,
			&report.LotID,
			&report.AuthorID,
			&report.Kind,
			&report.OccupancyPercent,
			&report.Note,
			&report.Latitude,
			&report.Longitude,
			&report.GeofenceTriggered,
			&report.Upvotes,
			&report.Downvotes,
			&report.TrustTier,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// ListHistorical 获取带占用率的历史上报（训练样本来源），按时间升序
func (r *ReportRepository) ListHistorical(ctx context.Context, since time.Time) ([]*models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE created_at >= $1 AND occupancy_percent IS NOT NULL
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list historical reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report := &models.Report{}
		err := rows.Scan(
			&report.ID,
			&report.LotID,
			&report.AuthorID,
			&report.Kind,
			&report.OccupancyPercent,
			&report.Note,
			&report.Latitude,
			&report.Longitude,
			&report.GeofenceTriggered,
			&report.Upvotes,
			&report.Downvotes,
			&report.TrustTier,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// DeleteExpired 清理过期上报（外部清理任务调用）
func (r *ReportRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM reports WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired reports: %w", err)
	}
	return tag.RowsAffected(), nil
}
