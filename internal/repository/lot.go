package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/parkgazer/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// LotRepository 停车场数据仓库
type LotRepository struct {
	db *DB
}

// NewLotRepository 创建停车场仓库
func NewLotRepository(db *DB) *LotRepository {
	return &LotRepository{db: db}
}

const lotColumns = `id, name, capacity, latitude, longitude, boundary, walk_times,
	permit_types, is_icing_zone, time_limit_minutes, requires_shuttle, created_at, updated_at`

func scanLot(row pgx.Row) (*models.Lot, error) {
	lot := &models.Lot{}
	err := row.Scan(
		&lot.ID,
		&lot.Name,
		&lot.Capacity,
		&lot.Latitude,
		&lot.Longitude,
		&lot.Boundary,
		&lot.WalkTimes,
		&lot.PermitTypes,
		&lot.IsIcingZone,
		&lot.TimeLimitMinutes,
		&lot.RequiresShuttle,
		&lot.CreatedAt,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// GetByID 获取停车场
func (r *LotRepository) GetByID(ctx context.Context, id string) (*models.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	lot, err := scanLot(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lot by id: %w", err)
	}
	return lot, nil
}

// List 获取全部停车场
func (r *LotRepository) List(ctx context.Context) ([]*models.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// Upsert 写入停车场参考数据（管理端导入用）
func (r *LotRepository) Upsert(ctx context.Context, lot *models.Lot) error {
	query := `
		INSERT INTO lots (id, name, capacity, latitude, longitude, boundary, walk_times,
			permit_types, is_icing_zone, time_limit_minutes, requires_shuttle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			boundary = EXCLUDED.boundary,
			walk_times = EXCLUDED.walk_times,
			permit_types = EXCLUDED.permit_types,
			is_icing_zone = EXCLUDED.is_icing_zone,
			time_limit_minutes = EXCLUDED.time_limit_minutes,
			requires_shuttle = EXCLUDED.requires_shuttle,
			updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query,
		lot.ID,
		lot.Name,
		lot.Capacity,
		lot.Latitude,
		lot.Longitude,
		lot.Boundary,
		lot.WalkTimes,
		lot.PermitTypes,
		lot.IsIcingZone,
		lot.TimeLimitMinutes,
		lot.RequiresShuttle,
	)
	if err != nil {
		return fmt.Errorf("upsert lot: %w", err)
	}
	return nil
}
