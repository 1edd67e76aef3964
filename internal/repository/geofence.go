package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/parkgazer/internal/models"
)

// GeofenceRepository 围栏事件与设备状态仓库
type GeofenceRepository struct {
	db *DB
}

// NewGeofenceRepository 创建围栏仓库
func NewGeofenceRepository(db *DB) *GeofenceRepository {
	return &GeofenceRepository{db: db}
}

// CreateEvent 记录进出场事件
func (r *GeofenceRepository) CreateEvent(ctx context.Context, event *models.GeofenceEvent) error {
	query := `
		INSERT INTO geofence_events (device_id, type, lot_id, latitude, longitude, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		event.DeviceID,
		event.Type,
		event.LotID,
		event.Latitude,
		event.Longitude,
		event.Timestamp,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert geofence event: %w", err)
	}
	return nil
}

// GetDeviceState 获取设备当前围栏状态
func (r *GeofenceRepository) GetDeviceState(ctx context.Context, deviceID string) (*models.DeviceState, error) {
	query := `
		SELECT device_id, current_lot_id, last_event_at, updated_at
		FROM device_states WHERE device_id = $1
	`
	state := &models.DeviceState{}
	err := r.db.Pool.QueryRow(ctx, query, deviceID).Scan(
		&state.DeviceID,
		&state.CurrentLotID,
		&state.LastEventAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device state: %w", err)
	}
	return state, nil
}

// UpsertDeviceState 覆盖写入设备围栏状态
func (r *GeofenceRepository) UpsertDeviceState(ctx context.Context, deviceID string, currentLotID *string, eventAt *time.Time) error {
	query := `
		INSERT INTO device_states (device_id, current_lot_id, last_event_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			current_lot_id = EXCLUDED.current_lot_id,
			last_event_at = COALESCE(EXCLUDED.last_event_at, device_states.last_event_at),
			updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query, deviceID, currentLotID, eventAt)
	if err != nil {
		return fmt.Errorf("upsert device state: %w", err)
	}
	return nil
}
