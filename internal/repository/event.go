package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/parkgazer/internal/models"
)

// EventRepository 校园活动数据仓库
type EventRepository struct {
	db *DB
}

// NewEventRepository 创建活动仓库
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create 创建活动
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (lot_id, name, event_type, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		event.LotID,
		event.Name,
		event.EventType,
		event.StartTime,
		event.EndTime,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListSince 获取起始时间之后结束的全部活动（训练特征连接用）
func (r *EventRepository) ListSince(ctx context.Context, since time.Time) ([]*models.Event, error) {
	query := `
		SELECT id, lot_id, name, event_type, start_time, end_time, created_at
		FROM events
		WHERE end_time >= $1
		ORDER BY start_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		err := rows.Scan(
			&event.ID,
			&event.LotID,
			&event.Name,
			&event.EventType,
			&event.StartTime,
			&event.EndTime,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ListActiveAt 获取指定时刻某停车场进行中的活动
func (r *EventRepository) ListActiveAt(ctx context.Context, lotID string, at time.Time) ([]*models.Event, error) {
	query := `
		SELECT id, lot_id, name, event_type, start_time, end_time, created_at
		FROM events
		WHERE lot_id = $1 AND start_time <= $2 AND end_time >= $2
		ORDER BY start_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, lotID, at)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		err := rows.Scan(
			&event.ID,
			&event.LotID,
			&event.Name,
			&event.EventType,
			&event.StartTime,
			&event.EndTime,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
