package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateLots,
		migrationCreateReports,
		migrationCreateLotStatuses,
		migrationCreatePredictions,
		migrationCreateTrainedModels,
		migrationCreateEvents,
		migrationCreateGeofenceEvents,
		migrationCreateDeviceStates,
		migrationCreateSettings,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateLots = `
CREATE TABLE IF NOT EXISTS lots (
    id VARCHAR(32) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    capacity INT NOT NULL DEFAULT 0,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    boundary JSONB,
    walk_times JSONB,
    permit_types JSONB,
    is_icing_zone BOOLEAN NOT NULL DEFAULT false,
    time_limit_minutes INT,
    requires_shuttle BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateReports = `
CREATE TABLE IF NOT EXISTS reports (
    id BIGSERIAL PRIMARY KEY,
    lot_id VARCHAR(32) NOT NULL REFERENCES lots(id),
    author_id VARCHAR(64),
    kind VARCHAR(16) NOT NULL,
    occupancy_percent DOUBLE PRECISION,
    note TEXT,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    geofence_triggered BOOLEAN NOT NULL DEFAULT false,
    upvotes INT NOT NULL DEFAULT 0,
    downvotes INT NOT NULL DEFAULT 0,
    trust_tier VARCHAR(16) NOT NULL DEFAULT 'new',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reports_lot_id ON reports(lot_id);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_reports_lot_created ON reports(lot_id, created_at);
`

const migrationCreateLotStatuses = `
CREATE TABLE IF NOT EXISTS lot_statuses (
    lot_id VARCHAR(32) PRIMARY KEY REFERENCES lots(id),
    occupancy_percent DOUBLE PRECISION NOT NULL,
    status VARCHAR(16) NOT NULL,
    confidence VARCHAR(16) NOT NULL,
    trend VARCHAR(16) NOT NULL,
    report_count INT NOT NULL DEFAULT 0,
    last_report_at TIMESTAMP WITH TIME ZONE,
    is_closed BOOLEAN NOT NULL DEFAULT false,
    closed_reason TEXT,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreatePredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    id BIGSERIAL PRIMARY KEY,
    lot_id VARCHAR(32) NOT NULL REFERENCES lots(id),
    target_time TIMESTAMP WITH TIME ZONE NOT NULL,
    predicted_percent DOUBLE PRECISION NOT NULL,
    predicted_status VARCHAR(16) NOT NULL,
    confidence VARCHAR(16) NOT NULL,
    model_version VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_predictions_lot_target ON predictions(lot_id, target_time);
CREATE UNIQUE INDEX IF NOT EXISTS idx_predictions_lot_target_version
    ON predictions(lot_id, target_time, model_version);
`

const migrationCreateTrainedModels = `
CREATE TABLE IF NOT EXISTS trained_models (
    id BIGSERIAL PRIMARY KEY,
    model_type VARCHAR(32) NOT NULL,
    version VARCHAR(64) NOT NULL,
    trees JSONB NOT NULL,
    learning_rate DOUBLE PRECISION NOT NULL,
    base_score DOUBLE PRECISION NOT NULL,
    importance JSONB,
    metrics JSONB NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT false,
    trained_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trained_models_type ON trained_models(model_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trained_models_one_active
    ON trained_models(model_type) WHERE is_active;
`

const migrationCreateEvents = `
CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    lot_id VARCHAR(32) NOT NULL REFERENCES lots(id),
    name VARCHAR(255) NOT NULL,
    event_type VARCHAR(16) NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_lot_id ON events(lot_id);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(start_time, end_time);
`

const migrationCreateGeofenceEvents = `
CREATE TABLE IF NOT EXISTS geofence_events (
    id BIGSERIAL PRIMARY KEY,
    device_id VARCHAR(64) NOT NULL,
    type VARCHAR(8) NOT NULL,
    lot_id VARCHAR(32) NOT NULL REFERENCES lots(id),
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_geofence_events_device ON geofence_events(device_id, timestamp);
`

const migrationCreateDeviceStates = `
CREATE TABLE IF NOT EXISTS device_states (
    device_id VARCHAR(64) PRIMARY KEY,
    current_lot_id VARCHAR(32),
    last_event_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateSettings = `
CREATE TABLE IF NOT EXISTS settings (
    id BIGSERIAL PRIMARY KEY,
    key VARCHAR(64) NOT NULL UNIQUE,
    value TEXT NOT NULL
);
`
