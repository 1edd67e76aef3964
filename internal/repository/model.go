package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/langchou/parkgazer/internal/models"
)

// txExecutor 事务内的最小执行面（pgx.Tx 满足该接口）
type txExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ModelRepository 训练模型数据仓库
type ModelRepository struct {
	db *DB
}

// NewModelRepository 创建模型仓库
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// SaveAndActivate 保存新模型并激活，同一事务内先取消旧激活
// 保证同一 model_type 任一时刻至多一个激活模型
func (r *ModelRepository) SaveAndActivate(ctx context.Context, model *models.TrainedModel) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := saveAndActivate(ctx, tx, model); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// saveAndActivate 激活序列：先取消同类型旧激活，再插入新激活行
// 两步必须在同一事务执行，顺序颠倒会短暂违反唯一激活约束
func saveAndActivate(ctx context.Context, q txExecutor, model *models.TrainedModel) error {
	if _, err := q.Exec(ctx,
		`UPDATE trained_models SET is_active = false WHERE model_type = $1 AND is_active`,
		model.ModelType,
	); err != nil {
		return fmt.Errorf("deactivate previous models: %w", err)
	}

	err := q.QueryRow(ctx, `
		INSERT INTO trained_models (model_type, version, trees, learning_rate,
			base_score, importance, metrics, is_active, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
		RETURNING id
	`,
		model.ModelType,
		model.Version,
		model.Trees,
		model.LearningRate,
		model.BaseScore,
		model.Importance,
		model.Metrics,
		model.TrainedAt,
	).Scan(&model.ID)
	if err != nil {
		return fmt.Errorf("insert trained model: %w", err)
	}
	model.IsActive = true
	return nil
}

// GetActive 获取当前激活模型
func (r *ModelRepository) GetActive(ctx context.Context, modelType string) (*models.TrainedModel, error) {
	query := `
		SELECT id, model_type, version, trees, learning_rate, base_score,
			importance, metrics, is_active, trained_at
		FROM trained_models
		WHERE model_type = $1 AND is_active
	`
	m := &models.TrainedModel{}
	err := r.db.Pool.QueryRow(ctx, query, modelType).Scan(
		&m.ID,
		&m.ModelType,
		&m.Version,
		&m.Trees,
		&m.LearningRate,
		&m.BaseScore,
		&m.Importance,
		&m.Metrics,
		&m.IsActive,
		&m.TrainedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active model: %w", err)
	}
	return m, nil
}
