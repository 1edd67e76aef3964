package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/parkgazer/internal/models"
)

type fakeActivateRow struct {
	id  int64
	err error
}

func (r *fakeActivateRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*int64); ok {
		*p = r.id
	}
	return nil
}

// recordingExecutor 按顺序记录事务内执行的语句
type recordingExecutor struct {
	statements []string
	args       [][]any
	execErr    error
	rowErr     error
}

func (e *recordingExecutor) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	e.statements = append(e.statements, sql)
	e.args = append(e.args, arguments)
	return pgconn.CommandTag{}, e.execErr
}

func (e *recordingExecutor) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	e.statements = append(e.statements, sql)
	e.args = append(e.args, args)
	return &fakeActivateRow{id: 42, err: e.rowErr}
}

func newTestModel() *models.TrainedModel {
	return &models.TrainedModel{
		ModelType:    models.ModelTypeGradientBoosting,
		Version:      "gbdt-20251006-120000",
		Trees:        models.TreeList{models.NewLeaf(0)},
		LearningRate: 0.1,
		BaseScore:    50,
		TrainedAt:    time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndActivateDeactivatesBeforeInsert(t *testing.T) {
	exec := &recordingExecutor{}
	model := newTestModel()

	require.NoError(t, saveAndActivate(context.Background(), exec, model))

	// 同一事务内恰好两条语句：先取消旧激活，再插入新激活行
	require.Len(t, exec.statements, 2)
	assert.Contains(t, exec.statements[0], "SET is_active = false")
	assert.Contains(t, exec.statements[0], "model_type = $1")
	assert.Contains(t, exec.statements[1], "INSERT INTO trained_models")
	assert.Contains(t, exec.statements[1], "true")

	// 两条语句绑定同一 model_type，跨类型激活互不影响
	assert.Equal(t, models.ModelTypeGradientBoosting, exec.args[0][0])
	assert.Equal(t, models.ModelTypeGradientBoosting, exec.args[1][0])

	assert.True(t, model.IsActive)
	assert.Equal(t, int64(42), model.ID)
}

func TestSaveAndActivateStopsOnDeactivateFailure(t *testing.T) {
	exec := &recordingExecutor{execErr: errors.New("connection reset")}
	model := newTestModel()

	err := saveAndActivate(context.Background(), exec, model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deactivate previous models")

	// 取消激活失败时不得插入新行
	require.Len(t, exec.statements, 1)
	assert.False(t, strings.Contains(exec.statements[0], "INSERT"))
	assert.False(t, model.IsActive)
}

func TestSaveAndActivateInsertFailureLeavesInactive(t *testing.T) {
	exec := &recordingExecutor{rowErr: errors.New("unique violation")}
	model := newTestModel()

	err := saveAndActivate(context.Background(), exec, model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert trained model")
	assert.False(t, model.IsActive)
}
