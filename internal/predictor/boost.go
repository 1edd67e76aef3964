package predictor

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/langchou/parkgazer/internal/models"
)

// 梯度提升常量
const (
	// TreeCount 固定树数量
	TreeCount = 10
	// LearningRate 固定学习率
	LearningRate = 0.1
	// MinTrainingSamples 训练最少样本数，不足时拒绝训练
	MinTrainingSamples = 50
	// trainSplitRatio 时间序训练/测试切分比例
	trainSplitRatio = 0.8
)

// ErrInsufficientData 样本不足，无法训练
var ErrInsufficientData = fmt.Errorf("insufficient training data: at least %d samples required", MinTrainingSamples)

// Sample 训练样本：特征向量 + 观测占用率标签
type Sample struct {
	LotID     string
	Timestamp time.Time
	Features  []float64
	Label     float64
}

// Score 集成预测：基准分 + 学习率加权的各树叶子值之和，截断到 [0,100]
func Score(model *models.TrainedModel, features []float64) float64 {
	pred := model.BaseScore
	for _, tree := range model.Trees {
		pred += model.LearningRate * tree.Evaluate(features)
	}
	return clamp(pred)
}

// TrainModel 在全部样本上训练梯度提升集成（纯计算，不触数据库）
// 样本需按时间升序传入，内部按 80/20 时间序切分评估
func TrainModel(samples []Sample, version string, now time.Time) (*models.TrainedModel, error) {
	if len(samples) < MinTrainingSamples {
		return nil, ErrInsufficientData
	}

	// 时间序切分，保留时间先后关系，不做随机打乱
	splitAt := int(float64(len(samples)) * trainSplitRatio)
	train, test := samples[:splitAt], samples[splitAt:]

	features := make([][]float64, len(train))
	labels := make([]float64, len(train))
	for i, s := range train {
		features[i] = s.Features
		labels[i] = s.Label
	}

	// 基准分：训练标签全局均值
	baseScore := stat.Mean(labels, nil)

	importance := make(map[string]float64)
	trees := make(models.TreeList, 0, TreeCount)

	// 当前预测值，逐树拟合平方误差残差
	preds := make([]float64, len(train))
	for i := range preds {
		preds[i] = baseScore
	}
	residuals := make([]float64, len(train))

	for t := 0; t < TreeCount; t++ {
		for i := range residuals {
			residuals[i] = labels[i] - preds[i]
		}
		tree := TrainTree(features, residuals, importance)
		trees = append(trees, tree)
		for i := range preds {
			preds[i] += LearningRate * tree.Evaluate(features[i])
		}
	}

	model := &models.TrainedModel{
		ModelType:    models.ModelTypeGradientBoosting,
		Version:      version,
		Trees:        trees,
		LearningRate: LearningRate,
		BaseScore:    baseScore,
		Importance:   importance,
		TrainedAt:    now,
	}
	model.Metrics = Evaluate(model, test)
	model.Metrics.SampleCount = len(samples)
	model.Metrics.TrainCount = len(train)
	model.Metrics.TestCount = len(test)
	return model, nil
}

// Evaluate 在保留集上计算评估指标
func Evaluate(model *models.TrainedModel, test []Sample) models.TrainingMetrics {
	metrics := models.TrainingMetrics{}
	if len(test) == 0 {
		return metrics
	}

	var absSum, sqSum float64
	within10, within20 := 0, 0
	for _, s := range test {
		diff := Score(model, s.Features) - s.Label
		abs := math.Abs(diff)
		absSum += abs
		sqSum += diff * diff
		if abs <= 10 {
			within10++
		}
		if abs <= 20 {
			within20++
		}
	}

	n := float64(len(test))
	metrics.MAE = absSum / n
	metrics.RMSE = math.Sqrt(sqSum / n)
	metrics.Within10 = float64(within10) / n
	metrics.Within20 = float64(within20) / n
	return metrics
}
