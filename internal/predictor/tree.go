package predictor

import (
	"math"
	"sort"

	"github.com/langchou/parkgazer/internal/models"
)

// 树训练常量
const (
	// MaxTreeDepth 单棵树最大深度
	MaxTreeDepth = 4
	// MinSplitSamples 分裂所需最少样本数
	MinSplitSamples = 10
)

// splitResult 最优分裂搜索结果
type splitResult struct {
	feature   int
	threshold float64
	gain      float64
	leftIdx   []int
	rightIdx  []int
}

// mean 子集均值
func meanOf(targets []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += targets[i]
	}
	return sum / float64(len(idx))
}

// sse 子集残差平方和
func sseOf(targets []float64, idx []int) float64 {
	m := meanOf(targets, idx)
	sum := 0.0
	for _, i := range idx {
		d := targets[i] - m
		sum += d * d
	}
	return sum
}

// bestSplit 遍历全部特征与候选阈值（相邻去重值中点），取方差缩减最大者
// 无正增益分裂时返回 nil
func bestSplit(features [][]float64, targets []float64, idx []int) *splitResult {
	parentSSE := sseOf(targets, idx)
	var best *splitResult

	for feat := 0; feat < FeatureCount; feat++ {
		// 去重后排序的特征取值
		values := make([]float64, 0, len(idx))
		seen := make(map[float64]bool, len(idx))
		for _, i := range idx {
			v := features[i][feat]
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		if len(values) < 2 {
			continue
		}
		sort.Float64s(values)

		for k := 0; k+1 < len(values); k++ {
			threshold := (values[k] + values[k+1]) / 2

			var left, right []int
			for _, i := range idx {
				if features[i][feat] <= threshold {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			gain := parentSSE - sseOf(targets, left) - sseOf(targets, right)
			if gain <= 0 {
				continue
			}
			if best == nil || gain > best.gain {
				best = &splitResult{
					feature:   feat,
					threshold: threshold,
					gain:      gain,
					leftIdx:   left,
					rightIdx:  right,
				}
			}
		}
	}
	return best
}

// buildTree 贪心递归建树
// 达到最大深度、样本不足或无正增益分裂时落叶（残差均值）
func buildTree(features [][]float64, targets []float64, idx []int, depth int, importance map[string]float64) *models.TreeNode {
	if depth >= MaxTreeDepth || len(idx) < MinSplitSamples {
		return models.NewLeaf(meanOf(targets, idx))
	}

	split := bestSplit(features, targets, idx)
	if split == nil {
		return models.NewLeaf(meanOf(targets, idx))
	}

	if importance != nil {
		importance[FeatureNames[split.feature]] += split.gain
	}

	left := buildTree(features, targets, split.leftIdx, depth+1, importance)
	right := buildTree(features, targets, split.rightIdx, depth+1, importance)
	return models.NewSplit(split.feature, split.threshold, left, right)
}

// TrainTree 以残差为目标训练一棵回归树
func TrainTree(features [][]float64, residuals []float64, importance map[string]float64) *models.TreeNode {
	idx := make([]int, len(residuals))
	for i := range idx {
		idx[i] = i
	}
	return buildTree(features, residuals, idx, 0, importance)
}

// clamp 预测值截断到 [0, 100]
func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
