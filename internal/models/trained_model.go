package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// LeafNode 叶子节点：残差均值
type LeafNode struct {
	Value float64 `json:"value"`
}

// SplitNode 内部节点：特征/阈值二分
type SplitNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left"`
	Right     *TreeNode `json:"right"`
}

// TreeNode 回归树节点，叶子与内部节点为显式互斥变体
// 恰好一个字段非空
type TreeNode struct {
	Leaf  *LeafNode  `json:"leaf,omitempty"`
	Split *SplitNode `json:"split,omitempty"`
}

// NewLeaf 构造叶子节点
func NewLeaf(value float64) *TreeNode {
	return &TreeNode{Leaf: &LeafNode{Value: value}}
}

// NewSplit 构造内部节点
func NewSplit(feature int, threshold float64, left, right *TreeNode) *TreeNode {
	return &TreeNode{Split: &SplitNode{Feature: feature, Threshold: threshold, Left: left, Right: right}}
}

// IsLeaf 是否叶子节点
func (n *TreeNode) IsLeaf() bool {
	return n != nil && n.Leaf != nil
}

// Evaluate 沿树下行到叶子，返回叶子值
func (n *TreeNode) Evaluate(features []float64) float64 {
	node := n
	for node != nil && node.Split != nil {
		if features[node.Split.Feature] <= node.Split.Threshold {
			node = node.Split.Left
		} else {
			node = node.Split.Right
		}
	}
	if node == nil || node.Leaf == nil {
		return 0
	}
	return node.Leaf.Value
}

// TreeList 有序回归树列表（JSONB 存储）
type TreeList []*TreeNode

// Value 实现 driver.Valuer 接口
func (t TreeList) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *TreeList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, t)
}

// FeatureImportance 特征重要度：特征名 -> 累计分裂增益
type FeatureImportance map[string]float64

// Value 实现 driver.Valuer 接口
func (f FeatureImportance) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan 实现 sql.Scanner 接口
func (f *FeatureImportance) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, f)
}

// TrainingMetrics 训练评估快照（时间序 80/20 切分）
type TrainingMetrics struct {
	SampleCount int     `json:"sample_count"`
	TrainCount  int     `json:"train_count"`
	TestCount   int     `json:"test_count"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	Within10    float64 `json:"within_10"`
	Within20    float64 `json:"within_20"`
}

// Value 实现 driver.Valuer 接口
func (m TrainingMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner 接口
func (m *TrainingMetrics) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// TrainedModel 训练产物
// 不变式：同一 model_type 同一时刻至多一行 is_active=true
type TrainedModel struct {
	ID           int64             `json:"id" db:"id"`
	ModelType    string            `json:"model_type" db:"model_type"`
	Version      string            `json:"version" db:"version"`
	Trees        TreeList          `json:"trees" db:"trees"`
	LearningRate float64           `json:"learning_rate" db:"learning_rate"`
	BaseScore    float64           `json:"base_score" db:"base_score"`
	Importance   FeatureImportance `json:"importance,omitempty" db:"importance"`
	Metrics      TrainingMetrics   `json:"metrics" db:"metrics"`
	IsActive     bool              `json:"is_active" db:"is_active"`
	TrainedAt    time.Time         `json:"trained_at" db:"trained_at"`
}

// ModelTypeGradientBoosting 目前唯一的模型类型
const ModelTypeGradientBoosting = "gradient_boosting"
