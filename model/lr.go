package model

import (
	"context"
	"math"
	"sort"
)

// LogisticModel 实现了逻辑回归 (Logistic Regression) 二分类模型。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P(survive) = 1 / (1 + exp(-z))
//
// 输出 [1-P, P]；标签取概率较大的一类，并列时取 0。
type LogisticModel struct {
	ID      string
	Bias    float64            // 偏置项 (Bias / Intercept)
	Weights map[string]float64 // 特征权重 (Weights / Coefficients)
}

func (m *LogisticModel) Name() string {
	if m.ID == "" {
		return "logistic"
	}
	return m.ID
}

func (m *LogisticModel) PredictProba(_ context.Context, features Features) ([2]float64, error) {
	score := m.Bias
	// 按特征名排序累加，保证浮点求和顺序固定
	for _, k := range m.ReferencedFeatures() {
		v, err := lookup(features, k, m.Name())
		if err != nil {
			return [2]float64{}, err
		}
		score += m.Weights[k] * v
	}
	p := 1 / (1 + math.Exp(-score))
	return [2]float64{1 - p, p}, nil
}

func (m *LogisticModel) Predict(ctx context.Context, features Features) (int, error) {
	p, err := m.PredictProba(ctx, features)
	if err != nil {
		return 0, err
	}
	return labelFromProba(p), nil
}

func (m *LogisticModel) ReferencedFeatures() []string {
	keys := make([]string, 0, len(m.Weights))
	for k := range m.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ ProbabilisticClassifier = (*LogisticModel)(nil)
