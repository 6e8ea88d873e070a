// Package survkit 是泰坦尼克生还预测工具包（Survival Kit）。
//
// 设计要点：
// - Pipeline-first: 一次预测由 Node 串联（Validate → Align → Infer → Score），阶段顺序固定
// - Contract-first: 模型制品携带 expected_columns，对齐后的特征向量严格按该顺序排列
// - Labels-first: labels 全链路透传，记录模型、能力、概率来源与置信度表版本，便于解释与观测
package survkit

import (
	"context"

	"github.com/rushteam/survkit/category"
	"github.com/rushteam/survkit/confidence"
	"github.com/rushteam/survkit/feature"
	"github.com/rushteam/survkit/model"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/predictor"
)

// 轻量 facade：便于用户直接 import "survkit" 使用核心抽象。
type Predictor = predictor.Predictor
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindValidate = pipeline.KindValidate
	KindAlign    = pipeline.KindAlign
	KindInfer    = pipeline.KindInfer
	KindScore    = pipeline.KindScore
)

// Open 加载模型制品，并用内置类别表、Family_Size 派生特征和 v1 置信度表组装 Predictor。
func Open(ctx context.Context, source string, opts ...predictor.Option) (*Predictor, error) {
	artifact, err := model.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	scorer, err := confidence.NewScorer(confidence.DefaultTable())
	if err != nil {
		return nil, err
	}
	return predictor.New(artifact, category.NewValidator(nil), feature.NewAligner(), scorer, opts...)
}
