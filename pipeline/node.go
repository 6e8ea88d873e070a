package pipeline

import (
	"context"

	"github.com/rushteam/survkit/core"
)

// Kind 用于标记 Node 所处阶段，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindValidate Kind = "validate" // 类别校验
	KindAlign    Kind = "align"    // 特征派生与列对齐
	KindInfer    Kind = "infer"    // 模型推理
	KindScore    Kind = "score"    // 置信度分档
)

// stageOrder 是各阶段在单次调用中的固定先后顺序
var stageOrder = map[Kind]int{
	KindValidate: 0,
	KindAlign:    1,
	KindInfer:    2,
	KindScore:    3,
}

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“读写同一个 PredictContext”的形态；任一 Node 返回错误即终止。
type Node interface {
	Name() string
	Kind() Kind

	Process(ctx context.Context, pctx *core.PredictContext) error
}
