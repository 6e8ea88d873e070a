package inference

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/model"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/pkg/utils"
)

// Model 是引擎消费的模型视图，由 *model.Artifact 实现。
type Model interface {
	Name() string
	Capability() model.Capability
	Encode(vec *core.AlignedFeatureVector) (model.Features, error)
	Predict(ctx context.Context, vec *core.AlignedFeatureVector) (int, error)
	PredictProba(ctx context.Context, vec *core.AlignedFeatureVector) ([2]float64, error)
	Estimators() []model.Classifier
}

// Engine 对对齐后的特征向量执行推理，输出标签和两类概率。
//
// 概率分支在构建时按模型能力确定一次：
//   - HasProbability：原生 predict_proba，[0] 为 P(die)，[1] 为 P(survive)
//   - VotingEnsemble：子模型逐个投票，P(survive) = 判生子模型数 / 子模型总数
//   - LabelOnly：退化概率，预测类别 1.0，另一类 0.0
//
// 概率路径上的任何失败都降级为退化概率；只有标签预测失败才返回 InferenceError。
// 同一输入总是得到同一输出。
type Engine struct {
	model  Model
	branch model.Capability
}

// NewEngine 创建引擎
func NewEngine(m Model) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("inference: nil model")
	}
	return &Engine{
		model:  m,
		branch: m.Capability(),
	}, nil
}

// Branch 返回加载时确定的概率分支
func (e *Engine) Branch() model.Capability { return e.branch }

// Infer 执行一次推理。ctx 只约束远程模型调用，不影响本地模型的结果。
func (e *Engine) Infer(ctx context.Context, vec *core.AlignedFeatureVector) (core.Outcome, error) {
	if vec == nil {
		return core.Outcome{}, &core.InferenceError{Model: e.model.Name(), Err: fmt.Errorf("nil feature vector")}
	}
	label, err := e.model.Predict(ctx, vec)
	if err != nil {
		return core.Outcome{}, &core.InferenceError{Model: e.model.Name(), Err: err}
	}

	var (
		proba  [2]float64
		source core.ProbabilitySource
	)
	switch e.branch {
	case model.HasProbability:
		proba, err = e.native(ctx, vec)
		source = core.SourceNative
	case model.VotingEnsemble:
		proba, err = e.vote(ctx, vec)
		source = core.SourceVote
	default:
		return degenerate(label), nil
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("model", e.model.Name()).
			Str("branch", e.branch.String()).
			Msg("probability unavailable, using degenerate")
		return degenerate(label), nil
	}
	return core.Outcome{Label: label, ProbDie: proba[0], ProbSurvive: proba[1], Source: source}, nil
}

func (e *Engine) native(ctx context.Context, vec *core.AlignedFeatureVector) ([2]float64, error) {
	p, err := e.model.PredictProba(ctx, vec)
	if err != nil {
		return p, err
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return p, fmt.Errorf("probability[%d]=%v out of range", i, v)
		}
	}
	return p, nil
}

func (e *Engine) vote(ctx context.Context, vec *core.AlignedFeatureVector) ([2]float64, error) {
	members := e.model.Estimators()
	if len(members) == 0 {
		return [2]float64{}, fmt.Errorf("ensemble has no members")
	}
	features, err := e.model.Encode(vec)
	if err != nil {
		return [2]float64{}, err
	}
	positives := 0
	for _, m := range members {
		label, err := m.Predict(ctx, features)
		if err != nil {
			return [2]float64{}, fmt.Errorf("member %s: %w", m.Name(), err)
		}
		if label == 1 {
			positives++
		}
	}
	ps := float64(positives) / float64(len(members))
	return [2]float64{1 - ps, ps}, nil
}

func degenerate(label int) core.Outcome {
	o := core.Outcome{Label: label, Source: core.SourceDegenerate}
	if label == 1 {
		o.ProbSurvive = 1
	} else {
		o.ProbDie = 1
	}
	return o
}

// Node 将引擎接入 Pipeline
type Node struct {
	Engine *Engine
}

func (n *Node) Name() string        { return "inference.infer" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindInfer }

func (n *Node) Process(ctx context.Context, pctx *core.PredictContext) error {
	if pctx.Vector == nil {
		return fmt.Errorf("%s: feature vector not aligned", n.Name())
	}
	out, err := n.Engine.Infer(ctx, pctx.Vector)
	if err != nil {
		return err
	}
	pctx.Outcome = &out
	pctx.PutLabel("model", utils.Label{Value: n.Engine.model.Name(), Source: "inference"})
	pctx.PutLabel("capability", utils.Label{Value: n.Engine.branch.String(), Source: "inference"})
	pctx.PutLabel("probability_source", utils.Label{Value: string(out.Source), Source: "inference"})
	return nil
}
