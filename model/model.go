package model

import (
	"context"
	"fmt"
)

// Features 是编码后的数值特征：特征名 -> 值。
type Features = map[string]float64

// Classifier 是二分类模型的最小抽象：输入编码后的特征，输出标签 0/1。
// 具体实现可以是本地模型（Logistic/Tree/Voting）或远程 RPC；本地模型忽略 ctx。
type Classifier interface {
	Name() string
	Predict(ctx context.Context, features Features) (int, error)
}

// ProbabilisticClassifier 额外提供概率输出：[P(0), P(1)]，即 [P(die), P(survive)]。
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(ctx context.Context, features Features) ([2]float64, error)
}

// Ensemble 是由多个可独立调用的子模型组成的集成模型。
type Ensemble interface {
	Classifier
	Members() []Classifier
}

// probabilityReporter 由“可能”提供概率的模型实现（例如叶子带概率的树），
// 用于在加载时确认概率能力是否真实可用。
type probabilityReporter interface {
	HasProbability() bool
}

// featureReferencer 由引用具体特征名的模型实现，用于加载时校验特征是否存在。
type featureReferencer interface {
	ReferencedFeatures() []string
}

// Capability 是加载时解析出的模型能力标签，运行期不再探测。
type Capability int

const (
	LabelOnly      Capability = iota // 只有 predict
	HasProbability                   // 有原生 predict_proba
	VotingEnsemble                   // 无原生概率，但有可投票的子模型
)

func (c Capability) String() string {
	switch c {
	case LabelOnly:
		return "label_only"
	case HasProbability:
		return "has_probability"
	case VotingEnsemble:
		return "voting_ensemble"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// ResolveCapability 探测模型能力：优先原生概率，其次集成投票，最后仅标签。
func ResolveCapability(c Classifier) Capability {
	if _, ok := c.(ProbabilisticClassifier); ok {
		if r, ok := c.(probabilityReporter); !ok || r.HasProbability() {
			return HasProbability
		}
	}
	if e, ok := c.(Ensemble); ok && len(e.Members()) > 0 {
		return VotingEnsemble
	}
	return LabelOnly
}

// labelFromProba 与 argmax 一致：并列时取类别 0。
func labelFromProba(p [2]float64) int {
	if p[1] > p[0] {
		return 1
	}
	return 0
}

func lookup(features Features, name, model string) (float64, error) {
	v, ok := features[name]
	if !ok {
		return 0, fmt.Errorf("%s: feature %s not provided", model, name)
	}
	return v, nil
}
