package model

import (
	"context"
	"fmt"
	"sort"
)

// VotingMode 是投票方式
type VotingMode string

const (
	VotingHard VotingMode = "hard" // 按标签加权计票，无原生概率
	VotingSoft VotingMode = "soft" // 按概率加权平均，要求所有子模型都有概率能力
)

// VotingModel 是投票集成模型（对应 sklearn VotingClassifier）。
//
// hard 模式下本身不提供概率，能力解析为 VotingEnsemble；
// soft 模式下提供原生概率，能力解析为 HasProbability。
type VotingModel struct {
	ID         string
	Mode       VotingMode
	Estimators []Classifier
	Weights    []float64 // 可选，与 Estimators 一一对应；为空则等权
}

// NewVotingModel 创建投票集成并校验参数
func NewVotingModel(id string, mode VotingMode, estimators []Classifier, weights []float64) (*VotingModel, error) {
	if len(estimators) == 0 {
		return nil, fmt.Errorf("voting %s: no estimators", id)
	}
	if len(weights) > 0 && len(weights) != len(estimators) {
		return nil, fmt.Errorf("voting %s: %d weights for %d estimators", id, len(weights), len(estimators))
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("voting %s: weight %d is negative", id, i)
		}
	}
	switch mode {
	case VotingHard:
	case VotingSoft:
		for _, est := range estimators {
			if ResolveCapability(est) != HasProbability {
				return nil, fmt.Errorf("voting %s: soft voting requires probabilities, %s has none", id, est.Name())
			}
		}
	default:
		return nil, fmt.Errorf("voting %s: unknown mode %q", id, mode)
	}
	return &VotingModel{ID: id, Mode: mode, Estimators: estimators, Weights: weights}, nil
}

func (m *VotingModel) Name() string {
	if m.ID == "" {
		return "voting"
	}
	return m.ID
}

func (m *VotingModel) weight(i int) float64 {
	if len(m.Weights) == 0 {
		return 1
	}
	return m.Weights[i]
}

// Predict 返回集成自身的判定：hard 为加权多数票，soft 为加权平均概率的 argmax，并列取 0。
func (m *VotingModel) Predict(ctx context.Context, features Features) (int, error) {
	if m.Mode == VotingSoft {
		p, err := m.PredictProba(ctx, features)
		if err != nil {
			return 0, err
		}
		return labelFromProba(p), nil
	}
	var tally [2]float64
	for i, est := range m.Estimators {
		label, err := est.Predict(ctx, features)
		if err != nil {
			return 0, fmt.Errorf("%s: estimator %s: %w", m.Name(), est.Name(), err)
		}
		if label != 0 && label != 1 {
			return 0, fmt.Errorf("%s: estimator %s returned label %d", m.Name(), est.Name(), label)
		}
		tally[label] += m.weight(i)
	}
	return labelFromProba(tally), nil
}

// PredictProba 仅 soft 模式可用
func (m *VotingModel) PredictProba(ctx context.Context, features Features) ([2]float64, error) {
	if m.Mode != VotingSoft {
		return [2]float64{}, fmt.Errorf("%s: hard voting has no predict_proba", m.Name())
	}
	var sum [2]float64
	var total float64
	for i, est := range m.Estimators {
		p, err := est.(ProbabilisticClassifier).PredictProba(ctx, features)
		if err != nil {
			return [2]float64{}, fmt.Errorf("%s: estimator %s: %w", m.Name(), est.Name(), err)
		}
		w := m.weight(i)
		sum[0] += w * p[0]
		sum[1] += w * p[1]
		total += w
	}
	if total == 0 {
		return [2]float64{}, fmt.Errorf("%s: all weights are zero", m.Name())
	}
	return [2]float64{sum[0] / total, sum[1] / total}, nil
}

func (m *VotingModel) HasProbability() bool { return m.Mode == VotingSoft }

// Members 返回子模型（副本切片）
func (m *VotingModel) Members() []Classifier {
	out := make([]Classifier, len(m.Estimators))
	copy(out, m.Estimators)
	return out
}

func (m *VotingModel) ReferencedFeatures() []string {
	seen := make(map[string]struct{})
	for _, est := range m.Estimators {
		if r, ok := est.(featureReferencer); ok {
			for _, f := range r.ReferencedFeatures() {
				seen[f] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	_ ProbabilisticClassifier = (*VotingModel)(nil)
	_ Ensemble                = (*VotingModel)(nil)
)
