package confidence

import (
	"context"
	"fmt"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/pkg/utils"
)

// Scorer 按阈值表给概率对打档，纯函数，可并发使用。
type Scorer struct {
	table Table
}

// NewScorer 用校验过的阈值表创建 Scorer
func NewScorer(table Table) (*Scorer, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	ths := make([]Threshold, len(table.Thresholds))
	copy(ths, table.Thresholds)
	table.Thresholds = ths
	return &Scorer{table: table}, nil
}

// Version 返回阈值表版本
func (s *Scorer) Version() string { return s.table.Version }

// Score 以 m = max(probDie, probSurvive) 查表
func (s *Scorer) Score(probDie, probSurvive float64) core.Tier {
	m := probDie
	if probSurvive > m {
		m = probSurvive
	}
	return s.Tier(m)
}

// Tier 返回 m 命中的第一个档位（下界闭区间），都不命中为 VeryLow。
func (s *Scorer) Tier(m float64) core.Tier {
	for _, th := range s.table.Thresholds {
		if m >= th.Min {
			return th.Tier
		}
	}
	return core.TierVeryLow
}

// Node 将 Scorer 接入 Pipeline
type Node struct {
	Scorer *Scorer
}

func (n *Node) Name() string        { return "confidence.score" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindScore }

func (n *Node) Process(_ context.Context, pctx *core.PredictContext) error {
	if pctx.Outcome == nil {
		return fmt.Errorf("%s: no inference outcome", n.Name())
	}
	pctx.Tier = n.Scorer.Score(pctx.Outcome.ProbDie, pctx.Outcome.ProbSurvive)
	pctx.Scored = true
	pctx.PutLabel("confidence_table", utils.Label{Value: n.Scorer.Version(), Source: "confidence"})
	return nil
}
