package model

import (
	"context"
	"fmt"
	"sort"
)

// TreeNode 是决策树节点（与 sklearn 一致：x[Feature] <= Threshold 走左子树）。
type TreeNode struct {
	Feature   string      `json:"feature,omitempty"`
	Threshold float64     `json:"threshold,omitempty"`
	Left      int         `json:"left,omitempty"`
	Right     int         `json:"right,omitempty"`
	Leaf      bool        `json:"leaf,omitempty"`
	Label     int         `json:"label,omitempty"`
	Proba     *[2]float64 `json:"proba,omitempty"`
}

// DecisionTree 是以节点数组表示的二叉决策树，根节点下标为 0。
// 只有当所有叶子都带有 proba 时才具备概率能力。
type DecisionTree struct {
	ID    string
	Nodes []TreeNode
}

// NewDecisionTree 校验节点结构：子节点下标必须大于父节点（先序编号），保证遍历必然终止。
func NewDecisionTree(id string, nodes []TreeNode) (*DecisionTree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("tree %s: no nodes", id)
	}
	for i, n := range nodes {
		if n.Leaf {
			if n.Label != 0 && n.Label != 1 {
				return nil, fmt.Errorf("tree %s: node %d label %d is not binary", id, i, n.Label)
			}
			continue
		}
		if n.Feature == "" {
			return nil, fmt.Errorf("tree %s: node %d has no feature", id, i)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(nodes) {
				return nil, fmt.Errorf("tree %s: node %d has invalid child %d", id, i, child)
			}
		}
	}
	return &DecisionTree{ID: id, Nodes: nodes}, nil
}

func (t *DecisionTree) Name() string {
	if t.ID == "" {
		return "tree"
	}
	return t.ID
}

func (t *DecisionTree) leaf(features Features) (TreeNode, error) {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n, nil
		}
		v, err := lookup(features, n.Feature, t.Name())
		if err != nil {
			return TreeNode{}, err
		}
		if v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *DecisionTree) Predict(_ context.Context, features Features) (int, error) {
	n, err := t.leaf(features)
	if err != nil {
		return 0, err
	}
	return n.Label, nil
}

func (t *DecisionTree) PredictProba(_ context.Context, features Features) ([2]float64, error) {
	n, err := t.leaf(features)
	if err != nil {
		return [2]float64{}, err
	}
	if n.Proba == nil {
		return [2]float64{}, fmt.Errorf("%s: leaf has no probability", t.Name())
	}
	return *n.Proba, nil
}

func (t *DecisionTree) HasProbability() bool {
	for _, n := range t.Nodes {
		if n.Leaf && n.Proba == nil {
			return false
		}
	}
	return true
}

func (t *DecisionTree) ReferencedFeatures() []string {
	seen := make(map[string]struct{})
	for _, n := range t.Nodes {
		if !n.Leaf {
			seen[n.Feature] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
