package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/survkit/core"
)

// Pipeline 把预测逻辑拆成可组合的 Node 链：validate → align → infer → score。
// Pipeline 本身无状态，可被任意多个请求并发使用。
type Pipeline struct {
	Nodes []Node
}

// New 创建 Pipeline 并检查 Node 的阶段顺序
func New(nodes ...Node) (*Pipeline, error) {
	p := &Pipeline{Nodes: nodes}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// Check 校验 Node 非空且阶段顺序不倒退
func (p *Pipeline) Check() error {
	last := -1
	for i, node := range p.Nodes {
		if node == nil {
			return fmt.Errorf("pipeline node %d is nil", i)
		}
		order, ok := stageOrder[node.Kind()]
		if !ok {
			return fmt.Errorf("pipeline node %s: unknown kind %q", node.Name(), node.Kind())
		}
		if order < last {
			return fmt.Errorf("pipeline node %s (%s) runs after a later stage", node.Name(), node.Kind())
		}
		last = order
	}
	return nil
}

// Run 依次执行各 Node，遇错即返回 *StageError（不做任何修复）。
func (p *Pipeline) Run(ctx context.Context, pctx *core.PredictContext) error {
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return &StageError{Node: node.Name(), Kind: node.Kind(), Err: err}
		}
		if err := node.Process(ctx, pctx); err != nil {
			return &StageError{Node: node.Name(), Kind: node.Kind(), Err: err}
		}
	}
	return nil
}

// StageError 标记失败发生在哪个 Node；errors.As 仍能取到内层的类型化错误。
type StageError struct {
	Node string
	Kind Kind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
