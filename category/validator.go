package category

import (
	"context"
	"sort"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/pkg/utils"
)

// Validator 校验记录中的类别字段。
// 只检查同时出现在记录与类别表中的字段；表外字段直接放行（兼容 schema 演进）。
// 纯函数，无副作用，可并发调用。
type Validator struct {
	Tables *Tables
}

// NewValidator 创建校验器；tables 为 nil 时使用内置表。
func NewValidator(tables *Tables) *Validator {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Validator{Tables: tables}
}

// Validate 校验单条记录。收集所有违规字段后一次性返回 *core.ValidationError。
func (v *Validator) Validate(rec core.Record) error {
	return v.ValidateAll(rec)
}

// ValidateAll 校验一批记录，同一字段的违规取值去重合并。
func (v *Validator) ValidateAll(records ...core.Record) error {
	offending := make(map[string]map[string]struct{})
	for _, rec := range records {
		for field, val := range rec {
			allowed, ok := v.Tables.Contains(field, val.Key())
			if !ok || allowed {
				continue
			}
			if offending[field] == nil {
				offending[field] = make(map[string]struct{})
			}
			offending[field][val.Key()] = struct{}{}
		}
	}
	if len(offending) == 0 {
		return nil
	}

	violations := make([]core.FieldViolation, 0, len(offending))
	for field, set := range offending {
		values := make([]string, 0, len(set))
		for val := range set {
			values = append(values, val)
		}
		sort.Strings(values)
		violations = append(violations, core.FieldViolation{Field: field, Values: values})
	}
	sort.Slice(violations, func(i, j int) bool {
		return violations[i].Field < violations[j].Field
	})
	return &core.ValidationError{Violations: violations}
}

// Node 把 Validator 接入 Pipeline。
// - 写入 labels：category_tables
type Node struct {
	Validator *Validator
}

func (n *Node) Name() string        { return "category.validate" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindValidate }

func (n *Node) Process(_ context.Context, pctx *core.PredictContext) error {
	if err := n.Validator.Validate(pctx.Record); err != nil {
		return err
	}
	pctx.PutLabel("category_tables", utils.Label{Value: n.Validator.Tables.Version(), Source: "validate"})
	return nil
}
