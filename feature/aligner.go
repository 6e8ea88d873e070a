package feature

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/pkg/utils"
)

// Aligner 把任意原始记录对齐到模型的输入契约。
//
// 步骤（顺序固定）：
//  1. 计算记录中不存在的派生特征（例如 Family_Size = SibSp + Parch）
//  2. 计算 expected_columns − record.keys()，非空则返回 *core.MissingFeatureError（列出全部缺失列）
//  3. 契约声明列类型时检查数值列，不符返回 *core.FeatureTypeError
//  4. 按 expected_columns 顺序投影，多余字段静默丢弃
//
// 输出列顺序是硬约束：越过此边界后模型不再感知列名。
type Aligner struct {
	Derived []DerivedFeature
}

// NewAligner 创建对齐器；不传派生特征时使用默认的 Family_Size。
func NewAligner(derived ...DerivedFeature) *Aligner {
	if len(derived) == 0 {
		derived = []DerivedFeature{FamilySize()}
	}
	return &Aligner{Derived: derived}
}

// Align 对齐单条记录。rec 不会被修改。
//
// contract 实现 core.KindContract 时，非类别列的取值必须是数值，
// 否则返回 *core.FeatureTypeError；派生特征的输入取值不可用时同样如此。
// 缺失列优先于类型错误报告。
func (a *Aligner) Align(rec core.Record, contract core.ColumnContract) (*core.AlignedFeatureVector, error) {
	columns := contract.ExpectedColumns()
	work := rec.Clone()

	// derived 输出列 -> 因输入缺失而无法计算时缺失的输入
	blocked := make(map[string][]string)
	// 因输入取值不可用而无法计算的 derived 输出列
	untyped := make(map[string]struct{})
	var mismatches []core.TypeMismatch
	for _, d := range a.Derived {
		if work.Has(d.Output()) {
			continue
		}
		if missing := missingInputs(d, work); len(missing) > 0 {
			blocked[d.Output()] = missing
			continue
		}
		v, err := d.Compute(work)
		if err != nil {
			var te *core.FeatureTypeError
			if !errors.As(err, &te) {
				return nil, err
			}
			untyped[d.Output()] = struct{}{}
			mismatches = append(mismatches, te.Mismatches...)
			continue
		}
		work[d.Output()] = v
	}

	missing := missingColumns(columns, work)
	if len(missing) > 0 {
		cols := make([]string, 0, len(missing))
		causes := make(map[string][]string)
		for _, col := range missing {
			if _, ok := untyped[col]; ok {
				continue
			}
			cols = append(cols, col)
			if in, ok := blocked[col]; ok {
				causes[col] = in
			}
		}
		if len(cols) > 0 {
			if len(causes) == 0 {
				causes = nil
			}
			return nil, &core.MissingFeatureError{Columns: cols, BlockedInputs: causes}
		}
	}

	if kc, ok := contract.(core.KindContract); ok {
		mismatches = append(mismatches, kindMismatches(columns, work, kc)...)
	}
	if len(mismatches) > 0 {
		return nil, &core.FeatureTypeError{Mismatches: mismatches}
	}
	return buildVector(columns, work), nil
}

// kindMismatches 列出非类别列中取值不是数值的位置
func kindMismatches(columns []string, rec core.Record, kc core.KindContract) []core.TypeMismatch {
	var out []core.TypeMismatch
	for _, col := range columns {
		if kc.Categorical(col) {
			continue
		}
		v := rec[col]
		if _, ok := v.Float64(); ok {
			continue
		}
		out = append(out, core.TypeMismatch{Field: col, Want: "numeric", Got: v.Kind().String(), Value: v.Key()})
	}
	return out
}

// Node 把 Aligner 接入 Pipeline。
// - 写入 labels：derived_features
type Node struct {
	Aligner  *Aligner
	Contract core.ColumnContract
}

func (n *Node) Name() string        { return "feature.align" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindAlign }

func (n *Node) Process(_ context.Context, pctx *core.PredictContext) error {
	if n.Contract == nil {
		return fmt.Errorf("feature.align: no column contract")
	}
	vec, err := n.Aligner.Align(pctx.Record, n.Contract)
	if err != nil {
		return err
	}
	pctx.Vector = vec

	names := make([]string, 0, len(n.Aligner.Derived))
	for _, d := range n.Aligner.Derived {
		if _, used := vec.Get(d.Output()); used && !pctx.Record.Has(d.Output()) {
			names = append(names, d.Output())
		}
	}
	if len(names) > 0 {
		pctx.PutLabel("derived_features", utils.Label{Value: strings.Join(names, ","), Source: "align"})
	}
	return nil
}
