package feature

import (
	"fmt"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/pkg/dsl"
)

// DerivedFeature 是由原始字段计算得到、原始记录中不存在的特征。
// 实现必须是纯函数，且在 Inputs 全部存在时一定能算出结果。
type DerivedFeature interface {
	// Output 返回派生列名
	Output() string
	// Inputs 返回依赖的原始字段
	Inputs() []string
	// Compute 计算派生值；调用方保证 Inputs 均已存在。
	// 输入取值不可用（类型不符、表达式求值失败）时返回 *core.FeatureTypeError。
	Compute(rec core.Record) (core.Value, error)
}

// SumFeature 把若干数值字段相加，例如 Family_Size = SibSp + Parch。
// 全部为整数时结果为整数，否则为浮点。
type SumFeature struct {
	Name   string
	Fields []string
}

// FamilySize 是默认派生特征：同行兄弟姐妹/配偶数 + 同行父母/子女数
func FamilySize() *SumFeature {
	return &SumFeature{Name: "Family_Size", Fields: []string{"SibSp", "Parch"}}
}

func (f *SumFeature) Output() string   { return f.Name }
func (f *SumFeature) Inputs() []string { return f.Fields }

func (f *SumFeature) Compute(rec core.Record) (core.Value, error) {
	var (
		sum     float64
		isum    int64
		allInts = true
	)
	var mismatches []core.TypeMismatch
	for _, name := range f.Fields {
		v := rec[name]
		n, ok := v.Float64()
		if !ok {
			mismatches = append(mismatches, core.TypeMismatch{
				Field: name, Want: "numeric", Got: v.Kind().String(), Value: v.Key(), Derived: f.Name,
			})
			continue
		}
		sum += n
		if i, ok := v.Int64(); ok {
			isum += i
		} else {
			allInts = false
		}
	}
	if len(mismatches) > 0 {
		return core.Value{}, &core.FeatureTypeError{Mismatches: mismatches}
	}
	if allInts {
		return core.Int(isum), nil
	}
	return core.Float(sum), nil
}

// ExprFeature 用 CEL 表达式计算派生特征，例如：
//
//	IsAlone: SibSp + Parch == 0 ? 1 : 0
type ExprFeature struct {
	Name string
	expr *dsl.Expr
}

// NewExprFeature 编译表达式；inputs 为表达式引用的字段。
func NewExprFeature(name, expression string, inputs []string) (*ExprFeature, error) {
	if name == "" {
		return nil, fmt.Errorf("derived feature name is required")
	}
	expr, err := dsl.Compile(expression, inputs)
	if err != nil {
		return nil, fmt.Errorf("derived feature %s: %w", name, err)
	}
	return &ExprFeature{Name: name, expr: expr}, nil
}

func (f *ExprFeature) Output() string   { return f.Name }
func (f *ExprFeature) Inputs() []string { return f.expr.Inputs() }

func (f *ExprFeature) Compute(rec core.Record) (core.Value, error) {
	vars := make(map[string]any, len(f.expr.Inputs()))
	for _, name := range f.expr.Inputs() {
		vars[name] = rec[name].Native()
	}
	out, err := f.expr.Eval(vars)
	if err == nil {
		var v core.Value
		if v, err = core.ValueOf(out); err == nil {
			// CEL 的 double 结果保持浮点语义
			if f64, ok := out.(float64); ok {
				return core.Float(f64), nil
			}
			return v, nil
		}
	}
	// 表达式本身在编译期已检查，运行期失败只可能来自输入取值
	mismatches := make([]core.TypeMismatch, 0, len(f.expr.Inputs()))
	for _, name := range f.expr.Inputs() {
		v := rec[name]
		mismatches = append(mismatches, core.TypeMismatch{
			Field: name, Got: v.Kind().String(), Value: v.Key(), Derived: f.Name, Reason: err.Error(),
		})
	}
	return core.Value{}, &core.FeatureTypeError{Mismatches: mismatches}
}

// missingInputs 返回派生特征缺失的输入字段
func missingInputs(f DerivedFeature, rec core.Record) []string {
	var missing []string
	for _, name := range f.Inputs() {
		if !rec.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
