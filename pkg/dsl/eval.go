package dsl

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
)

// Expr 是编译好的 CEL (Common Expression Language) 表达式，用于派生特征。
// CEL 类型安全、无副作用，cel.Program 可被多个 goroutine 并发求值。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：SibSp + Parch / Fare / 4.0
//   - 条件：SibSp + Parch == 0 ? "Alone" : "Family"
//   - 类型转换：double(Age) * 1.5
//
// 注意：CEL 不做 int/double 隐式转换，混合运算需显式使用 double()/int()。
type Expr struct {
	src    string
	inputs []string
	prg    cel.Program
}

// Compile 编译表达式。inputs 声明表达式可引用的变量（即记录字段名），
// 每个变量按 DynType 声明，运行时值为 int64 / float64 / string。
func Compile(src string, inputs []string) (*Expr, error) {
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	opts := make([]cel.EnvOption, 0, len(inputs))
	for _, name := range inputs {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("env error: %w", err)
	}

	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}

	sorted := make([]string, len(inputs))
	copy(sorted, inputs)
	sort.Strings(sorted)
	return &Expr{src: src, inputs: sorted, prg: prg}, nil
}

// Source 返回表达式原文
func (e *Expr) Source() string { return e.src }

// Inputs 返回声明的输入变量（排序后的副本）
func (e *Expr) Inputs() []string {
	out := make([]string, len(e.inputs))
	copy(out, e.inputs)
	return out
}

// Eval 求值，返回原生 Go 值（int64 / float64 / string / bool）。
func (e *Expr) Eval(vars map[string]any) (any, error) {
	out, _, err := e.prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("eval error: %v", err)
	}
	return out.Value(), nil
}

// EvalBool 求值并要求结果为布尔值
func (e *Expr) EvalBool(vars map[string]any) (bool, error) {
	v, err := e.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", v)
	}
	return b, nil
}
