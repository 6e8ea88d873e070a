// Package builders 注册内置的派生特征构建器。
package builders

import (
	"fmt"

	"github.com/rushteam/survkit/config"
	"github.com/rushteam/survkit/feature"
	"github.com/rushteam/survkit/pkg/conv"
)

func init() {
	config.Register("sum", BuildSumFeature)
	config.Register("expr", BuildExprFeature)
}

// BuildSumFeature 构建求和特征，例如 Family_Size = SibSp + Parch
func BuildSumFeature(cfg config.FeatureConfig) (feature.DerivedFeature, error) {
	fields := conv.ConvertSlice(cfg.Fields, nonEmpty)
	if len(fields) < 2 || len(fields) != len(cfg.Fields) {
		return nil, fmt.Errorf("sum needs at least two non-empty fields, got %v", cfg.Fields)
	}
	return &feature.SumFeature{Name: cfg.Name, Fields: fields}, nil
}

// BuildExprFeature 构建 CEL 表达式特征；fields 为表达式引用的字段
func BuildExprFeature(cfg config.FeatureConfig) (feature.DerivedFeature, error) {
	if cfg.Expr == "" {
		return nil, fmt.Errorf("expr is required")
	}
	f, err := feature.NewExprFeature(cfg.Name, cfg.Expr, cfg.Fields)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func nonEmpty(s string) (string, bool) { return s, s != "" }
