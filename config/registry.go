package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/survkit/feature"
)

// 使用配置驱动的派生特征时，需在 main 或入口处 import _ "github.com/rushteam/survkit/config/builders"
// 以触发内置构建器（sum、expr）的 init 注册。

// FeatureBuilder 根据 FeatureConfig 构建派生特征。
// 各实现在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type FeatureBuilder func(cfg FeatureConfig) (feature.DerivedFeature, error)

var (
	defaultBuilders   = make(map[string]FeatureBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种派生特征的构建逻辑。
// 建议在 init 中调用，例如：func init() { config.Register("sum", BuildSumFeature) }
func Register(typeName string, builder FeatureBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// BuildFeatures 按配置顺序构建派生特征；未注册的类型返回包含已支持列表的错误。
func BuildFeatures(cfgs []FeatureConfig) ([]feature.DerivedFeature, error) {
	out := make([]feature.DerivedFeature, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))
	for _, fc := range cfgs {
		if _, dup := seen[fc.Name]; dup {
			return nil, fmt.Errorf("derived feature %q defined twice", fc.Name)
		}
		seen[fc.Name] = struct{}{}

		defaultBuildersMu.RLock()
		builder, ok := defaultBuilders[fc.Type]
		defaultBuildersMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("derived feature %s: unsupported type %q (supported: %v)", fc.Name, fc.Type, SupportedTypes())
		}
		f, err := builder(fc)
		if err != nil {
			return nil, fmt.Errorf("derived feature %s: %w", fc.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}
