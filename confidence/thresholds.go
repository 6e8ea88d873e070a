// Package confidence 把胜出概率映射为有序的置信度档位。
package confidence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/survkit/core"
)

// Threshold 是一个档位的下界（闭区间：m >= Min 即命中）
type Threshold struct {
	Tier core.Tier `yaml:"tier"`
	Min  float64   `yaml:"min"`
}

// Table 是版本化的阈值表，按 Min 严格递减排列。
// 低于最后一档的概率落入 VeryLow，VeryLow 本身不出现在表中。
type Table struct {
	Version    string      `yaml:"version"`
	Thresholds []Threshold `yaml:"thresholds"`
}

// DefaultVersion 是内置阈值表的版本号
const DefaultVersion = "v1"

// DefaultTable 返回内置阈值表：0.90 / 0.80 / 0.70 / 0.60
func DefaultTable() Table {
	return Table{
		Version: DefaultVersion,
		Thresholds: []Threshold{
			{Tier: core.TierVeryHigh, Min: 0.90},
			{Tier: core.TierHigh, Min: 0.80},
			{Tier: core.TierMedium, Min: 0.70},
			{Tier: core.TierLow, Min: 0.60},
		},
	}
}

// Validate 校验阈值表：下界在 [0,1] 内且严格递减，档位严格递减且不含 VeryLow。
func (t Table) Validate() error {
	if len(t.Thresholds) == 0 {
		return fmt.Errorf("threshold table %s: empty", t.Version)
	}
	for i, th := range t.Thresholds {
		if th.Min < 0 || th.Min > 1 {
			return fmt.Errorf("threshold table %s: %s min %v outside [0,1]", t.Version, th.Tier, th.Min)
		}
		if th.Tier <= core.TierVeryLow || th.Tier > core.TierVeryHigh {
			return fmt.Errorf("threshold table %s: tier %s cannot have a threshold", t.Version, th.Tier)
		}
		if i == 0 {
			continue
		}
		prev := t.Thresholds[i-1]
		if th.Min >= prev.Min {
			return fmt.Errorf("threshold table %s: %s min %v not below %s min %v", t.Version, th.Tier, th.Min, prev.Tier, prev.Min)
		}
		if th.Tier >= prev.Tier {
			return fmt.Errorf("threshold table %s: tier %s listed after %s", t.Version, th.Tier, prev.Tier)
		}
	}
	return nil
}

// LoadTable 从 YAML 文件加载阈值表
//
//	version: v1
//	thresholds:
//	  - {tier: VeryHigh, min: 0.90}
//	  - {tier: High, min: 0.80}
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable 解析并校验 YAML 阈值表
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse yaml: %w", err)
	}
	if t.Version == "" {
		return Table{}, fmt.Errorf("threshold table: version is required")
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}
