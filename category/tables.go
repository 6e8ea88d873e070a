// Package category 实现类别字段校验：记录中的枚举字段取值必须落在规范集合内。
package category

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tables 是版本化的类别枚举表：字段名 -> 允许取值。
// 进程启动时加载一次，之后只读。
type Tables struct {
	version string
	fields  map[string]map[string]struct{}
	order   map[string][]string
}

// tablesFile 是 YAML 文件结构：
//
//	version: v2
//	fields:
//	  Sex: [male, female]
//	  Embarked: [C, Q, S]
type tablesFile struct {
	Version string              `yaml:"version"`
	Fields  map[string][]string `yaml:"fields"`
}

// NewTables 由字段 -> 取值列表构建类别表。空字段名或空取值列表视为配置错误。
func NewTables(version string, fields map[string][]string) (*Tables, error) {
	t := &Tables{
		version: version,
		fields:  make(map[string]map[string]struct{}, len(fields)),
		order:   make(map[string][]string, len(fields)),
	}
	for name, values := range fields {
		if name == "" {
			return nil, fmt.Errorf("category table %s: empty field name", version)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("category table %s: field %s has no allowed values", version, name)
		}
		set := make(map[string]struct{}, len(values))
		ordered := make([]string, 0, len(values))
		for _, v := range values {
			if _, dup := set[v]; dup {
				continue
			}
			set[v] = struct{}{}
			ordered = append(ordered, v)
		}
		t.fields[name] = set
		t.order[name] = ordered
	}
	return t, nil
}

// LoadTables 从 YAML 文件加载类别表
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables 解析 YAML 内容
func ParseTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("category table: version is required")
	}
	return NewTables(f.Version, f.Fields)
}

// Version 返回表版本
func (t *Tables) Version() string { return t.version }

// Allowed 返回字段的允许取值（副本，保持声明顺序）
func (t *Tables) Allowed(field string) ([]string, bool) {
	values, ok := t.order[field]
	if !ok {
		return nil, false
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, true
}

// Contains 判断取值是否在字段的允许集合内；ok=false 表示该字段没有枚举表。
func (t *Tables) Contains(field, value string) (allowed bool, ok bool) {
	set, ok := t.fields[field]
	if !ok {
		return false, false
	}
	_, allowed = set[value]
	return allowed, true
}

// Fields 返回已登记的字段名（排序）
func (t *Tables) Fields() []string {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultVersion 是内置类别表的版本号
const DefaultVersion = "v2"

// DefaultTables 返回内置类别表
func DefaultTables() *Tables {
	t, err := NewTables(DefaultVersion, map[string][]string{
		"Sex":                 {"male", "female"},
		"Embarked":            {"C", "Q", "S"},
		"Title":               {"Mr", "Miss", "Mrs", "Master", "Rare"},
		"TicketLocation":      {"Blank", "A/5", "A/4", "C.A.", "PC", "S.O.C.", "SOTON/O.Q.", "STON/O 2.", "W./C.", "Other"},
		"Family_Size_Grouped": {"Alone", "Small", "Medium", "Large"},
		"Age_Cut":             {"0", "1", "2", "3", "4", "5", "6", "7"},
		"Fare_Cut":            {"0", "1", "2", "3", "4", "5", "6", "7"},
		"Name_Length_Group":   {"0", "1", "2", "3"},
	})
	if err != nil {
		panic(err)
	}
	return t
}
