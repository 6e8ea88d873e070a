package feature

import (
	"fmt"
	"sort"

	"github.com/rushteam/survkit/core"
)

// Encoder 是类别特征编码器接口。
// 所有编码都需要特征名才能正确编码（因为需要通过特征名查找对应的配置）。
type Encoder interface {
	// Columns 返回此编码器负责的列
	Columns() []string
	// OutputNames 返回某列编码后产生的特征名
	OutputNames(column string) []string
	// EncodeWithKey 编码单个值；未知类别返回错误（模型训练时没见过该取值）。
	EncodeWithKey(key string, value core.Value) (map[string]float64, error)
}

// UnknownCategoryError 编码时遇到训练期未出现的类别
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for column %s", e.Value, e.Column)
}

// LabelEncoder Label 编码（标签编码）
// 将类别映射为整数（0, 1, 2, ...），列名保持不变。
type LabelEncoder struct {
	LabelMap map[string]map[string]int // 每个特征名对应的类别到整数的映射
}

// NewLabelEncoder 创建 Label 编码器
func NewLabelEncoder(labelMap map[string]map[string]int) *LabelEncoder {
	return &LabelEncoder{
		LabelMap: labelMap,
	}
}

func (e *LabelEncoder) Columns() []string {
	cols := make([]string, 0, len(e.LabelMap))
	for k := range e.LabelMap {
		cols = append(cols, k)
	}
	return cols
}

func (e *LabelEncoder) OutputNames(column string) []string { return []string{column} }

// EncodeWithKey 编码单个值（指定特征名）
func (e *LabelEncoder) EncodeWithKey(key string, value core.Value) (map[string]float64, error) {
	labelMap, ok := e.LabelMap[key]
	if !ok {
		return nil, fmt.Errorf("label encoder: no mapping for column %s", key)
	}
	label, ok := labelMap[value.Key()]
	if !ok {
		return nil, &UnknownCategoryError{Column: key, Value: value.Key()}
	}
	return map[string]float64{key: float64(label)}, nil
}

// OneHotEncoder One-Hot 编码（独热编码）
// 将类别特征转换为二进制向量，每个类别对应一个维度，维度名为 <列名>_<类别>。
type OneHotEncoder struct {
	Categories map[string][]string // 每个特征名对应的类别列表
}

// NewOneHotEncoder 创建 One-Hot 编码器
func NewOneHotEncoder(categories map[string][]string) *OneHotEncoder {
	return &OneHotEncoder{
		Categories: categories,
	}
}

func (e *OneHotEncoder) Columns() []string {
	cols := make([]string, 0, len(e.Categories))
	for k := range e.Categories {
		cols = append(cols, k)
	}
	return cols
}

func (e *OneHotEncoder) OutputNames(column string) []string {
	names := make([]string, 0, len(e.Categories[column]))
	for _, cat := range e.Categories[column] {
		names = append(names, column+"_"+cat)
	}
	return names
}

// EncodeWithKey 编码单个值（指定特征名）
func (e *OneHotEncoder) EncodeWithKey(key string, value core.Value) (map[string]float64, error) {
	categories, ok := e.Categories[key]
	if !ok {
		return nil, fmt.Errorf("onehot encoder: no categories for column %s", key)
	}

	valStr := value.Key()
	encoded := make(map[string]float64, len(categories))
	hit := false
	for _, cat := range categories {
		name := key + "_" + cat
		if cat == valStr {
			encoded[name] = 1.0
			hit = true
		} else {
			encoded[name] = 0.0
		}
	}
	if !hit {
		return nil, &UnknownCategoryError{Column: key, Value: valStr}
	}
	return encoded, nil
}

// VectorEncoder 把对齐后的特征向量转为模型可消费的数值特征。
// 有编码器的列按编码器展开；其余列必须是数值，原样透传。
type VectorEncoder struct {
	byColumn map[string]Encoder
}

// NewVectorEncoder 组合多个编码器；同一列不能被两个编码器认领。
func NewVectorEncoder(encoders ...Encoder) (*VectorEncoder, error) {
	byColumn := make(map[string]Encoder)
	for _, enc := range encoders {
		if enc == nil {
			continue
		}
		for _, col := range enc.Columns() {
			if _, dup := byColumn[col]; dup {
				return nil, fmt.Errorf("column %s has more than one encoder", col)
			}
			byColumn[col] = enc
		}
	}
	return &VectorEncoder{byColumn: byColumn}, nil
}

// Columns 返回所有被编码器认领的列（已排序）
func (e *VectorEncoder) Columns() []string {
	cols := make([]string, 0, len(e.byColumn))
	for col := range e.byColumn {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// Handles 该列是否由编码器处理
func (e *VectorEncoder) Handles(column string) bool {
	_, ok := e.byColumn[column]
	return ok
}

// OutputNames 返回按列顺序展开后的全部特征名
func (e *VectorEncoder) OutputNames(columns []string) []string {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		if enc, ok := e.byColumn[col]; ok {
			names = append(names, enc.OutputNames(col)...)
			continue
		}
		names = append(names, col)
	}
	return names
}

// Encode 编码整行
func (e *VectorEncoder) Encode(vec *core.AlignedFeatureVector) (map[string]float64, error) {
	out := make(map[string]float64, vec.Len())
	for i, col := range vec.Columns {
		v := vec.Values[i]
		if enc, ok := e.byColumn[col]; ok {
			encoded, err := enc.EncodeWithKey(col, v)
			if err != nil {
				return nil, err
			}
			for k, f := range encoded {
				out[k] = f
			}
			continue
		}
		f, ok := v.Float64()
		if !ok {
			return nil, fmt.Errorf("column %s: %s value %q has no encoder", col, v.Kind(), v.Key())
		}
		out[col] = f
	}
	return out, nil
}
