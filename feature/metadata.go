package feature

import (
	"fmt"

	"github.com/rushteam/survkit/core"
)

// ColumnMetadata 是模型训练时的输入列契约，对应 artifact 中的 expected_columns。
type ColumnMetadata struct {
	// Columns 特征列名列表（按顺序，顺序即模型输入位置）
	Columns []string `json:"expected_columns"`
	// ModelVersion 模型版本
	ModelVersion string `json:"version"`
}

// NewColumnMetadata 创建列契约，列名不能为空或重复。
func NewColumnMetadata(version string, columns []string) (*ColumnMetadata, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("expected_columns is empty")
	}
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("expected_columns[%d] is empty", i)
		}
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("expected_columns has duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &ColumnMetadata{Columns: cols, ModelVersion: version}, nil
}

// ExpectedColumns 返回列名副本（实现 core.ColumnContract）
func (m *ColumnMetadata) ExpectedColumns() []string {
	out := make([]string, len(m.Columns))
	copy(out, m.Columns)
	return out
}

// MissingColumns 返回记录中缺失的列（按契约顺序）
func (m *ColumnMetadata) MissingColumns(rec core.Record) []string {
	return missingColumns(m.Columns, rec)
}

// BuildVector 按契约顺序构建特征向量；调用方需先确认没有缺失列。
// 记录中多余的字段被丢弃。
func (m *ColumnMetadata) BuildVector(rec core.Record) *core.AlignedFeatureVector {
	return buildVector(m.Columns, rec)
}

func missingColumns(columns []string, rec core.Record) []string {
	var missing []string
	for _, col := range columns {
		if !rec.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func buildVector(columns []string, rec core.Record) *core.AlignedFeatureVector {
	vec := &core.AlignedFeatureVector{
		Columns: make([]string, len(columns)),
		Values:  make([]core.Value, len(columns)),
	}
	copy(vec.Columns, columns)
	for i, col := range columns {
		vec.Values[i] = rec[col]
	}
	return vec
}
