// Package conv 提供数值转换和 slice 转换的小工具。
package conv

import (
	json "github.com/goccy/go-json"
)

// ToFloat64 将 any 转为 float64。
// 支持各宽度的有符号/无符号整数、float32/float64 和 json.Number；
// 不处理 bool 和 string，由调用方决定其语义。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}
