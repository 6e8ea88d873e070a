package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/rushteam/survkit/pkg/conv"
)

// ValueKind 标记字段值的语义类型（数值 / 类别）。
type ValueKind int

const (
	KindInt      ValueKind = iota + 1 // 整数
	KindFloat                         // 浮点数
	KindCategory                      // 类别字符串
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

// IsNumeric 是否为数值类型
func (k ValueKind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Value 是记录中单个字段的值，带类型标签。零值表示“无值”。
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Int 构造整数值
func Int(v int64) Value { return Value{kind: KindInt, num: float64(v)} }

// Float 构造浮点值
func Float(v float64) Value { return Value{kind: KindFloat, num: v} }

// Category 构造类别值
func Category(s string) Value { return Value{kind: KindCategory, str: s} }

func (v Value) Kind() ValueKind { return v.kind }

// IsZero 是否为未设置的值
func (v Value) IsZero() bool { return v.kind == 0 }

// Float64 返回数值；类别值返回 (0, false)。
func (v Value) Float64() (float64, bool) {
	if !v.kind.IsNumeric() {
		return 0, false
	}
	return v.num, true
}

// Int64 返回整数值；仅 KindInt 返回 true。
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return int64(v.num), true
}

// Str 返回类别字符串；仅 KindCategory 返回 true。
func (v Value) Str() (string, bool) {
	if v.kind != KindCategory {
		return "", false
	}
	return v.str, true
}

// Key 返回规范化字符串形式，用于类别表匹配与编码查找。
// 例如 Int(3) -> "3"，Float(100.5) -> "100.5"，Category("male") -> "male"。
func (v Value) Key() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindCategory:
		return v.str
	default:
		return ""
	}
}

// Native 返回 Go 原生值（int64 / float64 / string），供表达式求值、序列化使用。
func (v Value) Native() any {
	switch v.kind {
	case KindInt:
		return int64(v.num)
	case KindFloat:
		return v.num
	case KindCategory:
		return v.str
	default:
		return nil
	}
}

func (v Value) String() string { return v.Key() }

// MarshalJSON 按原生值输出
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(int64(v.num), 10)), nil
	case KindFloat:
		return []byte(strconv.FormatFloat(v.num, 'g', -1, 64)), nil
	case KindCategory:
		return []byte(strconv.Quote(v.str)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 解析原生 JSON 值，规则同 ValueOf
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = Value{}
		return nil
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf 把 any 转为 Value。
// 整数类型 -> KindInt；浮点且为整数值 -> KindInt（JSON 解码的数字都是 float64）；
// 其余浮点 -> KindFloat；string -> KindCategory；bool -> 0/1。
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return Category(val), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(int64(val)), nil
	}
	f, ok := conv.ToFloat64(v)
	if !ok {
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("non-finite value %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Int(int64(f)), nil
	}
	return Float(f), nil
}

// Record 即 PassengerRecord：字段名 -> 类型化值。
// 进入 Pipeline 后视为只读，需要派生字段时先 Clone。
type Record map[string]Value

// RecordFromMap 把 JSON 解码后的 map 转为 Record，nil 值被忽略。
func RecordFromMap(m map[string]any) (Record, error) {
	rec := make(Record, len(m))
	for k, raw := range m {
		if raw == nil {
			continue
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		rec[k] = v
	}
	return rec, nil
}

// Clone 浅拷贝（Value 本身是值类型）
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has 字段是否存在
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && !v.IsZero()
}

// Keys 返回排序后的字段名
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap 转回原生 map，用于持久化
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Native()
	}
	return out
}
