package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - 校验错误：INVALID_CATEGORY
//   - 对齐错误：MISSING_FEATURE, FEATURE_TYPE
//   - 模型错误：MODEL_LOAD, INFERENCE
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "MISSING_FEATURE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "model"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Coder 由带有错误代码的类型化错误实现，便于在边界层统一映射。
type Coder interface {
	error
	DomainError() *DomainError
}

// IsDomainError 检查错误链中是否存在 DomainError 或 Coder
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var coder Coder
	if errors.As(err, &coder) {
		return coder.DomainError()
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound        = "NOT_FOUND"        // 资源不存在
	ErrorCodeNotSupported    = "NOT_SUPPORTED"    // 操作不支持
	ErrorCodeUnavailable     = "UNAVAILABLE"      // 服务不可用
	ErrorCodeInvalidInput    = "INVALID_INPUT"    // 输入无效
	ErrorCodeInternalError   = "INTERNAL_ERROR"   // 内部错误
	ErrorCodeInvalidCategory = "INVALID_CATEGORY" // 类别字段取值不在规范集合内
	ErrorCodeMissingFeature  = "MISSING_FEATURE"  // 记录无法投影到模型输入列
	ErrorCodeFeatureType     = "FEATURE_TYPE"     // 字段取值类型与输入列不符
	ErrorCodeModelLoad       = "MODEL_LOAD"       // 模型加载失败
	ErrorCodeInference       = "INFERENCE"        // 模型推理失败
)

// 模块名称常量
const (
	ModuleStore      = "store"      // 存储模块
	ModuleCategory   = "category"   // 类别校验
	ModuleFeature    = "feature"    // 特征对齐
	ModuleModel      = "model"      // 模型加载
	ModuleInference  = "inference"  // 推理
	ModuleConfidence = "confidence" // 置信度
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotSupported
	}
	return false
}

// FieldViolation 单个类别字段的违规取值
type FieldViolation struct {
	Field  string   `json:"field"`
	Values []string `json:"offending_values"`
}

// ValidationError 一个或多个类别字段取值不在规范集合内。
// 调用方修正输入后可重试，系统不会自动重试。
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s=%v", v.Field, v.Values))
	}
	return "invalid category values: " + strings.Join(parts, ", ")
}

func (e *ValidationError) DomainError() *DomainError {
	return NewDomainError(ModuleCategory, ErrorCodeInvalidCategory, e.Error())
}

// Fields 返回违规字段名（已排序）
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	sort.Strings(fields)
	return fields
}

// Violation 按字段名查找违规项
func (e *ValidationError) Violation(field string) (FieldViolation, bool) {
	for _, v := range e.Violations {
		if v.Field == field {
			return v, true
		}
	}
	return FieldViolation{}, false
}

// MissingFeatureError 记录无法投影到模型的 expected_columns。
// Columns 恰为 expected_columns − record.keys()（按契约顺序），调用方一次即可修正请求。
// BlockedInputs 记录因输入缺失而无法派生的列：派生列 -> 缺失的输入字段。
type MissingFeatureError struct {
	Columns       []string
	BlockedInputs map[string][]string
}

func (e *MissingFeatureError) Error() string {
	msg := "missing feature columns: " + strings.Join(e.Columns, ", ")
	if len(e.BlockedInputs) == 0 {
		return msg
	}
	derived := make([]string, 0, len(e.BlockedInputs))
	for col := range e.BlockedInputs {
		derived = append(derived, col)
	}
	sort.Strings(derived)
	parts := make([]string, 0, len(derived))
	for _, col := range derived {
		parts = append(parts, fmt.Sprintf("%s needs %s", col, strings.Join(e.BlockedInputs[col], ", ")))
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

func (e *MissingFeatureError) DomainError() *DomainError {
	return NewDomainError(ModuleFeature, ErrorCodeMissingFeature, e.Error())
}

// TypeMismatch 单个字段的取值类型不能作为模型或派生特征的输入
type TypeMismatch struct {
	Field   string `json:"field"`
	Want    string `json:"want,omitempty"` // numeric
	Got     string `json:"got"`
	Value   string `json:"value"`
	Derived string `json:"derived,omitempty"` // 非空时 Field 是该派生特征的输入
	Reason  string `json:"reason,omitempty"`
}

// FeatureTypeError 记录中的取值类型与模型输入契约不符，例如数值列收到类别值。
// 属于调用方输入错误，与 ValidationError 一样不会自动重试。
type FeatureTypeError struct {
	Mismatches []TypeMismatch
}

func (e *FeatureTypeError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		part := fmt.Sprintf("%s=%q (%s)", m.Field, m.Value, m.Got)
		if m.Want != "" {
			part += " want " + m.Want
		}
		if m.Derived != "" {
			part += " for " + m.Derived
		}
		if m.Reason != "" {
			part += ": " + m.Reason
		}
		parts = append(parts, part)
	}
	return "feature type mismatch: " + strings.Join(parts, ", ")
}

func (e *FeatureTypeError) DomainError() *DomainError {
	return NewDomainError(ModuleFeature, ErrorCodeFeatureType, e.Error())
}

// Fields 返回出错字段名（去重、排序）
func (e *FeatureTypeError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Mismatches))
	fields := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		if _, ok := seen[m.Field]; ok {
			continue
		}
		seen[m.Field] = struct{}{}
		fields = append(fields, m.Field)
	}
	sort.Strings(fields)
	return fields
}

// ModelLoadError 模型加载失败，进程不应对外服务。
type ModelLoadError struct {
	Source string
	Err    error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Source, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) DomainError() *DomainError {
	return NewDomainError(ModuleModel, ErrorCodeModelLoad, e.Error())
}

// InferenceError 模型本身在预测时报错。输入已通过校验，重试会得到同样结果。
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model %s predict: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) DomainError() *DomainError {
	return NewDomainError(ModuleInference, ErrorCodeInference, e.Error())
}
