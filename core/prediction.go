package core

import (
	"fmt"
	"time"

	"github.com/rushteam/survkit/pkg/utils"
)

// ColumnContract 是模型声明的输入列契约（有序）。
// 由 model.Artifact 实现；feature 包只依赖此接口，避免循环依赖。
type ColumnContract interface {
	ExpectedColumns() []string
}

// KindContract 是 ColumnContract 的可选扩展：声明哪些输入列是类别列。
// 其余列必须是数值；对齐阶段据此检查每个位置的取值类型。
type KindContract interface {
	ColumnContract
	Categorical(column string) bool
}

// AlignedFeatureVector 是按模型 expected_columns 顺序排列的一行输入。
// 每次请求新建，推理后丢弃。
type AlignedFeatureVector struct {
	Columns []string
	Values  []Value
}

// Len 返回列数
func (v *AlignedFeatureVector) Len() int { return len(v.Values) }

// Get 按列名取值
func (v *AlignedFeatureVector) Get(column string) (Value, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return Value{}, false
}

// ProbabilitySource 标记概率的来源分支
type ProbabilitySource string

const (
	SourceNative     ProbabilitySource = "native"     // 模型原生概率
	SourceVote       ProbabilitySource = "vote"       // 集成子模型投票
	SourceDegenerate ProbabilitySource = "degenerate" // 退化概率 1.0 / 0.0，仅标签可信
)

// Outcome 是推理引擎的输出
type Outcome struct {
	Label       int
	ProbDie     float64
	ProbSurvive float64
	Source      ProbabilitySource
}

// Max 返回胜出类别的概率
func (o Outcome) Max() float64 {
	if o.ProbDie > o.ProbSurvive {
		return o.ProbDie
	}
	return o.ProbSurvive
}

// Tier 是置信度档位，数值越大越可信
type Tier int

const (
	TierVeryLow Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierVeryHigh
)

var tierNames = map[Tier]string{
	TierVeryLow:  "VeryLow",
	TierLow:      "Low",
	TierMedium:   "Medium",
	TierHigh:     "High",
	TierVeryHigh: "VeryHigh",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier 解析档位名（VeryHigh / High / Medium / Low / VeryLow）
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierVeryLow, fmt.Errorf("unknown confidence tier %q", s)
}

// MarshalText 输出档位名
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText 解析档位名
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PredictionResult 是一次推理的最终结果，ID 由 predictor 分配后不再修改。
type PredictionResult struct {
	ID          string                 `json:"id"`
	Subject     string                 `json:"name"`
	Label       int                    `json:"label"`
	Survived    bool                   `json:"survived"`
	ProbDie     float64                `json:"prob_die"`
	ProbSurvive float64                `json:"prob_survive"`
	Tier        Tier                   `json:"confidence"`
	Source      ProbabilitySource      `json:"source"`
	Degraded    bool                   `json:"degraded"`
	Message     string                 `json:"message"`
	Labels      map[string]utils.Label `json:"labels,omitempty"`
}

// BuildMessage 根据标签和主体标识生成确定性的说明文案
func BuildMessage(subject string, label int) string {
	if subject == "" {
		subject = "The passenger"
	}
	if label == 1 {
		return subject + " would likely survive."
	}
	return subject + " would likely not survive."
}

// PredictContext 承载一次 validate → align → infer → score 调用的中间状态，贯穿整个 Pipeline。
// 每次请求独立创建，不在请求间共享。
type PredictContext struct {
	Subject string
	Record  Record

	Vector  *AlignedFeatureVector
	Outcome *Outcome
	Tier    Tier
	Scored  bool

	// Labels 记录各阶段的解释信息（模型名、能力、概率来源等）
	Labels map[string]utils.Label
}

// NewPredictContext 创建请求上下文
func NewPredictContext(subject string, rec Record) *PredictContext {
	return &PredictContext{
		Subject: subject,
		Record:  rec,
		Labels:  make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；同名 key 按默认 Merge 规则累积。
func (pc *PredictContext) PutLabel(key string, lbl utils.Label) {
	if pc.Labels == nil {
		pc.Labels = make(map[string]utils.Label)
	}
	if old, ok := pc.Labels[key]; ok {
		pc.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	pc.Labels[key] = lbl
}

// Result 由完整跑完的上下文构建最终结果
func (pc *PredictContext) Result() (*PredictionResult, error) {
	if pc.Outcome == nil || !pc.Scored {
		return nil, fmt.Errorf("prediction incomplete: outcome=%v scored=%v", pc.Outcome != nil, pc.Scored)
	}
	labels := make(map[string]utils.Label, len(pc.Labels))
	for k, v := range pc.Labels {
		labels[k] = v
	}
	o := pc.Outcome
	return &PredictionResult{
		Subject:     pc.Subject,
		Label:       o.Label,
		Survived:    o.Label == 1,
		ProbDie:     o.ProbDie,
		ProbSurvive: o.ProbSurvive,
		Tier:        pc.Tier,
		Source:      o.Source,
		Degraded:    o.Source == SourceDegenerate,
		Message:     BuildMessage(pc.Subject, o.Label),
		Labels:      labels,
	}, nil
}

// HistoryEntry 是一条历史预测记录：结果 + 原始识别字段
type HistoryEntry struct {
	ID        string            `json:"id"`
	Subject   string            `json:"subject"`
	Record    Record            `json:"record"`
	Result    *PredictionResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}
