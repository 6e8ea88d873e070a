package model

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/feature"
)

// Artifact 是预训练模型制品：输入列契约 + 类别编码 + 分类器。
//
// 进程启动时加载一次，之后只读，可被任意多个推理调用并发共享。
// 能力标签（Capability）在构建时解析并缓存，推理期不再探测。
type Artifact struct {
	name       string
	columns    *feature.ColumnMetadata
	encoder    *feature.VectorEncoder
	root       Classifier
	capability Capability
}

// NewArtifact 组装制品并做加载期校验：
// 分类器引用的每个特征都必须能由 expected_columns 经编码得到。
func NewArtifact(name string, columns *feature.ColumnMetadata, encoder *feature.VectorEncoder, root Classifier) (*Artifact, error) {
	if columns == nil {
		return nil, fmt.Errorf("artifact %s: no column contract", name)
	}
	if root == nil {
		return nil, fmt.Errorf("artifact %s: no estimator", name)
	}
	if encoder == nil {
		encoder, _ = feature.NewVectorEncoder()
	}
	expected := make(map[string]struct{}, len(columns.Columns))
	for _, col := range columns.Columns {
		expected[col] = struct{}{}
	}
	for _, col := range encoder.Columns() {
		if _, ok := expected[col]; !ok {
			return nil, fmt.Errorf("artifact %s: encoder column %s is not an expected column", name, col)
		}
	}
	if r, ok := root.(featureReferencer); ok {
		available := make(map[string]struct{})
		for _, f := range encoder.OutputNames(columns.Columns) {
			available[f] = struct{}{}
		}
		for _, f := range r.ReferencedFeatures() {
			if _, ok := available[f]; !ok {
				return nil, fmt.Errorf("artifact %s: estimator references feature %q not produced by expected_columns", name, f)
			}
		}
	}
	return &Artifact{
		name:       name,
		columns:    columns,
		encoder:    encoder,
		root:       root,
		capability: ResolveCapability(root),
	}, nil
}

func (a *Artifact) Name() string    { return a.name }
func (a *Artifact) Version() string { return a.columns.ModelVersion }

// ExpectedColumns 返回输入列契约（副本，实现 core.ColumnContract）
func (a *Artifact) ExpectedColumns() []string { return a.columns.ExpectedColumns() }

// Categorical 该列是否由制品的类别编码器处理（实现 core.KindContract）
func (a *Artifact) Categorical(column string) bool { return a.encoder.Handles(column) }

// Capability 返回加载时解析出的能力标签
func (a *Artifact) Capability() Capability { return a.capability }

// Encode 按制品自身的预处理步骤把对齐向量转为数值特征
func (a *Artifact) Encode(vec *core.AlignedFeatureVector) (Features, error) {
	if vec.Len() != len(a.columns.Columns) {
		return nil, fmt.Errorf("vector has %d columns, artifact expects %d", vec.Len(), len(a.columns.Columns))
	}
	for i, col := range a.columns.Columns {
		if vec.Columns[i] != col {
			return nil, fmt.Errorf("vector column %d is %q, artifact expects %q", i, vec.Columns[i], col)
		}
	}
	return a.encoder.Encode(vec)
}

// Predict 返回标签 0/1
func (a *Artifact) Predict(ctx context.Context, vec *core.AlignedFeatureVector) (int, error) {
	features, err := a.Encode(vec)
	if err != nil {
		return 0, err
	}
	label, err := a.root.Predict(ctx, features)
	if err != nil {
		return 0, err
	}
	if label != 0 && label != 1 {
		return 0, fmt.Errorf("%s returned non-binary label %d", a.root.Name(), label)
	}
	return label, nil
}

// PredictProba 返回 [P(die), P(survive)]；仅 HasProbability 能力可用。
func (a *Artifact) PredictProba(ctx context.Context, vec *core.AlignedFeatureVector) ([2]float64, error) {
	if a.capability != HasProbability {
		return [2]float64{}, fmt.Errorf("artifact %s has no predict_proba (%s)", a.name, a.capability)
	}
	features, err := a.Encode(vec)
	if err != nil {
		return [2]float64{}, err
	}
	return a.root.(ProbabilisticClassifier).PredictProba(ctx, features)
}

// Estimators 返回集成的子模型（有序）；非集成返回 nil。
func (a *Artifact) Estimators() []Classifier {
	if e, ok := a.root.(Ensemble); ok {
		return e.Members()
	}
	return nil
}

// artifactFile 是制品 JSON 文件结构
type artifactFile struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	ExpectedColumns []string `json:"expected_columns"`
	Encoders        struct {
		Label  map[string]map[string]int `json:"label"`
		OneHot map[string][]string       `json:"onehot"`
	} `json:"encoders"`
	Estimator *estimatorSpec `json:"estimator"`
}

type estimatorSpec struct {
	Name string `json:"name"`
	Type string `json:"type"` // logistic / tree / voting / remote

	// logistic
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`

	// tree
	Nodes []TreeNode `json:"nodes"`

	// voting
	Voting        string           `json:"voting"`
	MemberWeights []float64        `json:"member_weights"`
	Estimators    []*estimatorSpec `json:"estimators"`

	// remote
	Endpoint  string `json:"endpoint"`
	TimeoutMS int    `json:"timeout_ms"`
}

// ParseArtifact 解析制品 JSON
func ParseArtifact(data []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if f.Estimator == nil {
		return nil, fmt.Errorf("artifact %s: estimator is required", f.Name)
	}
	columns, err := feature.NewColumnMetadata(f.Version, f.ExpectedColumns)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", f.Name, err)
	}

	var encoders []feature.Encoder
	if len(f.Encoders.Label) > 0 {
		encoders = append(encoders, feature.NewLabelEncoder(f.Encoders.Label))
	}
	if len(f.Encoders.OneHot) > 0 {
		encoders = append(encoders, feature.NewOneHotEncoder(f.Encoders.OneHot))
	}
	encoder, err := feature.NewVectorEncoder(encoders...)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", f.Name, err)
	}

	root, err := buildEstimator(f.Estimator)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", f.Name, err)
	}
	return NewArtifact(f.Name, columns, encoder, root)
}

func buildEstimator(spec *estimatorSpec) (Classifier, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil estimator")
	}
	switch spec.Type {
	case "logistic":
		if len(spec.Weights) == 0 {
			return nil, fmt.Errorf("logistic %s: no weights", spec.Name)
		}
		return &LogisticModel{ID: spec.Name, Bias: spec.Bias, Weights: spec.Weights}, nil
	case "tree":
		return NewDecisionTree(spec.Name, spec.Nodes)
	case "voting":
		members := make([]Classifier, 0, len(spec.Estimators))
		for _, sub := range spec.Estimators {
			m, err := buildEstimator(sub)
			if err != nil {
				return nil, fmt.Errorf("voting %s: %w", spec.Name, err)
			}
			members = append(members, m)
		}
		mode := VotingMode(spec.Voting)
		if mode == "" {
			mode = VotingHard
		}
		return NewVotingModel(spec.Name, mode, members, spec.MemberWeights)
	case "remote":
		if spec.Endpoint == "" {
			return nil, fmt.Errorf("remote %s: endpoint is required", spec.Name)
		}
		return NewRemoteModel(spec.Name, spec.Endpoint, time.Duration(spec.TimeoutMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown estimator type %q", spec.Type)
	}
}
