package model

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

func TestLogisticModel(t *testing.T) {
	m := &LogisticModel{ID: "lr", Bias: 0, Weights: map[string]float64{"x": 1}}

	p, err := m.PredictProba(context.Background(), Features{"x": 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p[1], 1e-12)

	label, err := m.Predict(context.Background(), Features{"x": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label, "ties resolve to class 0")

	label, err = m.Predict(context.Background(), Features{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	_, err = m.Predict(context.Background(), Features{"y": 1})
	assert.Error(t, err)
}

func simpleTree(withProba bool) []TreeNode {
	leaf := func(label int, p0, p1 float64) TreeNode {
		n := TreeNode{Leaf: true, Label: label}
		if withProba {
			n.Proba = &[2]float64{p0, p1}
		}
		return n
	}
	return []TreeNode{
		{Feature: "Sex", Threshold: 0.5, Left: 1, Right: 2},
		leaf(0, 0.8, 0.2),
		leaf(1, 0.1, 0.9),
	}
}

func TestDecisionTree(t *testing.T) {
	tree, err := NewDecisionTree("t", simpleTree(true))
	require.NoError(t, err)
	assert.True(t, tree.HasProbability())
	assert.Equal(t, []string{"Sex"}, tree.ReferencedFeatures())

	label, err := tree.Predict(context.Background(), Features{"Sex": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	p, err := tree.PredictProba(context.Background(), Features{"Sex": 0})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.8, 0.2}, p)

	bare, err := NewDecisionTree("bare", simpleTree(false))
	require.NoError(t, err)
	assert.False(t, bare.HasProbability())
	assert.Equal(t, LabelOnly, ResolveCapability(bare))
	_, err = bare.PredictProba(context.Background(), Features{"Sex": 0})
	assert.Error(t, err)
}

func TestNewDecisionTree_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		nodes []TreeNode
	}{
		{"empty", nil},
		{"backward child", []TreeNode{
			{Feature: "a", Left: 0, Right: 1},
			{Leaf: true},
		}},
		{"child out of range", []TreeNode{
			{Feature: "a", Left: 1, Right: 5},
			{Leaf: true},
		}},
		{"non binary leaf", []TreeNode{{Leaf: true, Label: 2}}},
		{"split without feature", []TreeNode{
			{Left: 1, Right: 2}, {Leaf: true}, {Leaf: true},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecisionTree("bad", tt.nodes)
			assert.Error(t, err)
		})
	}
}

type constClassifier struct {
	name  string
	label int
	err   error
}

func (c *constClassifier) Name() string { return c.name }
func (c *constClassifier) Predict(context.Context, Features) (int, error) {
	return c.label, c.err
}

func TestVotingModel_Hard(t *testing.T) {
	members := []Classifier{
		&constClassifier{name: "a", label: 1},
		&constClassifier{name: "b", label: 0},
		&constClassifier{name: "c", label: 0},
	}
	v, err := NewVotingModel("v", VotingHard, members, nil)
	require.NoError(t, err)
	assert.Equal(t, VotingEnsemble, ResolveCapability(v))

	label, err := v.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, label)

	weighted, err := NewVotingModel("w", VotingHard, members, []float64{3, 1, 1})
	require.NoError(t, err)
	label, err = weighted.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	_, err = v.PredictProba(context.Background(), nil)
	assert.Error(t, err)

	broken, err := NewVotingModel("x", VotingHard, []Classifier{&constClassifier{name: "e", err: errors.New("boom")}}, nil)
	require.NoError(t, err)
	_, err = broken.Predict(context.Background(), nil)
	assert.Error(t, err)
}

func TestVotingModel_Soft(t *testing.T) {
	lr := &LogisticModel{ID: "lr", Weights: map[string]float64{"Sex": 2}}
	tree, err := NewDecisionTree("t", simpleTree(true))
	require.NoError(t, err)

	v, err := NewVotingModel("soft", VotingSoft, []Classifier{lr, tree}, nil)
	require.NoError(t, err)
	assert.Equal(t, HasProbability, ResolveCapability(v))

	p, err := v.PredictProba(context.Background(), Features{"Sex": 1})
	require.NoError(t, err)
	want := (1/(1+math.Exp(-2)) + 0.9) / 2
	assert.InDelta(t, want, p[1], 1e-12)
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)

	_, err = NewVotingModel("bad", VotingSoft, []Classifier{&constClassifier{name: "c"}}, nil)
	assert.Error(t, err, "soft voting needs probabilistic members")
	_, err = NewVotingModel("bad", VotingHard, []Classifier{lr}, []float64{1, 2})
	assert.Error(t, err)
	_, err = NewVotingModel("bad", VotingHard, nil, nil)
	assert.Error(t, err)
}

func TestResolveCapability(t *testing.T) {
	assert.Equal(t, LabelOnly, ResolveCapability(&constClassifier{name: "c"}))
	assert.Equal(t, HasProbability, ResolveCapability(&LogisticModel{Weights: map[string]float64{"a": 1}}))
	assert.Equal(t, "voting_ensemble", VotingEnsemble.String())
}

func TestParseArtifact(t *testing.T) {
	tests := []struct {
		file       string
		name       string
		capability Capability
		members    int
	}{
		{"../testdata/artifacts/titanic_vote.json", "titanic-vote", VotingEnsemble, 3},
		{"../testdata/artifacts/titanic_soft.json", "titanic-soft", HasProbability, 2},
		{"../testdata/artifacts/titanic_label.json", "titanic-label", LabelOnly, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewFileLoader().Load(context.Background(), tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.name, a.Name())
			assert.Equal(t, "2024.05", a.Version())
			assert.Equal(t, tt.capability, a.Capability())
			assert.Len(t, a.Estimators(), tt.members)
			assert.Len(t, a.ExpectedColumns(), 12)
			assert.Equal(t, "Family_Size", a.ExpectedColumns()[11])
		})
	}
}

func TestParseArtifact_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"no estimator", `{"name":"x","expected_columns":["a"]}`},
		{"no columns", `{"name":"x","estimator":{"type":"logistic","weights":{"a":1}}}`},
		{"unknown type", `{"name":"x","expected_columns":["a"],"estimator":{"type":"svm"}}`},
		{"unknown feature", `{"name":"x","expected_columns":["a"],"estimator":{"type":"logistic","weights":{"b":1}}}`},
		{"encoder outside columns", `{"name":"x","expected_columns":["a"],
			"encoders":{"label":{"z":{"k":0}}},
			"estimator":{"type":"logistic","weights":{"a":1}}}`},
		{"duplicate encoder", `{"name":"x","expected_columns":["a"],
			"encoders":{"label":{"a":{"k":0}},"onehot":{"a":["k"]}},
			"estimator":{"type":"logistic","weights":{"a":1}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifact([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func exampleVector() *core.AlignedFeatureVector {
	return &core.AlignedFeatureVector{
		Columns: []string{
			"Pclass", "Sex", "Age", "SibSp", "Parch", "Fare", "Embarked",
			"Family_Size_Grouped", "Cabin_Assigned", "Name_Size", "TicketNumberCounts", "Family_Size",
		},
		Values: []core.Value{
			core.Int(1), core.Category("female"), core.Int(17), core.Int(1), core.Int(1), core.Int(100),
			core.Category("S"), core.Category("Medium"), core.Int(1), core.Int(3), core.Int(2), core.Int(2),
		},
	}
}

func TestArtifact_EncodeAndPredict(t *testing.T) {
	a, err := NewFileLoader().Load(context.Background(), "../testdata/artifacts/titanic_vote.json")
	require.NoError(t, err)

	features, err := a.Encode(exampleVector())
	require.NoError(t, err)
	assert.Equal(t, 1.0, features["Sex"])
	assert.Equal(t, 2.0, features["Family_Size_Grouped"])
	assert.Equal(t, 1.0, features["Embarked_S"])
	assert.Equal(t, 0.0, features["Embarked_C"])
	assert.Equal(t, 100.0, features["Fare"])
	assert.NotContains(t, features, "Embarked")

	label, err := a.Predict(context.Background(), exampleVector())
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	_, err = a.PredictProba(context.Background(), exampleVector())
	assert.Error(t, err, "hard voting exposes no predict_proba")

	vec := exampleVector()
	vec.Values[6] = core.Category("X")
	_, err = a.Predict(context.Background(), vec)
	assert.Error(t, err)

	short := &core.AlignedFeatureVector{Columns: []string{"Pclass"}, Values: []core.Value{core.Int(1)}}
	_, err = a.Encode(short)
	assert.Error(t, err)
}

func TestLoaders(t *testing.T) {
	data, err := os.ReadFile("../testdata/artifacts/titanic_soft.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artifact.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	a, err := Load(context.Background(), srv.URL+"/artifact.json")
	require.NoError(t, err)
	assert.Equal(t, "titanic-soft", a.Name())

	_, err = Load(context.Background(), srv.URL+"/missing")
	var loadErr *core.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, core.ErrorCodeModelLoad, core.GetDomainError(err).Code)

	_, err = Load(context.Background(), "file:///nonexistent/artifact.json")
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "/nonexistent/artifact.json", loadErr.Source)

	_, err = Load(context.Background(), "")
	assert.Error(t, err)
}

func TestRemoteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"labels":[1],"probabilities":[[0.3,0.7]]}`))
	}))
	defer srv.Close()

	m := NewRemoteModel("remote", srv.URL, 0)
	label, err := m.Predict(context.Background(), Features{"Sex": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	p, err := m.PredictProba(context.Background(), Features{"Sex": 1})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.3, 0.7}, p)
}

func TestRemoteModel_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	m := NewRemoteModel("remote", srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Predict(ctx, Features{"Sex": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "cancelled request does not wait for the client timeout")
}
