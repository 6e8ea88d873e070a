package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

type stubNode struct {
	name  string
	kind  Kind
	err   error
	calls *[]string
}

func (n *stubNode) Name() string { return n.name }
func (n *stubNode) Kind() Kind   { return n.kind }

func (n *stubNode) Process(context.Context, *core.PredictContext) error {
	*n.calls = append(*n.calls, n.name)
	return n.err
}

func TestPipeline_Check(t *testing.T) {
	var calls []string
	_, err := New(
		&stubNode{name: "a", kind: KindAlign, calls: &calls},
		&stubNode{name: "v", kind: KindValidate, calls: &calls},
	)
	assert.Error(t, err, "validate after align")

	_, err = New(&stubNode{name: "x", kind: "rank", calls: &calls})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestPipeline_RunStopsAtFirstError(t *testing.T) {
	var calls []string
	missing := &core.MissingFeatureError{Columns: []string{"Fare"}}
	p, err := New(
		&stubNode{name: "validate", kind: KindValidate, calls: &calls},
		&stubNode{name: "align", kind: KindAlign, err: missing, calls: &calls},
		&stubNode{name: "infer", kind: KindInfer, calls: &calls},
	)
	require.NoError(t, err)

	err = p.Run(context.Background(), core.NewPredictContext("", nil))
	assert.Equal(t, []string{"validate", "align"}, calls)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "align", se.Node)
	assert.Equal(t, KindAlign, se.Kind)

	var mf *core.MissingFeatureError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"Fare"}, mf.Columns)
}

func TestPipeline_RunCanceled(t *testing.T) {
	var calls []string
	p, err := New(&stubNode{name: "validate", kind: KindValidate, calls: &calls})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Run(ctx, core.NewPredictContext("", nil))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, calls)
}
