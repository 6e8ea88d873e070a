package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

var titanicColumns = []string{
	"Pclass", "Sex", "Age", "SibSp", "Parch", "Fare", "Embarked",
	"Family_Size_Grouped", "Cabin_Assigned", "Name_Size", "TicketNumberCounts", "Family_Size",
}

func titanicContract(t *testing.T) *ColumnMetadata {
	t.Helper()
	m, err := NewColumnMetadata("2024.05", titanicColumns)
	require.NoError(t, err)
	return m
}

func passenger() core.Record {
	return core.Record{
		"Pclass":              core.Int(1),
		"Sex":                 core.Category("female"),
		"Age":                 core.Int(17),
		"SibSp":               core.Int(1),
		"Parch":               core.Int(1),
		"Fare":                core.Float(100.0),
		"Embarked":            core.Category("S"),
		"Cabin_Assigned":      core.Int(1),
		"Name_Size":           core.Int(3),
		"TicketNumberCounts":  core.Int(2),
		"Family_Size_Grouped": core.Category("Medium"),
	}
}

func TestAligner_ComputesFamilySizeAndOrdersColumns(t *testing.T) {
	a := NewAligner()
	rec := passenger()
	rec["Title"] = core.Category("Miss")

	vec, err := a.Align(rec, titanicContract(t))
	require.NoError(t, err)

	assert.Equal(t, titanicColumns, vec.Columns)
	require.Equal(t, 12, vec.Len())
	fs, ok := vec.Get("Family_Size")
	require.True(t, ok)
	assert.Equal(t, core.Int(2), fs)
	assert.Equal(t, core.Category("Medium"), vec.Values[7])

	_, ok = vec.Get("Title")
	assert.False(t, ok, "extra fields are dropped")
	assert.False(t, rec.Has("Family_Size"), "input record is not modified")
}

func TestAligner_KeepsProvidedDerivedValue(t *testing.T) {
	rec := passenger()
	rec["Family_Size"] = core.Int(5)

	vec, err := NewAligner().Align(rec, titanicContract(t))
	require.NoError(t, err)
	fs, _ := vec.Get("Family_Size")
	assert.Equal(t, core.Int(5), fs)
}

func TestAligner_MissingFare(t *testing.T) {
	rec := passenger()
	delete(rec, "Fare")

	_, err := NewAligner().Align(rec, titanicContract(t))
	var mf *core.MissingFeatureError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"Fare"}, mf.Columns)
	assert.Equal(t, core.ErrorCodeMissingFeature, core.GetDomainError(err).Code)
}

func TestAligner_ReportsEveryMissingColumn(t *testing.T) {
	rec := passenger()
	delete(rec, "Fare")
	delete(rec, "Name_Size")
	delete(rec, "Parch")

	_, err := NewAligner().Align(rec, titanicContract(t))
	var mf *core.MissingFeatureError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"Parch", "Fare", "Name_Size", "Family_Size"}, mf.Columns)
	assert.Equal(t, map[string][]string{"Family_Size": {"Parch"}}, mf.BlockedInputs)
}

func TestAligner_MissingColumnsAreExactlyTheContractDifference(t *testing.T) {
	contract, err := NewColumnMetadata("x", []string{"Fare", "Family_Size"})
	require.NoError(t, err)
	rec := passenger()
	delete(rec, "Parch")

	_, err = NewAligner().Align(rec, contract)
	var mf *core.MissingFeatureError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"Family_Size"}, mf.Columns, "Parch is not an expected column")
	assert.Equal(t, map[string][]string{"Family_Size": {"Parch"}}, mf.BlockedInputs)
	assert.Contains(t, mf.Error(), "Family_Size needs Parch")
}

// kindContract 把 Sex、Embarked、Family_Size_Grouped 声明为类别列
type kindContract struct {
	*ColumnMetadata
}

func (kindContract) Categorical(column string) bool {
	switch column {
	case "Sex", "Embarked", "Family_Size_Grouped":
		return true
	}
	return false
}

func TestAligner_RejectsCategoryInNumericColumn(t *testing.T) {
	contract := kindContract{titanicContract(t)}
	rec := passenger()
	rec["Age"] = core.Category("old")
	rec["Fare"] = core.Category("cheap")

	_, err := NewAligner().Align(rec, contract)
	var te *core.FeatureTypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, []core.TypeMismatch{
		{Field: "Age", Want: "numeric", Got: "category", Value: "old"},
		{Field: "Fare", Want: "numeric", Got: "category", Value: "cheap"},
	}, te.Mismatches)
	assert.Equal(t, []string{"Age", "Fare"}, te.Fields())
	assert.Equal(t, core.ErrorCodeFeatureType, core.GetDomainError(err).Code)

	rec = passenger()
	rec["Family_Size_Grouped"] = core.Int(2)
	_, err = NewAligner().Align(rec, contract)
	assert.NoError(t, err, "categorical columns match by key")
}

func TestAligner_NonNumericDerivedInput(t *testing.T) {
	rec := passenger()
	rec["SibSp"] = core.Category("one")

	_, err := NewAligner().Align(rec, titanicContract(t))
	var te *core.FeatureTypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, []core.TypeMismatch{
		{Field: "SibSp", Want: "numeric", Got: "category", Value: "one", Derived: "Family_Size"},
	}, te.Mismatches)

	delete(rec, "Fare")
	_, err = NewAligner().Align(rec, titanicContract(t))
	var mf *core.MissingFeatureError
	require.ErrorAs(t, err, &mf, "missing columns are reported first")
	assert.Equal(t, []string{"Fare"}, mf.Columns)
}

func TestAligner_Deterministic(t *testing.T) {
	a := NewAligner()
	c := titanicContract(t)
	first, err := a.Align(passenger(), c)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := a.Align(passenger(), c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAligner_ExprFeature(t *testing.T) {
	isAlone, err := NewExprFeature("IsAlone", "SibSp + Parch == 0 ? 1 : 0", []string{"SibSp", "Parch"})
	require.NoError(t, err)
	farePer, err := NewExprFeature("Fare_Per_Person", "double(Fare) / double(SibSp + Parch + 1)", []string{"Fare", "SibSp", "Parch"})
	require.NoError(t, err)

	contract, err := NewColumnMetadata("x", []string{"IsAlone", "Fare_Per_Person", "Family_Size"})
	require.NoError(t, err)

	vec, err := NewAligner(FamilySize(), isAlone, farePer).Align(passenger(), contract)
	require.NoError(t, err)
	assert.Equal(t, core.Int(0), vec.Values[0])
	assert.Equal(t, core.Float(100.0/3), vec.Values[1])
	assert.Equal(t, core.Int(2), vec.Values[2])

	_, err = NewExprFeature("bad", "SibSp +", []string{"SibSp"})
	assert.Error(t, err)
}

func TestSumFeature(t *testing.T) {
	v, err := FamilySize().Compute(core.Record{"SibSp": core.Int(1), "Parch": core.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, core.Int(3), v)

	v, err = (&SumFeature{Name: "s", Fields: []string{"a", "b"}}).Compute(core.Record{"a": core.Float(0.5), "b": core.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, core.Float(1.5), v)

	_, err = FamilySize().Compute(core.Record{"SibSp": core.Category("one"), "Parch": core.Category("none")})
	var te *core.FeatureTypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, []string{"Parch", "SibSp"}, te.Fields())
}

func TestExprFeature_EvalFailureIsTyped(t *testing.T) {
	farePer, err := NewExprFeature("Fare_Per_Person", "double(Fare) / double(SibSp + 1)", []string{"Fare", "SibSp"})
	require.NoError(t, err)

	_, err = farePer.Compute(core.Record{"Fare": core.Float(10), "SibSp": core.Category("one")})
	var te *core.FeatureTypeError
	require.ErrorAs(t, err, &te)
	require.Len(t, te.Mismatches, 2)
	assert.Equal(t, "Fare_Per_Person", te.Mismatches[1].Derived)
	assert.Equal(t, "category", te.Mismatches[1].Got)
	assert.NotEmpty(t, te.Mismatches[1].Reason)
}

func TestNewColumnMetadata_Invalid(t *testing.T) {
	_, err := NewColumnMetadata("v", nil)
	assert.Error(t, err)
	_, err = NewColumnMetadata("v", []string{"a", "a"})
	assert.Error(t, err)
	_, err = NewColumnMetadata("v", []string{"a", ""})
	assert.Error(t, err)
}

func TestNode_Process(t *testing.T) {
	n := &Node{Aligner: NewAligner(), Contract: titanicContract(t)}
	pctx := core.NewPredictContext("Jane", passenger())
	require.NoError(t, n.Process(context.Background(), pctx))
	require.NotNil(t, pctx.Vector)
	assert.Equal(t, "Family_Size", pctx.Labels["derived_features"].Value)
}

func TestVectorEncoder(t *testing.T) {
	enc, err := NewVectorEncoder(
		NewLabelEncoder(map[string]map[string]int{"Sex": {"male": 0, "female": 1}}),
		NewOneHotEncoder(map[string][]string{"Embarked": {"C", "Q", "S"}}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Embarked", "Sex"}, enc.Columns())
	assert.Equal(t,
		[]string{"Pclass", "Sex", "Embarked_C", "Embarked_Q", "Embarked_S"},
		enc.OutputNames([]string{"Pclass", "Sex", "Embarked"}))

	vec := &core.AlignedFeatureVector{
		Columns: []string{"Pclass", "Sex", "Embarked"},
		Values:  []core.Value{core.Int(3), core.Category("male"), core.Category("Q")},
	}
	out, err := enc.Encode(vec)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"Pclass": 3, "Sex": 0, "Embarked_C": 0, "Embarked_Q": 1, "Embarked_S": 0,
	}, out)

	vec.Values[2] = core.Category("X")
	_, err = enc.Encode(vec)
	var unknown *UnknownCategoryError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Embarked", unknown.Column)

	vec.Values[2] = core.Category("S")
	vec.Values[0] = core.Category("first")
	_, err = enc.Encode(vec)
	assert.Error(t, err, "categorical value without encoder")
}
