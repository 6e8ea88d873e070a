package category

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/survkit/core"
)

func validRecord() core.Record {
	return core.Record{
		"Pclass":              core.Int(1),
		"Sex":                 core.Category("female"),
		"Age":                 core.Int(17),
		"Embarked":            core.Category("S"),
		"Family_Size_Grouped": core.Category("Medium"),
		"Age_Cut":             core.Int(2),
		"Nickname":            core.Category("anything goes"),
	}
}

func TestValidator_Valid(t *testing.T) {
	v := NewValidator(nil)
	assert.NoError(t, v.Validate(validRecord()))
}

func TestValidator_InvalidEmbarked(t *testing.T) {
	v := NewValidator(nil)
	rec := validRecord()
	rec["Embarked"] = core.Category("X")

	err := v.Validate(rec)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Embarked"}, verr.Fields())

	viol, ok := verr.Violation("Embarked")
	require.True(t, ok)
	assert.Equal(t, []string{"X"}, viol.Values)
	assert.Equal(t, core.ErrorCodeInvalidCategory, core.GetDomainError(err).Code)
}

func TestValidator_CollectsAllFields(t *testing.T) {
	v := NewValidator(nil)
	rec := validRecord()
	rec["Sex"] = core.Category("F")
	rec["Embarked"] = core.Category("X")
	rec["Age_Cut"] = core.Int(9)

	err := v.Validate(rec)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Age_Cut", "Embarked", "Sex"}, verr.Fields())
}

func TestValidator_ValidateAllMergesValues(t *testing.T) {
	v := NewValidator(nil)
	a := validRecord()
	a["Embarked"] = core.Category("X")
	b := validRecord()
	b["Embarked"] = core.Category("Z")
	c := validRecord()
	c["Embarked"] = core.Category("X")

	err := v.ValidateAll(a, b, c)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	viol, ok := verr.Violation("Embarked")
	require.True(t, ok)
	assert.Equal(t, []string{"X", "Z"}, viol.Values)
}

func TestTables(t *testing.T) {
	tables, err := LoadTables("../testdata/tables.yaml")
	require.NoError(t, err)
	assert.Equal(t, "v2", tables.Version())

	allowed, ok := tables.Contains("Embarked", "Q")
	assert.True(t, ok)
	assert.True(t, allowed)

	_, ok = tables.Contains("Age_Cut", "1")
	assert.False(t, ok, "field not listed in file")

	values, ok := tables.Allowed("Sex")
	require.True(t, ok)
	values[0] = "mutated"
	again, _ := tables.Allowed("Sex")
	assert.Equal(t, "male", again[0])

	_, err = ParseTables([]byte("fields:\n  Sex: [male]\n"))
	assert.Error(t, err, "version is required")

	_, err = NewTables("v", map[string][]string{"Sex": {}})
	assert.Error(t, err)
}

func TestNode_Process(t *testing.T) {
	n := &Node{Validator: NewValidator(nil)}
	pctx := core.NewPredictContext("", validRecord())
	require.NoError(t, n.Process(context.Background(), pctx))
	assert.Equal(t, DefaultVersion, pctx.Labels["category_tables"].Value)

	bad := validRecord()
	bad["Sex"] = core.Int(1)
	assert.Error(t, n.Process(context.Background(), core.NewPredictContext("", bad)))
}
