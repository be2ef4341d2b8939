package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseValueKeys(t *testing.T) {
	tests := []struct {
		name   string
		raw    *string
		typ    VariableType
		want   string
		wantOk bool
	}{
		{"string", strPtr("bar"), VarString, "bar", true},
		{"boolean", strPtr("true"), VarBoolean, "true", true},
		{"long", strPtr("42"), VarLong, "42", true},
		{"integral double keeps fraction", strPtr("1"), VarDouble, "1.0", true},
		{"double", strPtr("2.5"), VarDouble, "2.5", true},
		{"date normalized to utc", strPtr("2024-03-01T10:00:00+02:00"), VarDate, "2024-03-01T08:00:00Z", true},
		{"null", nil, VarString, "", false},
		{"unparsable number", strPtr("abc"), VarLong, "", false},
		{"unknown type", strPtr("x"), VariableType("Object"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParseValue(tt.raw, tt.typ)
			assert.Equal(t, tt.wantOk, ok)
			if ok {
				assert.Equal(t, tt.want, v.Key())
			}
		})
	}
}

func TestTypedVariableRequiresDeclaredType(t *testing.T) {
	inst := &Instance{Variables: []Variable{{Name: "amount", Type: VarString, Value: strPtr("10")}}}

	_, ok := inst.TypedVariable(VariableRef{Name: "amount", Type: VarLong})
	assert.False(t, ok)

	v, ok := inst.TypedVariable(VariableRef{Name: "amount", Type: VarString})
	require.True(t, ok)
	assert.Equal(t, "10", v.Key())
}

func TestDataSourceContains(t *testing.T) {
	inst := &Instance{DefinitionKey: "invoice", DefinitionVersion: "2", TenantID: ""}

	assert.True(t, DataSource{Key: "invoice", Versions: []string{AllVersions}}.Contains(inst))
	assert.True(t, DataSource{Key: "invoice", Versions: []string{"1", "2"}}.Contains(inst))
	assert.False(t, DataSource{Key: "invoice", Versions: []string{"1"}}.Contains(inst))
	assert.False(t, DataSource{Key: "order", Versions: []string{AllVersions}}.Contains(inst))
	assert.False(t, DataSource{Key: "invoice", Tenants: []string{"acme"}}.Contains(inst))
}

func TestFilterAppliesTo(t *testing.T) {
	assert.True(t, Filter{}.AppliesTo("a"))
	assert.True(t, Filter{AppliedTo: []string{AppliedToAll}}.AppliesTo("a"))
	assert.True(t, Filter{AppliedTo: []string{"a"}}.AppliesTo("a"))
	assert.False(t, Filter{AppliedTo: []string{"b"}}.AppliesTo("a"))
}

func TestCombinedResultJSONKeepsMemberOrder(t *testing.T) {
	one := 1.0
	combined := &CombinedResult{
		Type: ResultNumber,
		Entries: []CombinedEntry{
			{ReportID: "z", Name: "Last alphabetically", Result: &EvaluationResult{Type: ResultNumber, Number: &one}},
			{ReportID: "a", Name: "First alphabetically", Result: &EvaluationResult{Type: ResultNumber, Number: &one}},
		},
	}

	b, err := json.Marshal(combined)
	require.NoError(t, err)

	s := string(b)
	assert.Less(t, strings.Index(s, `"z":`), strings.Index(s, `"a":`))
	assert.Contains(t, s, `"name":"Last alphabetically"`)
}

func TestEvaluationResultJSONRendersEmptyMap(t *testing.T) {
	b, err := json.Marshal(&EvaluationResult{Type: ResultMap, IsComplete: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"map","data":[],"isComplete":true,"instanceCount":0,"instanceCountWithoutFilters":0}`, string(b))
}
