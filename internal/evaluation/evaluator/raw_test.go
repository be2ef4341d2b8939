package evaluator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"
	"go-reports/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowIDs(rows []model.RawRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.InstanceID)
	}
	return out
}

func TestRawDataIsNewestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess,
		started("t-2d", now.AddDate(0, 0, -2)),
		started("t", now),
		started("t-1d", now.AddDate(0, 0, -1)),
	)

	res, err := newEngine(st).Evaluate(context.Background(), report(rawData, noGroup), Options{})
	require.NoError(t, err)
	assert.Equal(t, model.ResultRaw, res.Type)
	assert.Equal(t, []string{"t", "t-1d", "t-2d"}, rowIDs(res.Raw))
	assert.Equal(t, int64(3), res.InstanceCount)
	assert.Empty(t, res.Pagination.NextToken)
}

func TestRawDataPadsVariables(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess,
		withVar(started("a", now), "amount", model.VarInteger, strPtr("10")),
		withVar(started("b", now.Add(-time.Hour)), "customer", model.VarString, strPtr("acme")),
		withVar(started("c", now.Add(-2*time.Hour)), "customer", model.VarString, nil),
	)

	res, err := newEngine(st).Evaluate(context.Background(), report(rawData, noGroup), Options{})
	require.NoError(t, err)
	require.Len(t, res.Raw, 3)
	assert.Equal(t, map[string]string{"amount": "10", "customer": ""}, res.Raw[0].Variables)
	assert.Equal(t, map[string]string{"amount": "", "customer": "acme"}, res.Raw[1].Variables)
	assert.Equal(t, map[string]string{"amount": "", "customer": ""}, res.Raw[2].Variables)
}

func TestRawDataPaging(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 5 {
		st.Add(model.ReportTypeProcess, started(fmt.Sprint(i), now.Add(-time.Duration(i)*time.Hour)))
	}
	e := newEngine(st)
	data := report(rawData, noGroup)

	var seen []string
	token := ""
	for range 3 {
		res, err := e.Evaluate(context.Background(), data, Options{RecordLimit: 2, PageToken: token})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Pagination.Limit)
		assert.Equal(t, int64(5), res.InstanceCount)
		seen = append(seen, rowIDs(res.Raw)...)
		token = res.Pagination.NextToken
		if token == "" {
			break
		}
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, seen)
	assert.Empty(t, token)
}

func TestRawDataPagingWithInexactFilter(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 6 {
		st.Add(model.ReportTypeProcess, withVar(started(fmt.Sprint(i), now.Add(-time.Duration(i)*time.Hour)),
			"amount", model.VarInteger, strPtr(fmt.Sprint(i*10))))
	}
	data := report(rawData, noGroup)
	data.Filters = []model.Filter{{
		Type:     model.FilterVariable,
		Variable: &model.VariableRef{Name: "amount", Type: model.VarInteger},
		Operator: model.OpGreaterEq,
		Values:   []string{"20"},
	}}
	e := newEngine(st)

	first, err := e.Evaluate(context.Background(), data, Options{RecordLimit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "4"}, rowIDs(first.Raw))
	assert.Equal(t, int64(4), first.InstanceCount)
	assert.Equal(t, int64(6), first.InstanceCountWithoutFilters)
	require.NotEmpty(t, first.Pagination.NextToken)

	second, err := e.Evaluate(context.Background(), data, Options{RecordLimit: 3, PageToken: first.Pagination.NextToken})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, rowIDs(second.Raw))
	assert.Empty(t, second.Pagination.NextToken)
}

func TestRawDataSorting(t *testing.T) {
	st := store.NewMemoryStore()
	a := started("a", now)
	a.BusinessKey = "zulu"
	b := started("b", now.Add(-time.Hour))
	b.BusinessKey = "alpha"
	st.Add(model.ReportTypeProcess, a, b)
	data := report(rawData, noGroup)
	data.Configuration.Sorting = &model.Sorting{By: model.SortByBusinessKey, Order: model.SortAsc}

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, rowIDs(res.Raw))

	data.Configuration.Sorting = &model.Sorting{By: model.SortByValue}
	_, err = newEngine(st).Evaluate(context.Background(), data, Options{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestRecordLimitIsCapped(t *testing.T) {
	res, err := newEngine(store.NewMemoryStore()).Evaluate(context.Background(), report(rawData, noGroup), Options{RecordLimit: 1_000_000})
	require.NoError(t, err)
	assert.Equal(t, defaultSettings().RawMaxLimit, res.Pagination.Limit)

	res, err = newEngine(store.NewMemoryStore()).Evaluate(context.Background(), report(rawData, noGroup), Options{})
	require.NoError(t, err)
	assert.Equal(t, defaultSettings().RawDefaultLimit, res.Pagination.Limit)
}

func TestMalformedPageToken(t *testing.T) {
	_, err := newEngine(store.NewMemoryStore()).Evaluate(context.Background(), report(rawData, noGroup), Options{PageToken: "%%%"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPageTokenRoundTrip(t *testing.T) {
	offset, err := decodePageToken(encodePageToken(40))
	require.NoError(t, err)
	assert.Equal(t, 40, offset)
}
