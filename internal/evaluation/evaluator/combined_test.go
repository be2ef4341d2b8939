package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"
	"go-reports/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variableReport(name string) model.ReportData {
	return report(frequency, model.GroupBy{Type: model.GroupByVariable, Variable: &model.VariableRef{Name: name, Type: model.VarString}})
}

func seedColors(st *store.MemoryStore) {
	st.Add(model.ReportTypeProcess,
		withVar(started("a", now), "color", model.VarString, strPtr("red")),
		withVar(started("b", now), "color", model.VarString, strPtr("blue")),
		withVar(started("c", now), "color", model.VarString, strPtr("red")),
	)
}

func TestCombinedMergesMapsInMemberOrder(t *testing.T) {
	st := store.NewMemoryStore()
	seedColors(st)
	running := variableReport("color")
	running.Filters = []model.Filter{{Type: model.FilterRunningInstancesOnly}}

	res, err := newEngine(st).EvaluateCombined(context.Background(), []Member{
		{ID: "r2", Name: "All colors", Data: variableReport("color")},
		{ID: "r1", Name: "Running colors", Data: running},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ResultMap, res.Type)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "r2", res.Entries[0].ReportID)
	assert.Equal(t, "All colors", res.Entries[0].Name)
	assert.Equal(t, "r1", res.Entries[1].ReportID)
	assert.Equal(t, "Running colors", res.Entries[1].Name)
	for _, e := range res.Entries {
		assert.Equal(t, []string{"blue", "red"}, keys(e.Result.Map))
	}
}

func TestCombinedSkipsMismatchingShapes(t *testing.T) {
	st := store.NewMemoryStore()
	seedColors(st)
	hyper := report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitDay})
	hyper.DistributedBy = &model.DistributedBy{Type: model.DistributeProcess}

	res, err := newEngine(st).EvaluateCombined(context.Background(), []Member{
		{ID: "number", Data: report(frequency, noGroup)},
		{ID: "map", Data: variableReport("color")},
		{ID: "hyper", Data: hyper},
		{ID: "raw", Data: report(rawData, noGroup)},
		{ID: "number2", Data: report(duration, noGroup)},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ResultNumber, res.Type)
	ids := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		ids = append(ids, e.ReportID)
	}
	assert.Equal(t, []string{"number", "number2"}, ids)
}

func TestCombinedRejectsDuplicateMembers(t *testing.T) {
	st := &countingStore{MemoryStore: store.NewMemoryStore()}
	_, err := newEngine(st).EvaluateCombined(context.Background(), []Member{
		{ID: "r1", Data: variableReport("color")},
		{ID: "r1", Data: variableReport("color")},
	}, Options{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Zero(t, st.calls)
}

func TestCombinedFailsWhenAnyMemberFails(t *testing.T) {
	st := store.NewMemoryStore()
	seedColors(st)
	broken := variableReport("color")
	broken.View = nil

	res, err := newEngine(st).EvaluateCombined(context.Background(), []Member{
		{ID: "ok", Data: variableReport("color")},
		{ID: "broken", Data: broken},
	}, Options{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsValidation(err))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "report broken")
}

func TestCombinedAutomaticDatesShareKeys(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 10 {
		inst := started(fmt.Sprintf("inv%d", i), now.Add(-time.Duration(i)*time.Hour))
		st.Add(model.ReportTypeProcess, inst)
	}
	for i := range 5 {
		inst := started(fmt.Sprintf("ord%d", i), now.Add(-time.Duration(20+i)*time.Hour))
		inst.DefinitionKey = "order"
		st.Add(model.ReportTypeProcess, inst)
	}
	automatic := model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitAutomatic}
	invoices := report(frequency, automatic)
	orders := report(frequency, automatic)
	orders.DataSources = []model.DataSource{{Key: "order"}}

	res, err := newEngine(st).EvaluateCombined(context.Background(), []Member{
		{ID: "invoices", Data: invoices},
		{ID: "orders", Data: orders},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	first, second := res.Entries[0].Result.Map, res.Entries[1].Result.Map
	assert.Len(t, first, 80)
	assert.Equal(t, keys(first), keys(second))
}

type concurrencyStore struct {
	*store.MemoryStore
	active, peak atomic.Int32
}

func (s *concurrencyStore) Search(ctx context.Context, req store.SearchRequest) ([]model.Instance, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.MemoryStore.Search(ctx, req)
}

func TestCombinedRespectsConcurrencyLimit(t *testing.T) {
	st := &concurrencyStore{MemoryStore: store.NewMemoryStore()}
	seedColors(st.MemoryStore)

	members := make([]Member, 0, 8)
	for i := range 8 {
		members = append(members, Member{ID: fmt.Sprint(i), Data: variableReport("color")})
	}
	res, err := newEngine(st).EvaluateCombined(context.Background(), members, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 8)
	assert.LessOrEqual(t, st.peak.Load(), int32(defaultSettings().CombinedConcurrency))
}
