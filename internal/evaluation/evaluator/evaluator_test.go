package evaluator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"
	"go-reports/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type staticSettings struct {
	s config.EngineSettings
}

func (s staticSettings) Load() *config.EngineSettings {
	c := s.s
	return &c
}

func defaultSettings() config.EngineSettings {
	return config.EngineSettings{
		AutomaticIntervalBuckets: 80,
		MaxBuckets:               1000,
		CombinedConcurrency:      2,
		QueryTimeout:             time.Second,
		RawDefaultLimit:          20,
		RawMaxLimit:              100,
	}
}

type recordingObserver struct {
	kinds []string
	errs  []error
}

func (o *recordingObserver) ObserveEvaluation(kind string, _ time.Duration, err error) {
	o.kinds = append(o.kinds, kind)
	o.errs = append(o.errs, err)
}

func newEngine(st store.InstanceStore) *Engine {
	e := NewEngine(st, staticSettings{defaultSettings()}, nil, zap.NewNop())
	e.now = func() time.Time { return now }
	return e
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func started(id string, start time.Time) model.Instance {
	return model.Instance{
		ID:                id,
		DefinitionKey:     "invoice",
		DefinitionVersion: "1",
		State:             model.StateActive,
		StartDate:         start,
	}
}

func completed(id string, start time.Time, d time.Duration) model.Instance {
	inst := started(id, start)
	inst.State = model.StateCompleted
	inst.EndDate = timePtr(start.Add(d))
	ms := d.Milliseconds()
	inst.DurationMs = &ms
	return inst
}

func withVar(inst model.Instance, name string, typ model.VariableType, value *string) model.Instance {
	inst.Variables = append(inst.Variables, model.Variable{Name: name, Type: typ, Value: value})
	return inst
}

func report(view model.View, groupBy model.GroupBy) model.ReportData {
	return model.ReportData{
		ReportType:  model.ReportTypeProcess,
		DataSources: []model.DataSource{{Key: "invoice", Versions: []string{model.AllVersions}}},
		View:        &view,
		GroupBy:     &groupBy,
	}
}

var (
	frequency = model.View{Entity: model.ViewProcessInstance, Property: model.PropertyFrequency}
	duration  = model.View{Entity: model.ViewProcessInstance, Property: model.PropertyDuration}
	rawData   = model.View{Entity: model.ViewProcessInstance, Property: model.PropertyRawData}
	noGroup   = model.GroupBy{Type: model.GroupByNone}
)

func keys(entries []model.MapEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func values(entries []model.MapEntry) []float64 {
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, *e.Value)
	}
	return out
}

func TestFrequencyByStartDayIsSortedDescending(t *testing.T) {
	st := store.NewMemoryStore()
	day := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
	st.Add(model.ReportTypeProcess,
		started("a", day.Add(-20*time.Hour)),
		started("b", day.Add(3*time.Hour)),
	)

	res, err := newEngine(st).Evaluate(context.Background(),
		report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitDay}), Options{})
	require.NoError(t, err)

	assert.Equal(t, model.ResultMap, res.Type)
	assert.Equal(t, []string{"2024-05-09T00:00:00.000+0000", "2024-05-08T00:00:00.000+0000"}, keys(res.Map))
	assert.Equal(t, []float64{1, 1}, values(res.Map))
	assert.True(t, res.IsComplete)
	assert.Equal(t, int64(2), res.InstanceCount)
}

func TestDateKeysFollowRequestedTimezone(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess, started("a", time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)))
	loc := time.FixedZone("UTC+2", 2*60*60)

	res, err := newEngine(st).Evaluate(context.Background(),
		report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitDay}), Options{Location: loc})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-10T00:00:00.000+0200"}, keys(res.Map))
}

func TestMissingVariableBucket(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess,
		started("a", now.Add(-time.Hour)),
		withVar(started("b", now.Add(-time.Hour)), "foo", model.VarString, strPtr("bar")),
	)
	groupBy := model.GroupBy{Type: model.GroupByVariable, Variable: &model.VariableRef{Name: "foo", Type: model.VarString}}

	res, err := newEngine(st).Evaluate(context.Background(), report(frequency, groupBy), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", model.MissingKey}, keys(res.Map))
	assert.Equal(t, []float64{1, 1}, values(res.Map))
}

func TestMissingBucketIsMergedAcrossVersions(t *testing.T) {
	st := store.NewMemoryStore()
	v2 := started("b", now)
	v2.DefinitionVersion = "2"
	st.Add(model.ReportTypeProcess, started("a", now), v2,
		withVar(started("c", now), "foo", model.VarString, strPtr("bar")))
	groupBy := model.GroupBy{Type: model.GroupByVariable, Variable: &model.VariableRef{Name: "foo", Type: model.VarString}}

	res, err := newEngine(st).Evaluate(context.Background(), report(frequency, groupBy), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", model.MissingKey}, keys(res.Map))
	assert.Equal(t, []float64{1, 2}, values(res.Map))
}

func TestAutomaticIntervalYieldsTargetBucketCount(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 100 {
		st.Add(model.ReportTypeProcess, started(fmt.Sprintf("i%03d", i), now.Add(-time.Duration(i)*time.Hour)))
	}

	res, err := newEngine(st).Evaluate(context.Background(),
		report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitAutomatic}), Options{})
	require.NoError(t, err)
	require.Len(t, res.Map, 80)

	var total float64
	for _, v := range values(res.Map) {
		total += v
	}
	assert.Equal(t, float64(100), total)
}

func TestBucketCountOverridesAutomaticTarget(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 30 {
		st.Add(model.ReportTypeProcess, started(fmt.Sprintf("i%02d", i), now.Add(-time.Duration(i)*time.Hour)))
	}
	data := report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitAutomatic})
	data.Configuration.BucketCount = 10

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Map, 10)
}

func TestBucketLimitTruncates(t *testing.T) {
	st := store.NewMemoryStore()
	for i, v := range []string{"a", "b", "c", "d", "e"} {
		st.Add(model.ReportTypeProcess, withVar(started(fmt.Sprint(i), now), "letter", model.VarString, strPtr(v)))
	}
	data := report(frequency, model.GroupBy{Type: model.GroupByVariable, Variable: &model.VariableRef{Name: "letter", Type: model.VarString}})
	data.Configuration.BucketLimit = 3

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys(res.Map))
	assert.False(t, res.IsComplete)
	assert.Equal(t, int64(5), res.InstanceCount)
}

func TestFiltersNeverIncreaseInstanceCount(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess,
		started("a", now.Add(-time.Hour)),
		completed("b", now.Add(-2*time.Hour), time.Minute),
		completed("c", now.Add(-3*time.Hour), time.Minute),
	)
	data := report(frequency, noGroup)
	data.Filters = []model.Filter{{Type: model.FilterRunningInstancesOnly}}

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.ResultNumber, res.Type)
	assert.Equal(t, float64(1), *res.Number)
	assert.Equal(t, int64(1), res.InstanceCount)
	assert.Equal(t, int64(3), res.InstanceCountWithoutFilters)
}

func TestDurationAggregations(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess,
		completed("a", now.Add(-time.Hour), time.Second),
		completed("b", now.Add(-time.Hour), 3*time.Second),
		started("c", now.Add(-8*time.Second)),
	)

	tests := []struct {
		aggregation model.AggregationType
		want        float64
	}{
		{model.AggregationAvg, 4000},
		{model.AggregationMin, 1000},
		{model.AggregationMax, 8000},
		{model.AggregationSum, 12000},
		{model.AggregationMedian, 3000},
	}
	for _, tt := range tests {
		t.Run(string(tt.aggregation), func(t *testing.T) {
			data := report(duration, noGroup)
			data.Configuration.AggregationType = tt.aggregation

			res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
			require.NoError(t, err)
			require.NotNil(t, res.Number)
			assert.Equal(t, tt.want, *res.Number)
		})
	}
}

func TestDurationOfEmptyReportIsNull(t *testing.T) {
	res, err := newEngine(store.NewMemoryStore()).Evaluate(context.Background(), report(duration, noGroup), Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Number)
	assert.Equal(t, int64(0), res.InstanceCount)
}

func TestLatestVersionSource(t *testing.T) {
	st := store.NewMemoryStore()
	v2 := started("b", now)
	v2.DefinitionVersion = "2"
	st.Add(model.ReportTypeProcess, started("a", now), v2)
	data := report(frequency, noGroup)
	data.DataSources[0].Versions = []string{model.LatestVersion}

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, float64(1), *res.Number)
}

func TestUnknownDefinitionEvaluatesEmpty(t *testing.T) {
	data := report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitDay})
	data.DataSources[0] = model.DataSource{Key: "undeployed", Versions: []string{model.LatestVersion}}

	res, err := newEngine(store.NewMemoryStore()).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Map)
	assert.Equal(t, int64(0), res.InstanceCount)
	assert.Equal(t, int64(0), res.InstanceCountWithoutFilters)
}

func TestFlowNodeFrequencyWithViewFilter(t *testing.T) {
	st := store.NewMemoryStore()
	inst := completed("a", now.Add(-time.Hour), time.Hour)
	inst.FlowNodes = []model.FlowNodeExecution{
		{ID: "1", FlowNodeID: "start", FlowNodeName: "Start", FlowNodeType: "startEvent", StartDate: inst.StartDate},
		{ID: "2", FlowNodeID: "approve", FlowNodeName: "Approve", FlowNodeType: model.FlowNodeTypeUserTask, StartDate: inst.StartDate, Assignee: "kim"},
		{ID: "3", FlowNodeID: "approve", FlowNodeName: "Approve", FlowNodeType: model.FlowNodeTypeUserTask, StartDate: inst.StartDate},
	}
	st.Add(model.ReportTypeProcess, inst)

	data := report(model.View{Entity: model.ViewFlowNode, Property: model.PropertyFrequency}, model.GroupBy{Type: model.GroupByFlowNodes})
	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "start"}, keys(res.Map))
	assert.Equal(t, []float64{2, 1}, values(res.Map))
	assert.Equal(t, "Approve", res.Map[0].Label)

	data.Filters = []model.Filter{{Type: model.FilterExecutedFlowNodes, Level: model.LevelView, Operator: model.OpIn, Values: []string{"start"}}}
	res, err = newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, keys(res.Map))
	assert.Equal(t, int64(1), res.InstanceCount)
}

func TestUserTasksByAssignee(t *testing.T) {
	st := store.NewMemoryStore()
	inst := started("a", now.Add(-time.Hour))
	inst.FlowNodes = []model.FlowNodeExecution{
		{ID: "1", FlowNodeID: "start", FlowNodeType: "startEvent", StartDate: inst.StartDate},
		{ID: "2", FlowNodeID: "approve", FlowNodeType: model.FlowNodeTypeUserTask, StartDate: inst.StartDate, Assignee: "kim"},
		{ID: "3", FlowNodeID: "review", FlowNodeType: model.FlowNodeTypeUserTask, StartDate: inst.StartDate},
	}
	st.Add(model.ReportTypeProcess, inst)

	data := report(model.View{Entity: model.ViewUserTask, Property: model.PropertyFrequency}, model.GroupBy{Type: model.GroupByAssignee})
	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"kim", "__unassigned__"}, keys(res.Map))
}

func TestDistributedByProcessIsRectangular(t *testing.T) {
	st := store.NewMemoryStore()
	order := started("o1", now.Add(-30*time.Hour))
	order.DefinitionKey = "order"
	st.Add(model.ReportTypeProcess, started("a", now.Add(-time.Hour)), order)

	data := report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: model.UnitDay})
	data.DataSources = []model.DataSource{
		{Key: "invoice", DisplayName: "Invoices"},
		{Key: "order", DisplayName: "Orders"},
	}
	data.DistributedBy = &model.DistributedBy{Type: model.DistributeProcess}

	res, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	require.Equal(t, model.ResultHyperMap, res.Type)
	require.Len(t, res.HyperMap, 2)
	for _, series := range res.HyperMap {
		require.Len(t, series.Value, 2)
		assert.Equal(t, "Invoices", series.Value[0].Label)
		assert.Equal(t, "Orders", series.Value[1].Label)
	}
	assert.Equal(t, []float64{1, 0}, values(res.HyperMap[0].Value))
	assert.Equal(t, []float64{0, 1}, values(res.HyperMap[1].Value))
	assert.Equal(t, int64(2), res.InstanceCount)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		data model.ReportData
	}{
		{"missing view", model.ReportData{
			ReportType:  model.ReportTypeProcess,
			DataSources: []model.DataSource{{Key: "invoice"}},
			GroupBy:     &noGroup,
		}},
		{"missing group by", model.ReportData{
			ReportType:  model.ReportTypeProcess,
			DataSources: []model.DataSource{{Key: "invoice"}},
			View:        &frequency,
		}},
		{"no data source", model.ReportData{ReportType: model.ReportTypeProcess, View: &frequency, GroupBy: &noGroup}},
		{"flow nodes on instance view", report(frequency, model.GroupBy{Type: model.GroupByFlowNodes})},
		{"decision view on process report", report(model.View{Entity: model.ViewDecisionInstance, Property: model.PropertyFrequency}, noGroup)},
		{"grouped raw data", report(rawData, model.GroupBy{Type: model.GroupByStartDate})},
		{"unknown date unit", report(frequency, model.GroupBy{Type: model.GroupByStartDate, Unit: "fortnight"})},
		{"malformed filter", func() model.ReportData {
			d := report(frequency, noGroup)
			d.Filters = []model.Filter{{Type: model.FilterInstanceDuration}}
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &countingStore{MemoryStore: store.NewMemoryStore()}
			_, err := newEngine(st).Evaluate(context.Background(), tt.data, Options{})
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
			assert.Zero(t, st.calls, "no query may run for an invalid report")
		})
	}
}

type countingStore struct {
	*store.MemoryStore
	calls int
	err   error
}

func (s *countingStore) Search(ctx context.Context, req store.SearchRequest) ([]model.Instance, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.MemoryStore.Search(ctx, req)
}

func TestStoreFailureIsEvaluationError(t *testing.T) {
	st := &countingStore{MemoryStore: store.NewMemoryStore(), err: apperrors.Wrap(errors.New("connection refused"), "store query failed")}
	obs := &recordingObserver{}
	e := newEngine(st)
	e.observer = obs

	_, err := e.Evaluate(context.Background(), report(frequency, noGroup), Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsEvaluation(err))
	assert.Equal(t, []string{KindSingle}, obs.kinds)
	assert.Error(t, obs.errs[0])
}

func TestEvaluationIsDeterministic(t *testing.T) {
	st := store.NewMemoryStore()
	for i := range 20 {
		st.Add(model.ReportTypeProcess, withVar(started(fmt.Sprint(i), now.Add(-time.Duration(i)*time.Hour)),
			"amount", model.VarInteger, strPtr(fmt.Sprint(i%4))))
	}
	data := report(frequency, model.GroupBy{Type: model.GroupByVariable, Variable: &model.VariableRef{Name: "amount", Type: model.VarInteger}})
	data.Configuration.Sorting = &model.Sorting{By: model.SortByValue, Order: model.SortDesc}

	first, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	second, err := newEngine(st).Evaluate(context.Background(), data, Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Map, second.Map)
}
