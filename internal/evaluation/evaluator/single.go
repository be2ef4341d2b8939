package evaluator

import (
	"context"

	"go-reports/internal/evaluation/bucket"
	"go-reports/internal/evaluation/filter"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/shape"
	"go-reports/internal/evaluation/store"

	"go.uber.org/zap"
)

// prepared is a single report after all store work: the filtered items and both counts.
// Grouping and shaping need no further queries.
type prepared struct {
	data                        model.ReportData
	sources                     []model.DataSource
	items                       []bucket.Item
	instanceCount               int64
	instanceCountWithoutFilters int64
}

func (e *Engine) prepare(ctx context.Context, r *run, data model.ReportData) (*prepared, error) {
	if err := e.validateReport(data); err != nil {
		return nil, err
	}
	query, err := filter.Compile(data, r.now)
	if err != nil {
		return nil, err
	}
	sources, err := e.resolveSources(ctx, r, data)
	if err != nil {
		return nil, err
	}
	p := &prepared{data: data, sources: sources}
	if len(sources) == 0 {
		return p, nil
	}

	instances, err := e.store.Search(ctx, store.SearchRequest{
		ReportType: data.ReportType,
		Sources:    sources,
		Query:      query,
	})
	if err != nil {
		return nil, err
	}
	p.items, p.instanceCount = collectItems(instances, sources, query, *data.View, r)

	p.instanceCountWithoutFilters, err = e.countWithoutFilters(ctx, data.ReportType, sources, query, p.instanceCount)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// resolveSources replaces latest-version selectors by the highest stored version. Sources whose
// definition has no instances at all are dropped, so an undeployed definition evaluates empty.
func (e *Engine) resolveSources(ctx context.Context, r *run, data model.ReportData) ([]model.DataSource, error) {
	out := make([]model.DataSource, 0, len(data.DataSources))
	for _, s := range data.DataSources {
		if !s.IsLatestVersion() {
			out = append(out, s)
			continue
		}
		version, ok, err := e.store.LatestVersion(ctx, data.ReportType, s.Key)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.logger.Info("Definition not found, evaluating empty", zap.String("definitionKey", s.Key))
			continue
		}
		s.Versions = []string{version}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) countWithoutFilters(ctx context.Context, reportType model.ReportType, sources []model.DataSource, query *filter.Query, filtered int64) (int64, error) {
	if query.IsEmpty() {
		return filtered, nil
	}
	return e.store.Count(ctx, store.SearchRequest{ReportType: reportType, Sources: sources})
}

// collectItems re-applies the query in memory and expands instances into the items the view
// measures. An instance counted for several sources yields one item per source.
func collectItems(instances []model.Instance, sources []model.DataSource, query *filter.Query, view model.View, r *run) ([]bucket.Item, int64) {
	var (
		items   []bucket.Item
		matched int64
	)
	for i := range instances {
		inst := &instances[i]
		counted := false
		for _, src := range sources {
			if !src.Contains(inst) || !query.MatchInstance(inst, src.ID()) {
				continue
			}
			counted = true
			if !view.OnExecutions() {
				items = append(items, bucket.Item{Instance: inst, Source: src, Value: inst.Duration(r.now)})
				continue
			}
			for j := range inst.FlowNodes {
				exec := &inst.FlowNodes[j]
				if view.Entity == model.ViewUserTask && !exec.IsUserTask() {
					continue
				}
				if !query.MatchExecution(exec, src.ID()) {
					continue
				}
				items = append(items, bucket.Item{Instance: inst, Execution: exec, Source: src, Value: exec.Duration(r.now)})
			}
		}
		if counted {
			matched++
		}
	}
	return items, matched
}

// bucketLimit is the smaller of the global cap and the report's own limit.
func bucketLimit(r *run, cfg model.Configuration) int {
	limit := r.settings.MaxBuckets
	if cfg.BucketLimit > 0 && cfg.BucketLimit < limit {
		limit = cfg.BucketLimit
	}
	return limit
}

// result groups and shapes the prepared items. dateRange widens automatic date groupings.
func (p *prepared) result(r *run, dateRange *bucket.TimeRange) (*model.EvaluationResult, error) {
	data := p.data
	cfg := data.Configuration
	res := &model.EvaluationResult{
		IsComplete:                  true,
		InstanceCount:               p.instanceCount,
		InstanceCountWithoutFilters: p.instanceCountWithoutFilters,
	}
	measure := shape.Measure{Property: data.View.Property, Aggregation: cfg.Aggregation()}

	if data.GroupBy.Type == model.GroupByNone {
		res.Type = model.ResultNumber
		res.Number = measure.Value(p.items)
		return res, nil
	}

	automatic := r.settings.AutomaticIntervalBuckets
	if cfg.BucketCount > 0 {
		automatic = cfg.BucketCount
	}
	automatic = min(automatic, r.settings.MaxBuckets)
	buckets, err := bucket.Group(p.items, bucket.Options{
		GroupBy:          *data.GroupBy,
		Location:         r.location,
		AutomaticBuckets: automatic,
		MaxBuckets:       r.settings.MaxBuckets,
		CustomBucket:     cfg.CustomBucket,
		DateRange:        dateRange,
		Sources:          p.sources,
	})
	if err != nil {
		return nil, err
	}

	opts := shape.Options{
		GroupBy:      *data.GroupBy,
		Distribution: data.Distribution(),
		Sources:      p.sources,
		Sorting:      cfg.Sorting,
		Limit:        bucketLimit(r, cfg),
		Measure:      measure,
	}
	if opts.Distribution == model.DistributeNone {
		res.Type = model.ResultMap
		res.Map, res.IsComplete = shape.Map(buckets, opts)
	} else {
		res.Type = model.ResultHyperMap
		res.HyperMap, res.IsComplete = shape.HyperMap(buckets, opts)
	}
	if !res.IsComplete {
		r.logger.Debug("Result truncated by bucket limit", zap.Int("limit", opts.Limit), zap.Int("buckets", len(buckets)))
	}
	return res, nil
}

// automaticDateGrouping reports whether the report buckets dates by automatic interval.
func (p *prepared) automaticDateGrouping() bool {
	g := p.data.GroupBy
	return g != nil && g.IsDate() && g.DateUnit() == model.UnitAutomatic
}
