package evaluator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"

	"github.com/go-playground/validator/v10"
)

var supportedViews = map[model.ReportType]map[model.ViewEntity][]model.ViewProperty{
	model.ReportTypeProcess: {
		model.ViewProcessInstance: {model.PropertyFrequency, model.PropertyDuration, model.PropertyRawData},
		model.ViewFlowNode:        {model.PropertyFrequency, model.PropertyDuration},
		model.ViewUserTask:        {model.PropertyFrequency, model.PropertyDuration},
	},
	model.ReportTypeDecision: {
		model.ViewDecisionInstance: {model.PropertyFrequency, model.PropertyRawData},
	},
}

var decisionGroupings = []model.GroupByType{model.GroupByNone, model.GroupByStartDate, model.GroupByVariable}

var dateUnits = []model.DateUnit{
	model.UnitYear, model.UnitMonth, model.UnitWeek, model.UnitDay,
	model.UnitHour, model.UnitMinute, model.UnitAutomatic,
}

var aggregations = []model.AggregationType{
	model.AggregationAvg, model.AggregationMin, model.AggregationMax,
	model.AggregationSum, model.AggregationMedian,
}

var rawSortFields = []string{
	model.SortByStartDate, model.SortByEndDate, model.SortByDuration, model.SortByBusinessKey,
}

// validateReport rejects incomplete definitions and unsupported combinations before any
// store query runs. Filters are validated when the query is compiled.
func (e *Engine) validateReport(data model.ReportData) error {
	if err := e.validate.Struct(data); err != nil {
		return structError(err)
	}

	view := *data.View
	properties, ok := supportedViews[data.ReportType][view.Entity]
	if !ok {
		return apperrors.Validation("view %q is not supported for %s reports", view.Entity, data.ReportType)
	}
	if !slices.Contains(properties, view.Property) {
		return apperrors.Validation("view %q does not support property %q", view.Entity, view.Property)
	}

	if err := validateSources(data.DataSources); err != nil {
		return err
	}
	if err := validateGroupBy(data); err != nil {
		return err
	}
	if err := validateDistribution(data); err != nil {
		return err
	}
	return validateConfiguration(data)
}

func structError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("invalid report: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "ReportData."), fe.Tag()))
	}
	return apperrors.WithDetails(apperrors.Validation("report definition is incomplete"), strings.Join(fields, "; "))
}

func validateSources(sources []model.DataSource) error {
	seen := map[string]bool{}
	for _, s := range sources {
		if seen[s.ID()] {
			return apperrors.Validation("duplicate data source identifier %q", s.ID())
		}
		seen[s.ID()] = true
		if len(s.Versions) > 1 && (slices.Contains(s.Versions, model.AllVersions) || s.IsLatestVersion()) {
			return apperrors.Validation("data source %q mixes %q or %q with concrete versions", s.ID(), model.AllVersions, model.LatestVersion)
		}
	}
	return nil
}

func validateGroupBy(data model.ReportData) error {
	g := *data.GroupBy
	view := *data.View

	if data.IsRawData() {
		if g.Type != model.GroupByNone {
			return apperrors.Validation("raw data reports cannot be grouped")
		}
		return nil
	}
	if data.ReportType == model.ReportTypeDecision && !slices.Contains(decisionGroupings, g.Type) {
		return apperrors.Validation("group by %q is not supported for decision reports", g.Type)
	}

	switch g.Type {
	case model.GroupByNone, model.GroupByProcess:
	case model.GroupByStartDate, model.GroupByEndDate:
		if !slices.Contains(dateUnits, g.DateUnit()) {
			return apperrors.Validation("unknown date unit %q", g.Unit)
		}
	case model.GroupByVariable:
		if g.Variable == nil {
			return apperrors.Validation("group by variable requires a variable")
		}
		if !g.Variable.Type.Valid() {
			return apperrors.Validation("unknown variable type %q", g.Variable.Type)
		}
	case model.GroupByFlowNodes:
		if view.Entity != model.ViewFlowNode {
			return apperrors.Validation("group by %q requires a flow node view", g.Type)
		}
	case model.GroupByUserTasks, model.GroupByAssignee:
		if view.Entity != model.ViewUserTask {
			return apperrors.Validation("group by %q requires a user task view", g.Type)
		}
	default:
		return apperrors.Validation("unknown group by %q", g.Type)
	}
	return nil
}

func validateDistribution(data model.ReportData) error {
	dist := data.Distribution()
	if dist == model.DistributeNone {
		return nil
	}
	if data.IsRawData() || data.GroupBy.Type == model.GroupByNone {
		return apperrors.Validation("distributed by %q requires a grouping", dist)
	}

	entity := data.View.Entity
	switch dist {
	case model.DistributeProcess:
		if data.GroupBy.Type == model.GroupByProcess {
			return apperrors.Validation("cannot group and distribute by process")
		}
	case model.DistributeFlowNode:
		if entity != model.ViewFlowNode {
			return apperrors.Validation("distributed by %q requires a flow node view", dist)
		}
		if data.GroupBy.Type == model.GroupByFlowNodes {
			return apperrors.Validation("cannot group and distribute by flow node")
		}
	case model.DistributeUserTask, model.DistributeAssignee:
		if entity != model.ViewUserTask {
			return apperrors.Validation("distributed by %q requires a user task view", dist)
		}
		if (dist == model.DistributeUserTask && data.GroupBy.Type == model.GroupByUserTasks) ||
			(dist == model.DistributeAssignee && data.GroupBy.Type == model.GroupByAssignee) {
			return apperrors.Validation("cannot group and distribute by %q", dist)
		}
	default:
		return apperrors.Validation("unknown distributed by %q", dist)
	}
	return nil
}

func validateConfiguration(data model.ReportData) error {
	cfg := data.Configuration
	if cfg.AggregationType != "" && !slices.Contains(aggregations, cfg.AggregationType) {
		return apperrors.Validation("unknown aggregation type %q", cfg.AggregationType)
	}
	if cfg.BucketLimit < 0 || cfg.BucketCount < 0 {
		return apperrors.Validation("bucket limit and bucket count must not be negative")
	}
	if cb := cfg.CustomBucket; cb != nil && cb.Active {
		if data.GroupBy.Type != model.GroupByVariable || !data.GroupBy.Variable.Type.IsNumeric() {
			return apperrors.Validation("custom buckets require a numeric variable grouping")
		}
		if cb.BucketSize <= 0 {
			return apperrors.Validation("custom bucket size must be positive")
		}
	}

	s := cfg.Sorting
	if s == nil || s.By == "" {
		return nil
	}
	if s.Order != "" && s.Order != model.SortAsc && s.Order != model.SortDesc {
		return apperrors.Validation("unknown sort order %q", s.Order)
	}
	if data.IsRawData() {
		if !slices.Contains(rawSortFields, s.By) {
			return apperrors.Validation("raw data cannot be sorted by %q", s.By)
		}
		return nil
	}
	if s.By != model.SortByKey && s.By != model.SortByValue {
		return apperrors.Validation("reports can only be sorted by %q or %q", model.SortByKey, model.SortByValue)
	}
	return nil
}
