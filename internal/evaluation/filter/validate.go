package filter

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"
)

var decisionFilters = []model.FilterType{
	model.FilterEvaluationDate,
	model.FilterVariable,
}

var viewLevelFilters = []model.FilterType{
	model.FilterFlowNodeStartDate,
	model.FilterFlowNodeEndDate,
	model.FilterFlowNodeDuration,
	model.FilterExecutedFlowNodes,
	model.FilterAssignee,
}

var comparisonOperators = []string{model.OpLess, model.OpLessEq, model.OpGreater, model.OpGreaterEq}

var membershipOperators = []string{model.OpIn, model.OpNotIn}

func validate(f model.Filter, data model.ReportData) *apperrors.AppError {
	switch data.ReportType {
	case model.ReportTypeDecision:
		if !slices.Contains(decisionFilters, f.Type) {
			return apperrors.Validation("filter %q is not supported for decision reports", f.Type)
		}
	default:
		if f.Type == model.FilterEvaluationDate {
			return apperrors.Validation("filter %q is only supported for decision reports", f.Type)
		}
	}

	switch f.FilterLevel() {
	case model.LevelInstance:
	case model.LevelView:
		if !slices.Contains(viewLevelFilters, f.Type) {
			return apperrors.Validation("filter %q cannot be applied on view level", f.Type)
		}
		if data.View == nil || !data.View.OnExecutions() {
			return apperrors.Validation("view level filter %q requires a flow node or user task view", f.Type)
		}
	default:
		return apperrors.Validation("unknown filter level %q", f.Level)
	}

	switch f.Type {
	case model.FilterInstanceStartDate, model.FilterInstanceEndDate, model.FilterEvaluationDate,
		model.FilterFlowNodeStartDate, model.FilterFlowNodeEndDate:
		return validateDateRange(f.Date)
	case model.FilterInstanceDuration, model.FilterFlowNodeDuration:
		return validateDuration(f.Duration)
	case model.FilterVariable:
		return validateVariable(f)
	case model.FilterExecutedFlowNodes, model.FilterAssignee:
		if !slices.Contains(membershipOperators, f.Operator) {
			return apperrors.Validation("filter %q requires operator %q or %q", f.Type, model.OpIn, model.OpNotIn)
		}
		if len(f.Values) == 0 {
			return apperrors.Validation("filter %q requires at least one value", f.Type)
		}
	case model.FilterRunningInstancesOnly, model.FilterCompletedInstancesOnly, model.FilterCanceledInstancesOnly:
	default:
		return apperrors.Validation("unknown filter type %q", f.Type)
	}
	return nil
}

func validateDateRange(d *model.DateRange) *apperrors.AppError {
	if d == nil {
		return apperrors.Validation("date filter requires a date range")
	}
	switch d.Type {
	case model.DateRangeFixed:
		if d.Start == nil && d.End == nil {
			return apperrors.Validation("fixed date range requires a start or an end")
		}
		if d.Start != nil && d.End != nil && d.End.Before(*d.Start) {
			return apperrors.Validation("date range ends before it starts")
		}
	case model.DateRangeRolling:
		if d.Value <= 0 {
			return apperrors.Validation("rolling date range requires a positive value")
		}
		if _, ok := unitDurations[d.Unit]; !ok {
			return apperrors.Validation("unsupported rolling date unit %q", d.Unit)
		}
	default:
		return apperrors.Validation("unknown date range type %q", d.Type)
	}
	return nil
}

func validateDuration(d *model.DurationCondition) *apperrors.AppError {
	if d == nil {
		return apperrors.Validation("duration filter requires a condition")
	}
	if !slices.Contains(comparisonOperators, d.Operator) {
		return apperrors.Validation("unsupported duration operator %q", d.Operator)
	}
	if _, ok := durationUnits[d.Unit]; !ok {
		return apperrors.Validation("unsupported duration unit %q", d.Unit)
	}
	if d.Value < 0 {
		return apperrors.Validation("duration must not be negative")
	}
	if d.Value > math.MaxInt64/durationUnits[d.Unit] {
		return apperrors.Validation("duration %d %s is too large", d.Value, d.Unit)
	}
	return nil
}

func validateVariable(f model.Filter) *apperrors.AppError {
	if f.Variable == nil || f.Variable.Name == "" {
		return apperrors.Validation("variable filter requires a variable name")
	}
	typ := f.Variable.Type
	switch {
	case typ == model.VarString:
		if !slices.Contains([]string{model.OpIn, model.OpNotIn, model.OpContains, model.OpNotContains}, f.Operator) {
			return apperrors.Validation("unsupported string variable operator %q", f.Operator)
		}
	case typ == model.VarBoolean:
		if !slices.Contains(membershipOperators, f.Operator) {
			return apperrors.Validation("unsupported boolean variable operator %q", f.Operator)
		}
		for _, v := range f.Values {
			if _, err := strconv.ParseBool(v); err != nil {
				return apperrors.Validation("invalid boolean value %q", v)
			}
		}
	case typ.IsNumeric():
		if !slices.Contains(membershipOperators, f.Operator) && !slices.Contains(comparisonOperators, f.Operator) {
			return apperrors.Validation("unsupported numeric variable operator %q", f.Operator)
		}
		for _, v := range f.Values {
			var err error
			if typ.IsIntegral() {
				_, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			} else {
				_, err = strconv.ParseFloat(v, 64)
			}
			if err != nil {
				return apperrors.Validation("invalid %s value %q", typ, v)
			}
		}
	case typ == model.VarDate:
		return validateDateRange(f.Date)
	default:
		return apperrors.Validation("unsupported variable type %q", typ)
	}
	if len(f.Values) == 0 && !f.IncludeUndefined {
		return apperrors.Validation("variable filter on %q requires at least one value", f.Variable.Name)
	}
	return nil
}
