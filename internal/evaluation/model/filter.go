package model

import (
	"slices"
	"time"
)

type FilterType string

const (
	FilterInstanceStartDate      FilterType = "instanceStartDate"
	FilterInstanceEndDate        FilterType = "instanceEndDate"
	FilterEvaluationDate         FilterType = "evaluationDateTime"
	FilterFlowNodeStartDate      FilterType = "flowNodeStartDate"
	FilterFlowNodeEndDate        FilterType = "flowNodeEndDate"
	FilterInstanceDuration       FilterType = "processInstanceDuration"
	FilterFlowNodeDuration       FilterType = "flowNodeDuration"
	FilterVariable               FilterType = "variable"
	FilterExecutedFlowNodes      FilterType = "executedFlowNodes"
	FilterAssignee               FilterType = "assignee"
	FilterRunningInstancesOnly   FilterType = "runningInstancesOnly"
	FilterCompletedInstancesOnly FilterType = "completedInstancesOnly"
	FilterCanceledInstancesOnly  FilterType = "canceledInstancesOnly"
)

type FilterLevel string

const (
	LevelInstance FilterLevel = "instance"
	LevelView     FilterLevel = "view"
)

// Operators used by variable, duration, flow node and assignee filters.
const (
	OpIn          = "in"
	OpNotIn       = "not in"
	OpContains    = "contains"
	OpNotContains = "not contains"
	OpLess        = "<"
	OpLessEq      = "<="
	OpGreater     = ">"
	OpGreaterEq   = ">="
)

// AppliedToAll makes a filter constrain every data source of the report.
const AppliedToAll = "all"

type DateRangeType string

const (
	DateRangeFixed   DateRangeType = "fixed"
	DateRangeRolling DateRangeType = "rolling"
)

type DateRange struct {
	Type  DateRangeType `json:"type" bson:"type" yaml:"type"`
	Start *time.Time    `json:"start,omitempty" bson:"start,omitempty" yaml:"start"`
	End   *time.Time    `json:"end,omitempty" bson:"end,omitempty" yaml:"end"`
	Value int           `json:"value,omitempty" bson:"value,omitempty" yaml:"value"`
	Unit  DateUnit      `json:"unit,omitempty" bson:"unit,omitempty" yaml:"unit"`
}

type DurationCondition struct {
	Operator string `json:"operator" bson:"operator" yaml:"operator"`
	Value    int64  `json:"value" bson:"value" yaml:"value"`
	Unit     string `json:"unit" bson:"unit" yaml:"unit"`
}

// Filter is one declarative filter of a report. Fields that do not apply to Type are ignored.
type Filter struct {
	Type             FilterType         `json:"type" bson:"type" yaml:"type" validate:"required"`
	Level            FilterLevel        `json:"filterLevel,omitempty" bson:"filterLevel,omitempty" yaml:"filterLevel"`
	AppliedTo        []string           `json:"appliedTo,omitempty" bson:"appliedTo,omitempty" yaml:"appliedTo"`
	Operator         string             `json:"operator,omitempty" bson:"operator,omitempty" yaml:"operator"`
	Values           []string           `json:"values,omitempty" bson:"values,omitempty" yaml:"values"`
	Date             *DateRange         `json:"date,omitempty" bson:"date,omitempty" yaml:"date"`
	Duration         *DurationCondition `json:"duration,omitempty" bson:"duration,omitempty" yaml:"duration"`
	Variable         *VariableRef       `json:"variable,omitempty" bson:"variable,omitempty" yaml:"variable"`
	IncludeUndefined bool               `json:"includeUndefined,omitempty" bson:"includeUndefined,omitempty" yaml:"includeUndefined"`
}

func (f Filter) FilterLevel() FilterLevel {
	if f.Level == "" {
		return LevelInstance
	}
	return f.Level
}

// AppliesTo reports whether the filter constrains the given data source.
func (f Filter) AppliesTo(sourceID string) bool {
	if len(f.AppliedTo) == 0 || slices.Contains(f.AppliedTo, AppliedToAll) {
		return true
	}
	return slices.Contains(f.AppliedTo, sourceID)
}
