package model

import (
	"slices"
)

type ReportType string

const (
	ReportTypeProcess  ReportType = "process"
	ReportTypeDecision ReportType = "decision"
)

// Version selectors understood by DataSource.Versions.
const (
	AllVersions   = "all"
	LatestVersion = "latest"
)

// DefaultTenant is the tenant id of instances that were not imported for a specific tenant.
const DefaultTenant = ""

// DataSource references the instances of one definition key.
type DataSource struct {
	Identifier  string   `json:"identifier,omitempty" bson:"identifier,omitempty" yaml:"identifier"`
	DisplayName string   `json:"displayName,omitempty" bson:"displayName,omitempty" yaml:"displayName"`
	Key         string   `json:"key" bson:"key" yaml:"key" validate:"required"`
	Versions    []string `json:"versions" bson:"versions" yaml:"versions"`
	Tenants     []string `json:"tenants" bson:"tenants" yaml:"tenants"`
}

func (d DataSource) ID() string {
	if d.Identifier != "" {
		return d.Identifier
	}
	return d.Key
}

func (d DataSource) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Key
}

func (d DataSource) IsAllVersions() bool {
	return len(d.Versions) == 0 || slices.Contains(d.Versions, AllVersions)
}

func (d DataSource) IsLatestVersion() bool {
	return slices.Contains(d.Versions, LatestVersion)
}

// TenantIDs returns the tenant ids to search; an empty list means the default tenant.
func (d DataSource) TenantIDs() []string {
	if len(d.Tenants) == 0 {
		return []string{DefaultTenant}
	}
	return d.Tenants
}

// Contains reports whether an instance belongs to this source. Latest-version sources must be
// resolved to concrete versions first.
func (d DataSource) Contains(inst *Instance) bool {
	if inst.DefinitionKey != d.Key {
		return false
	}
	if !slices.Contains(d.TenantIDs(), inst.TenantID) {
		return false
	}
	if d.IsAllVersions() {
		return true
	}
	return slices.Contains(d.Versions, inst.DefinitionVersion)
}

type ViewEntity string

const (
	ViewProcessInstance  ViewEntity = "processInstance"
	ViewFlowNode         ViewEntity = "flowNode"
	ViewUserTask         ViewEntity = "userTask"
	ViewDecisionInstance ViewEntity = "decisionInstance"
)

type ViewProperty string

const (
	PropertyFrequency ViewProperty = "frequency"
	PropertyDuration  ViewProperty = "duration"
	PropertyRawData   ViewProperty = "rawData"
)

type View struct {
	Entity   ViewEntity   `json:"entity" bson:"entity" yaml:"entity" validate:"required"`
	Property ViewProperty `json:"property" bson:"property" yaml:"property" validate:"required"`
}

// OnExecutions reports whether the view measures flow-node executions instead of instances.
func (v View) OnExecutions() bool {
	return v.Entity == ViewFlowNode || v.Entity == ViewUserTask
}

type GroupByType string

const (
	GroupByNone      GroupByType = "none"
	GroupByStartDate GroupByType = "startDate"
	GroupByEndDate   GroupByType = "endDate"
	GroupByVariable  GroupByType = "variable"
	GroupByFlowNodes GroupByType = "flowNodes"
	GroupByUserTasks GroupByType = "userTasks"
	GroupByAssignee  GroupByType = "assignee"
	GroupByProcess   GroupByType = "process"
)

type DateUnit string

const (
	UnitYear      DateUnit = "year"
	UnitMonth     DateUnit = "month"
	UnitWeek      DateUnit = "week"
	UnitDay       DateUnit = "day"
	UnitHour      DateUnit = "hour"
	UnitMinute    DateUnit = "minute"
	UnitAutomatic DateUnit = "automatic"
)

type VariableRef struct {
	Name string       `json:"name" bson:"name" yaml:"name" validate:"required"`
	Type VariableType `json:"type" bson:"type" yaml:"type" validate:"required"`
}

type GroupBy struct {
	Type     GroupByType  `json:"type" bson:"type" yaml:"type" validate:"required"`
	Unit     DateUnit     `json:"unit,omitempty" bson:"unit,omitempty" yaml:"unit"`
	Variable *VariableRef `json:"variable,omitempty" bson:"variable,omitempty" yaml:"variable"`
}

func (g GroupBy) IsDate() bool {
	return g.Type == GroupByStartDate || g.Type == GroupByEndDate
}

// HasDateKeys reports whether bucket keys are dates: start/end date groupings and date variables.
func (g GroupBy) HasDateKeys() bool {
	return g.IsDate() || (g.Type == GroupByVariable && g.Variable != nil && g.Variable.Type == VarDate)
}

// DateUnit returns the unit for date groupings, automatic when unset.
func (g GroupBy) DateUnit() DateUnit {
	if g.Unit == "" {
		return UnitAutomatic
	}
	return g.Unit
}

type DistributedByType string

const (
	DistributeNone     DistributedByType = "none"
	DistributeProcess  DistributedByType = "process"
	DistributeUserTask DistributedByType = "userTask"
	DistributeFlowNode DistributedByType = "flowNode"
	DistributeAssignee DistributedByType = "assignee"
)

type DistributedBy struct {
	Type DistributedByType `json:"type" bson:"type" yaml:"type"`
}

type AggregationType string

const (
	AggregationAvg    AggregationType = "avg"
	AggregationMin    AggregationType = "min"
	AggregationMax    AggregationType = "max"
	AggregationSum    AggregationType = "sum"
	AggregationMedian AggregationType = "median"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort fields. Key and value apply to aggregated results, the rest to raw data.
const (
	SortByKey         = "key"
	SortByValue       = "value"
	SortByStartDate   = "startDate"
	SortByEndDate     = "endDate"
	SortByDuration    = "durationMs"
	SortByBusinessKey = "businessKey"
)

type Sorting struct {
	By    string    `json:"by" bson:"by" yaml:"by"`
	Order SortOrder `json:"order" bson:"order" yaml:"order"`
}

type CustomBucket struct {
	Active     bool    `json:"active" bson:"active" yaml:"active"`
	Baseline   float64 `json:"baseline" bson:"baseline" yaml:"baseline"`
	BucketSize float64 `json:"bucketSize" bson:"bucketSize" yaml:"bucketSize"`
}

type Configuration struct {
	Sorting         *Sorting        `json:"sorting,omitempty" bson:"sorting,omitempty" yaml:"sorting"`
	AggregationType AggregationType `json:"aggregationType,omitempty" bson:"aggregationType,omitempty" yaml:"aggregationType"`
	BucketLimit     int             `json:"bucketLimit,omitempty" bson:"bucketLimit,omitempty" yaml:"bucketLimit"`
	BucketCount     int             `json:"bucketCount,omitempty" bson:"bucketCount,omitempty" yaml:"bucketCount"`
	CustomBucket    *CustomBucket   `json:"customBucket,omitempty" bson:"customBucket,omitempty" yaml:"customBucket"`
	Visualization   string          `json:"visualization,omitempty" bson:"visualization,omitempty" yaml:"visualization"`
}

func (c Configuration) Aggregation() AggregationType {
	if c.AggregationType == "" {
		return AggregationAvg
	}
	return c.AggregationType
}

// ReportData is the evaluable part of a single report definition.
type ReportData struct {
	ReportType    ReportType     `json:"reportType" bson:"reportType" yaml:"reportType" validate:"required,oneof=process decision"`
	DataSources   []DataSource   `json:"dataSources" bson:"dataSources" yaml:"dataSources" validate:"required,min=1,dive"`
	View          *View          `json:"view" bson:"view" yaml:"view" validate:"required"`
	GroupBy       *GroupBy       `json:"groupBy" bson:"groupBy" yaml:"groupBy" validate:"required"`
	DistributedBy *DistributedBy `json:"distributedBy,omitempty" bson:"distributedBy,omitempty" yaml:"distributedBy"`
	Filters       []Filter       `json:"filters,omitempty" bson:"filters,omitempty" yaml:"filters" validate:"dive"`
	Configuration Configuration  `json:"configuration" bson:"configuration" yaml:"configuration"`
}

func (d ReportData) Distribution() DistributedByType {
	if d.DistributedBy == nil || d.DistributedBy.Type == "" {
		return DistributeNone
	}
	return d.DistributedBy.Type
}

func (d ReportData) IsRawData() bool {
	return d.View != nil && d.View.Property == PropertyRawData
}

// WithFilters returns a copy of d with extra filters appended.
func (d ReportData) WithFilters(extra []Filter) ReportData {
	if len(extra) == 0 {
		return d
	}
	merged := make([]Filter, 0, len(d.Filters)+len(extra))
	merged = append(merged, d.Filters...)
	merged = append(merged, extra...)
	d.Filters = merged
	return d
}
