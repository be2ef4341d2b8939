package model

import "time"

type InstanceState string

const (
	StateActive    InstanceState = "ACTIVE"
	StateCompleted InstanceState = "COMPLETED"
	StateCanceled  InstanceState = "CANCELED"
)

// Variable values are stored as strings and interpreted through their declared type.
type Variable struct {
	Name  string       `json:"name" bson:"name" yaml:"name"`
	Type  VariableType `json:"type" bson:"type" yaml:"type"`
	Value *string      `json:"value" bson:"value" yaml:"value"`
}

type FlowNodeExecution struct {
	ID           string     `json:"id" bson:"id" yaml:"id"`
	FlowNodeID   string     `json:"flowNodeId" bson:"flowNodeId" yaml:"flowNodeId"`
	FlowNodeName string     `json:"flowNodeName,omitempty" bson:"flowNodeName,omitempty" yaml:"flowNodeName"`
	FlowNodeType string     `json:"flowNodeType" bson:"flowNodeType" yaml:"flowNodeType"`
	StartDate    time.Time  `json:"startDate" bson:"startDate" yaml:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty" bson:"endDate,omitempty" yaml:"endDate"`
	DurationMs   *int64     `json:"durationMs,omitempty" bson:"durationMs,omitempty" yaml:"durationMs"`
	Assignee     string     `json:"assignee,omitempty" bson:"assignee,omitempty" yaml:"assignee"`
	Canceled     bool       `json:"canceled,omitempty" bson:"canceled,omitempty" yaml:"canceled"`
}

const FlowNodeTypeUserTask = "userTask"

func (e FlowNodeExecution) IsUserTask() bool {
	return e.FlowNodeType == FlowNodeTypeUserTask
}

// Label is the flow node name, falling back to its id.
func (e FlowNodeExecution) Label() string {
	if e.FlowNodeName != "" {
		return e.FlowNodeName
	}
	return e.FlowNodeID
}

// Duration returns the recorded duration, or the elapsed time for running executions.
func (e FlowNodeExecution) Duration(now time.Time) float64 {
	return durationOf(e.StartDate, e.EndDate, e.DurationMs, now)
}

// Instance is one process or decision instance document.
type Instance struct {
	ID                string              `json:"id" bson:"_id" yaml:"id"`
	DefinitionKey     string              `json:"definitionKey" bson:"definitionKey" yaml:"definitionKey"`
	DefinitionID      string              `json:"definitionId" bson:"definitionId" yaml:"definitionId"`
	DefinitionVersion string              `json:"definitionVersion" bson:"definitionVersion" yaml:"definitionVersion"`
	TenantID          string              `json:"tenantId" bson:"tenantId" yaml:"tenantId"`
	BusinessKey       string              `json:"businessKey,omitempty" bson:"businessKey,omitempty" yaml:"businessKey"`
	State             InstanceState       `json:"state" bson:"state" yaml:"state"`
	StartDate         time.Time           `json:"startDate" bson:"startDate" yaml:"startDate"`
	EndDate           *time.Time          `json:"endDate,omitempty" bson:"endDate,omitempty" yaml:"endDate"`
	DurationMs        *int64              `json:"durationMs,omitempty" bson:"durationMs,omitempty" yaml:"durationMs"`
	Variables         []Variable          `json:"variables,omitempty" bson:"variables,omitempty" yaml:"variables"`
	FlowNodes         []FlowNodeExecution `json:"flowNodes,omitempty" bson:"flowNodes,omitempty" yaml:"flowNodes"`
}

func (i *Instance) IsRunning() bool {
	return i.EndDate == nil
}

func (i *Instance) Duration(now time.Time) float64 {
	return durationOf(i.StartDate, i.EndDate, i.DurationMs, now)
}

// Variable looks a variable up by name. Only the first occurrence counts.
func (i *Instance) Variable(name string) (Variable, bool) {
	for _, v := range i.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func durationOf(start time.Time, end *time.Time, recorded *int64, now time.Time) float64 {
	if recorded != nil {
		return float64(*recorded)
	}
	if end != nil {
		return float64(end.Sub(start).Milliseconds())
	}
	return float64(now.Sub(start).Milliseconds())
}
