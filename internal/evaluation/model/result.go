package model

import (
	"bytes"
	"encoding/json"
	"time"
)

type ResultType string

const (
	ResultNumber   ResultType = "number"
	ResultMap      ResultType = "map"
	ResultHyperMap ResultType = "hyperMap"
	ResultRaw      ResultType = "raw"
)

// MissingKey is the bucket for instances without a typed value for the grouping field.
const MissingKey = "missing"

type MapEntry struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
	Label string   `json:"label"`
}

type HyperMapEntry struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Value []MapEntry `json:"value"`
}

type RawRow struct {
	InstanceID    string            `json:"instanceId"`
	DefinitionID  string            `json:"definitionId"`
	DefinitionKey string            `json:"definitionKey"`
	Version       string            `json:"version"`
	TenantID      string            `json:"tenantId"`
	BusinessKey   string            `json:"businessKey"`
	State         InstanceState     `json:"state"`
	StartDate     time.Time         `json:"startDate"`
	EndDate       *time.Time        `json:"endDate"`
	DurationMs    *int64            `json:"durationMs"`
	Variables     map[string]string `json:"variables"`
}

type Pagination struct {
	Limit     int    `json:"limit"`
	NextToken string `json:"nextToken,omitempty"`
}

// EvaluationResult holds exactly one of Number, Map, HyperMap or Raw, selected by Type.
type EvaluationResult struct {
	Type                        ResultType
	Number                      *float64
	Map                         []MapEntry
	HyperMap                    []HyperMapEntry
	Raw                         []RawRow
	IsComplete                  bool
	InstanceCount               int64
	InstanceCountWithoutFilters int64
	Pagination                  *Pagination
}

func (r *EvaluationResult) Data() any {
	switch r.Type {
	case ResultNumber:
		return r.Number
	case ResultMap:
		return nonNil(r.Map)
	case ResultHyperMap:
		return nonNil(r.HyperMap)
	case ResultRaw:
		return nonNil(r.Raw)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *EvaluationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type                        ResultType  `json:"type"`
		Data                        any         `json:"data"`
		IsComplete                  bool        `json:"isComplete"`
		InstanceCount               int64       `json:"instanceCount"`
		InstanceCountWithoutFilters int64       `json:"instanceCountWithoutFilters"`
		Pagination                  *Pagination `json:"pagination,omitempty"`
	}{r.Type, r.Data(), r.IsComplete, r.InstanceCount, r.InstanceCountWithoutFilters, r.Pagination})
}

type CombinedEntry struct {
	ReportID string            `json:"id"`
	Name     string            `json:"name"`
	Result   *EvaluationResult `json:"result"`
}

// CombinedResult keeps member results in the order the combined report lists them.
type CombinedResult struct {
	Type    ResultType
	Entries []CombinedEntry
}

func (c *CombinedResult) Get(reportID string) (CombinedEntry, bool) {
	for _, e := range c.Entries {
		if e.ReportID == reportID {
			return e, true
		}
	}
	return CombinedEntry{}, false
}

// MarshalJSON renders entries as an object keyed by report id, in member order.
func (c *CombinedResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, err := json.Marshal(c.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(typ)
	buf.WriteString(`,"data":{`)
	for i, e := range c.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ReportID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}
