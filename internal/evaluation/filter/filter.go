package filter

import (
	"fmt"
	"slices"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"
)

// clause is one compiled filter.
type clause struct {
	filter     model.Filter
	instance   func(*model.Instance) bool
	execution  func(*model.FlowNodeExecution) bool
	pushdown   func() any
	exactInDoc bool
}

// group holds the clauses of one filter kind; they are OR-ed.
type group struct {
	key     string
	clauses []clause
}

// Query is the compiled filter list of a report. A nil Query matches everything.
type Query struct {
	now      time.Time
	instance []group
	view     []group
}

// Compile validates filters against the report and turns them into a Query.
// now anchors rolling date ranges and running durations.
func Compile(data model.ReportData, now time.Time) (*Query, error) {
	q := &Query{now: now}
	for i, f := range data.Filters {
		if err := validate(f, data); err != nil {
			return nil, apperrors.WithDetails(err, filterPosition(i))
		}
		c, err := compileClause(f, now)
		if err != nil {
			return nil, apperrors.WithDetails(err, filterPosition(i))
		}
		key := groupKey(f)
		if f.FilterLevel() == model.LevelView {
			q.view = addClause(q.view, key, c)
		} else {
			q.instance = addClause(q.instance, key, c)
		}
	}
	return q, nil
}

func filterPosition(i int) string {
	return fmt.Sprintf("filter #%d", i+1)
}

func addClause(groups []group, key string, c clause) []group {
	for i := range groups {
		if groups[i].key == key {
			groups[i].clauses = append(groups[i].clauses, c)
			return groups
		}
	}
	return append(groups, group{key: key, clauses: []clause{c}})
}

// groupKey decides which filters are alternatives of each other. Variable filters only
// combine with filters on the same variable.
func groupKey(f model.Filter) string {
	key := string(f.Type)
	if f.Type == model.FilterVariable && f.Variable != nil {
		key += ":" + f.Variable.Name
	}
	return key
}

// Now is the reference time the query was compiled with.
func (q *Query) Now() time.Time {
	if q == nil {
		return time.Now()
	}
	return q.now
}

func (q *Query) IsEmpty() bool {
	return q == nil || (len(q.instance) == 0 && len(q.view) == 0)
}

func (q *Query) HasViewFilters() bool {
	return q != nil && len(q.view) > 0
}

// MatchInstance applies the instance-level filters that target sourceID.
func (q *Query) MatchInstance(inst *model.Instance, sourceID string) bool {
	if q == nil {
		return true
	}
	for _, g := range q.instance {
		applicable, matched := false, false
		for _, c := range g.clauses {
			if !c.filter.AppliesTo(sourceID) {
				continue
			}
			applicable = true
			if c.instance(inst) {
				matched = true
				break
			}
		}
		if applicable && !matched {
			return false
		}
	}
	return true
}

// MatchExecution applies the view-level filters that target sourceID.
func (q *Query) MatchExecution(exec *model.FlowNodeExecution, sourceID string) bool {
	if q == nil {
		return true
	}
	for _, g := range q.view {
		applicable, matched := false, false
		for _, c := range g.clauses {
			if !c.filter.AppliesTo(sourceID) {
				continue
			}
			applicable = true
			if c.execution(exec) {
				matched = true
				break
			}
		}
		if applicable && !matched {
			return false
		}
	}
	return true
}

// Exact reports whether the store pushdown selects exactly the instances MatchInstance accepts.
// Otherwise the pushdown is a superset and results must be re-filtered in memory.
func (q *Query) Exact() bool {
	if q == nil {
		return true
	}
	for _, g := range q.instance {
		if slices.ContainsFunc(g.clauses, func(c clause) bool { return !c.exactInDoc }) {
			return false
		}
	}
	return true
}
