package filter

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// unitDurations are the units accepted by rolling date ranges.
var unitDurations = map[model.DateUnit]struct{}{
	model.UnitMinute: {},
	model.UnitHour:   {},
	model.UnitDay:    {},
	model.UnitWeek:   {},
	model.UnitMonth:  {},
	model.UnitYear:   {},
}

var durationUnits = map[string]int64{
	"millis":  1,
	"seconds": 1000,
	"minutes": 60 * 1000,
	"hours":   60 * 60 * 1000,
	"days":    24 * 60 * 60 * 1000,
	"weeks":   7 * 24 * 60 * 60 * 1000,
	"months":  30 * 24 * 60 * 60 * 1000,
	"years":   365 * 24 * 60 * 60 * 1000,
}

var mongoComparison = map[string]string{
	model.OpLess:      "$lt",
	model.OpLessEq:    "$lte",
	model.OpGreater:   "$gt",
	model.OpGreaterEq: "$gte",
}

func compileClause(f model.Filter, now time.Time) (clause, *apperrors.AppError) {
	c := clause{filter: f, exactInDoc: true}
	switch f.Type {
	case model.FilterInstanceStartDate, model.FilterEvaluationDate:
		start, end := resolveRange(f.Date, now)
		c.instance = func(inst *model.Instance) bool { return inRange(inst.StartDate, start, end) }
		c.pushdown = func() any { return bson.M{"startDate": rangeBSON(start, end)} }
	case model.FilterInstanceEndDate:
		start, end := resolveRange(f.Date, now)
		c.instance = func(inst *model.Instance) bool {
			return inst.EndDate != nil && inRange(*inst.EndDate, start, end)
		}
		c.pushdown = func() any { return bson.M{"endDate": rangeBSON(start, end)} }
	case model.FilterFlowNodeStartDate:
		start, end := resolveRange(f.Date, now)
		c.execution = func(e *model.FlowNodeExecution) bool { return inRange(e.StartDate, start, end) }
		c.instance = anyExecution(c.execution)
		c.pushdown = func() any {
			return bson.M{"flowNodes": bson.M{"$elemMatch": bson.M{"startDate": rangeBSON(start, end)}}}
		}
	case model.FilterFlowNodeEndDate:
		start, end := resolveRange(f.Date, now)
		c.execution = func(e *model.FlowNodeExecution) bool {
			return e.EndDate != nil && inRange(*e.EndDate, start, end)
		}
		c.instance = anyExecution(c.execution)
		c.pushdown = func() any {
			return bson.M{"flowNodes": bson.M{"$elemMatch": bson.M{"endDate": rangeBSON(start, end)}}}
		}
	case model.FilterInstanceDuration:
		threshold := float64(f.Duration.Value * durationUnits[f.Duration.Unit])
		op := f.Duration.Operator
		c.instance = func(inst *model.Instance) bool {
			if inst.EndDate == nil && inst.DurationMs == nil {
				return false
			}
			return compare(op, inst.Duration(now), threshold)
		}
		c.pushdown = func() any { return bson.M{"durationMs": bson.M{mongoComparison[op]: threshold}} }
	case model.FilterFlowNodeDuration:
		threshold := float64(f.Duration.Value * durationUnits[f.Duration.Unit])
		op := f.Duration.Operator
		ids := f.Values
		c.execution = func(e *model.FlowNodeExecution) bool {
			if len(ids) > 0 && !slices.Contains(ids, e.FlowNodeID) {
				return false
			}
			if e.EndDate == nil && e.DurationMs == nil {
				return false
			}
			return compare(op, e.Duration(now), threshold)
		}
		c.instance = anyExecution(c.execution)
		c.pushdown = func() any {
			elem := bson.M{"durationMs": bson.M{mongoComparison[op]: threshold}}
			if len(ids) > 0 {
				elem["flowNodeId"] = bson.M{"$in": ids}
			}
			return bson.M{"flowNodes": bson.M{"$elemMatch": elem}}
		}
	case model.FilterExecutedFlowNodes:
		compileExecutedFlowNodes(&c, f)
	case model.FilterAssignee:
		compileAssignee(&c, f)
	case model.FilterRunningInstancesOnly:
		c.instance = func(inst *model.Instance) bool { return inst.IsRunning() }
		c.pushdown = func() any { return bson.M{"endDate": nil} }
	case model.FilterCompletedInstancesOnly:
		c.instance = func(inst *model.Instance) bool { return inst.State == model.StateCompleted }
		c.pushdown = func() any { return bson.M{"state": model.StateCompleted} }
	case model.FilterCanceledInstancesOnly:
		c.instance = func(inst *model.Instance) bool { return inst.State == model.StateCanceled }
		c.pushdown = func() any { return bson.M{"state": model.StateCanceled} }
	case model.FilterVariable:
		if err := compileVariable(&c, f, now); err != nil {
			return clause{}, err
		}
	default:
		return clause{}, apperrors.Validation("unknown filter type %q", f.Type)
	}
	return c, nil
}

func anyExecution(match func(*model.FlowNodeExecution) bool) func(*model.Instance) bool {
	return func(inst *model.Instance) bool {
		for i := range inst.FlowNodes {
			if match(&inst.FlowNodes[i]) {
				return true
			}
		}
		return false
	}
}

func compileExecutedFlowNodes(c *clause, f model.Filter) {
	ids := f.Values
	executed := func(e *model.FlowNodeExecution) bool {
		return !e.Canceled && slices.Contains(ids, e.FlowNodeID)
	}
	elem := bson.M{"$elemMatch": bson.M{"flowNodeId": bson.M{"$in": ids}, "canceled": bson.M{"$ne": true}}}
	if f.Operator == model.OpNotIn {
		c.instance = func(inst *model.Instance) bool { return !anyExecution(executed)(inst) }
		c.execution = func(e *model.FlowNodeExecution) bool { return !slices.Contains(ids, e.FlowNodeID) }
		c.pushdown = func() any { return bson.M{"flowNodes": bson.M{"$not": elem}} }
		return
	}
	c.instance = anyExecution(executed)
	c.execution = func(e *model.FlowNodeExecution) bool { return slices.Contains(ids, e.FlowNodeID) }
	c.pushdown = func() any { return bson.M{"flowNodes": elem} }
}

func compileAssignee(c *clause, f model.Filter) {
	assignees := f.Values
	assigned := func(e *model.FlowNodeExecution) bool {
		return e.IsUserTask() && slices.Contains(assignees, e.Assignee)
	}
	// unassigned tasks are stored without an assignee field
	values := make([]any, 0, len(assignees))
	for _, a := range assignees {
		if a == "" {
			values = append(values, nil)
		} else {
			values = append(values, a)
		}
	}
	elem := bson.M{"$elemMatch": bson.M{"flowNodeType": model.FlowNodeTypeUserTask, "assignee": bson.M{"$in": values}}}
	if f.Operator == model.OpNotIn {
		c.instance = func(inst *model.Instance) bool { return !anyExecution(assigned)(inst) }
		c.execution = func(e *model.FlowNodeExecution) bool { return !slices.Contains(assignees, e.Assignee) }
		c.pushdown = func() any { return bson.M{"flowNodes": bson.M{"$not": elem}} }
		return
	}
	c.instance = anyExecution(assigned)
	c.execution = func(e *model.FlowNodeExecution) bool { return slices.Contains(assignees, e.Assignee) }
	c.pushdown = func() any { return bson.M{"flowNodes": elem} }
}

func compileVariable(c *clause, f model.Filter, now time.Time) *apperrors.AppError {
	ref := *f.Variable
	var match func(model.TypedValue) bool
	var valueBSON any

	switch {
	case ref.Type == model.VarString:
		match, valueBSON = stringMatcher(f.Operator, f.Values)
	case ref.Type == model.VarBoolean:
		wanted := make([]bool, 0, len(f.Values))
		for _, v := range f.Values {
			b, _ := strconv.ParseBool(v)
			wanted = append(wanted, b)
		}
		negate := f.Operator == model.OpNotIn
		match = func(v model.TypedValue) bool { return slices.Contains(wanted, v.Bool()) != negate }
		c.exactInDoc = false
	case ref.Type.IsIntegral():
		ints := make([]int64, 0, len(f.Values))
		for _, v := range f.Values {
			n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			ints = append(ints, n)
		}
		op := f.Operator
		match = func(v model.TypedValue) bool {
			switch op {
			case model.OpIn:
				return slices.Contains(ints, v.Int())
			case model.OpNotIn:
				return !slices.Contains(ints, v.Int())
			}
			return len(ints) > 0 && compareInt(op, v.Int(), ints[0])
		}
		c.exactInDoc = false
	case ref.Type.IsNumeric():
		nums := make([]float64, 0, len(f.Values))
		for _, v := range f.Values {
			n, _ := strconv.ParseFloat(v, 64)
			nums = append(nums, n)
		}
		op := f.Operator
		match = func(v model.TypedValue) bool {
			switch op {
			case model.OpIn:
				return slices.Contains(nums, v.Number())
			case model.OpNotIn:
				return !slices.Contains(nums, v.Number())
			}
			return len(nums) > 0 && compare(op, v.Number(), nums[0])
		}
		c.exactInDoc = false
	case ref.Type == model.VarDate:
		start, end := resolveRange(f.Date, now)
		match = func(v model.TypedValue) bool { return inRange(v.Time(), start, end) }
		c.exactInDoc = false
	default:
		return apperrors.Validation("unsupported variable type %q", ref.Type)
	}

	includeUndefined := f.IncludeUndefined
	exact := c.exactInDoc
	c.instance = func(inst *model.Instance) bool {
		v, ok := inst.TypedVariable(ref)
		if !ok {
			return includeUndefined
		}
		return match(v)
	}
	c.pushdown = func() any {
		if !exact {
			if includeUndefined {
				return nil
			}
			return bson.M{"variables": bson.M{"$elemMatch": bson.M{"name": ref.Name, "type": ref.Type, "value": bson.M{"$ne": nil}}}}
		}
		defined := bson.M{"variables": bson.M{"$elemMatch": bson.M{"name": ref.Name, "type": ref.Type, "value": valueBSON}}}
		if !includeUndefined {
			return defined
		}
		undefined := bson.M{"variables": bson.M{"$not": bson.M{"$elemMatch": bson.M{"name": ref.Name, "type": ref.Type, "value": bson.M{"$ne": nil}}}}}
		return bson.M{"$or": bson.A{defined, undefined}}
	}
	return nil
}

func stringMatcher(op string, values []string) (func(model.TypedValue) bool, any) {
	switch op {
	case model.OpNotIn:
		return func(v model.TypedValue) bool { return !slices.Contains(values, v.String()) },
			bson.M{"$nin": values, "$ne": nil}
	case model.OpContains, model.OpNotContains:
		lowered := make([]string, 0, len(values))
		quoted := make([]string, 0, len(values))
		for _, v := range values {
			lowered = append(lowered, strings.ToLower(v))
			quoted = append(quoted, regexp.QuoteMeta(v))
		}
		contains := func(v model.TypedValue) bool {
			s := strings.ToLower(v.String())
			return slices.ContainsFunc(lowered, func(sub string) bool { return strings.Contains(s, sub) })
		}
		regex := primitive.Regex{Pattern: strings.Join(quoted, "|"), Options: "i"}
		if op == model.OpNotContains {
			return func(v model.TypedValue) bool { return !contains(v) }, bson.M{"$not": regex, "$ne": nil}
		}
		return contains, regex
	default:
		return func(v model.TypedValue) bool { return slices.Contains(values, v.String()) },
			bson.M{"$in": values}
	}
}

func compare(op string, a, b float64) bool {
	switch op {
	case model.OpLess:
		return a < b
	case model.OpLessEq:
		return a <= b
	case model.OpGreater:
		return a > b
	case model.OpGreaterEq:
		return a >= b
	}
	return false
}

func compareInt(op string, a, b int64) bool {
	switch op {
	case model.OpLess:
		return a < b
	case model.OpLessEq:
		return a <= b
	case model.OpGreater:
		return a > b
	case model.OpGreaterEq:
		return a >= b
	}
	return false
}

func resolveRange(d *model.DateRange, now time.Time) (start, end *time.Time) {
	if d.Type == model.DateRangeRolling {
		s := shift(now, -d.Value, d.Unit)
		e := now
		return &s, &e
	}
	return d.Start, d.End
}

func shift(t time.Time, n int, unit model.DateUnit) time.Time {
	switch unit {
	case model.UnitMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case model.UnitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case model.UnitDay:
		return t.AddDate(0, 0, n)
	case model.UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case model.UnitMonth:
		return t.AddDate(0, n, 0)
	case model.UnitYear:
		return t.AddDate(n, 0, 0)
	}
	return t
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func rangeBSON(start, end *time.Time) bson.M {
	r := bson.M{}
	if start != nil {
		r["$gte"] = *start
	}
	if end != nil {
		r["$lte"] = *end
	}
	return r
}
