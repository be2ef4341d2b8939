package bucket

import (
	"cmp"
	"slices"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"
)

// UnassignedKey groups user tasks without an assignee.
const (
	UnassignedKey   = "__unassigned__"
	UnassignedLabel = "Unassigned"
)

// Item is one contributing element of a report: an instance, or one flow-node execution of an
// instance, counted for one data source. Overlapping sources yield one item per source.
type Item struct {
	Instance  *model.Instance
	Execution *model.FlowNodeExecution
	Source    model.DataSource
	// Value is the measured duration in milliseconds. Unused for frequency views.
	Value float64
}

// Date returns the start or end date the item is grouped by.
func (it Item) Date(groupBy model.GroupByType) (time.Time, bool) {
	if it.Execution != nil {
		if groupBy == model.GroupByEndDate {
			if it.Execution.EndDate == nil {
				return time.Time{}, false
			}
			return *it.Execution.EndDate, true
		}
		return it.Execution.StartDate, true
	}
	if groupBy == model.GroupByEndDate {
		if it.Instance.EndDate == nil {
			return time.Time{}, false
		}
		return *it.Instance.EndDate, true
	}
	return it.Instance.StartDate, true
}

type keyKind int

const (
	kindString keyKind = iota
	kindNumber
	kindInteger
	kindTime
)

type Bucket struct {
	Key     string
	Label   string
	Items   []Item
	Missing bool

	kind keyKind
	num  float64
	i    int64
	t    time.Time
}

// Compare orders buckets by their natural key order. The missing bucket always sorts last.
func Compare(a, b *Bucket) int {
	if a.Missing != b.Missing {
		if a.Missing {
			return 1
		}
		return -1
	}
	if a.kind == b.kind {
		switch a.kind {
		case kindNumber:
			if c := cmp.Compare(a.num, b.num); c != 0 {
				return c
			}
		case kindInteger:
			if c := cmp.Compare(a.i, b.i); c != 0 {
				return c
			}
		case kindTime:
			if c := a.t.Compare(b.t); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(a.Key, b.Key)
}

// Options configures one grouping pass.
type Options struct {
	GroupBy          model.GroupBy
	Location         *time.Location
	AutomaticBuckets int
	// MaxBuckets caps the number of empty buckets generated to fill gaps in date and range groupings.
	MaxBuckets   int
	CustomBucket *model.CustomBucket
	// DateRange overrides the observed range of automatic date groupings.
	DateRange *TimeRange
	// Sources seeds one bucket per data source for process groupings.
	Sources []model.DataSource
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Group splits items into buckets in natural key order.
func Group(items []Item, opts Options) ([]*Bucket, error) {
	switch opts.GroupBy.Type {
	case model.GroupByNone:
		return []*Bucket{{Items: items}}, nil
	case model.GroupByStartDate, model.GroupByEndDate:
		dated := make([]datedItem, 0, len(items))
		for _, it := range items {
			if t, ok := it.Date(opts.GroupBy.Type); ok {
				dated = append(dated, datedItem{item: it, t: t})
			}
		}
		return groupByDate(dated, opts.GroupBy.DateUnit(), opts)
	case model.GroupByVariable:
		if opts.GroupBy.Variable == nil {
			return nil, apperrors.Validation("variable grouping requires a variable")
		}
		return groupByVariable(items, *opts.GroupBy.Variable, opts)
	case model.GroupByFlowNodes, model.GroupByUserTasks:
		return ByDimension(items, model.DistributeFlowNode, nil), nil
	case model.GroupByAssignee:
		return ByDimension(items, model.DistributeAssignee, nil), nil
	case model.GroupByProcess:
		return ByDimension(items, model.DistributeProcess, opts.Sources), nil
	}
	return nil, apperrors.Validation("unsupported group by %q", opts.GroupBy.Type)
}

// ByDimension groups items by an entity dimension: data source, flow node or assignee.
// For the process dimension every given source gets a bucket even when it has no items.
func ByDimension(items []Item, dim model.DistributedByType, sources []model.DataSource) []*Bucket {
	index := map[string]*Bucket{}
	var buckets []*Bucket
	get := func(key, label string) *Bucket {
		if b, ok := index[key]; ok {
			return b
		}
		b := &Bucket{Key: key, Label: label}
		index[key] = b
		buckets = append(buckets, b)
		return b
	}

	if dim == model.DistributeProcess {
		for _, s := range sources {
			get(s.ID(), s.Label())
		}
	}
	for _, it := range items {
		key, label, ok := DimensionKey(it, dim)
		if !ok {
			continue
		}
		b := get(key, label)
		b.Items = append(b.Items, it)
	}
	slices.SortStableFunc(buckets, Compare)
	return buckets
}

// DimensionKey returns the key and label of an item along an entity dimension.
func DimensionKey(it Item, dim model.DistributedByType) (key, label string, ok bool) {
	switch dim {
	case model.DistributeProcess:
		return it.Source.ID(), it.Source.Label(), true
	case model.DistributeFlowNode, model.DistributeUserTask:
		if it.Execution == nil {
			return "", "", false
		}
		return it.Execution.FlowNodeID, it.Execution.Label(), true
	case model.DistributeAssignee:
		if it.Execution == nil {
			return "", "", false
		}
		if it.Execution.Assignee == "" {
			return UnassignedKey, UnassignedLabel, true
		}
		return it.Execution.Assignee, it.Execution.Assignee, true
	}
	return "", "", false
}
