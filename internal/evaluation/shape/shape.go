package shape

import (
	"cmp"
	"slices"

	"go-reports/internal/evaluation/bucket"
	"go-reports/internal/evaluation/model"
)

// Measure computes the view value of a set of items.
type Measure struct {
	Property    model.ViewProperty
	Aggregation model.AggregationType
}

// Value is the item count for frequency views and the aggregated duration otherwise.
// Durations of an empty set are nil.
func (m Measure) Value(items []bucket.Item) *float64 {
	if m.Property == model.PropertyFrequency {
		n := float64(len(items))
		return &n
	}
	if len(items) == 0 {
		return nil
	}
	values := make([]float64, 0, len(items))
	for _, it := range items {
		values = append(values, it.Value)
	}
	v := aggregate(values, m.Aggregation)
	return &v
}

func aggregate(values []float64, agg model.AggregationType) float64 {
	switch agg {
	case model.AggregationMin:
		return slices.Min(values)
	case model.AggregationMax:
		return slices.Max(values)
	case model.AggregationSum:
		return sum(values)
	case model.AggregationMedian:
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	default:
		return sum(values) / float64(len(values))
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

type Options struct {
	GroupBy      model.GroupBy
	Distribution model.DistributedByType
	Sources      []model.DataSource
	Sorting      *model.Sorting
	// Limit is the maximum number of buckets per dimension; 0 disables truncation.
	Limit   int
	Measure Measure
}

type entry struct {
	bucket *bucket.Bucket
	value  *float64
}

// Map turns buckets into map entries, sorted and truncated. complete is false when buckets
// were dropped by the limit.
func Map(buckets []*bucket.Bucket, opts Options) (entries []model.MapEntry, complete bool) {
	rows := make([]entry, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, entry{bucket: b, value: opts.Measure.Value(b.Items)})
	}
	sortEntries(rows, opts.GroupBy, opts.Sorting)
	rows, complete = truncate(rows, opts.Limit)

	entries = make([]model.MapEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, model.MapEntry{Key: r.bucket.Key, Value: r.value, Label: r.bucket.Label})
	}
	return entries, complete
}

// HyperMap distributes every outer bucket over the distribution dimension. Each series has one
// entry per distribution key seen anywhere in the result, filled with the empty measure.
func HyperMap(buckets []*bucket.Bucket, opts Options) (entries []model.HyperMapEntry, complete bool) {
	var all []bucket.Item
	for _, b := range buckets {
		all = append(all, b.Items...)
	}
	inner := bucket.ByDimension(all, opts.Distribution, opts.Sources)
	inner, complete = truncateBuckets(inner, opts.Limit)

	type outer struct {
		entry
		series []model.MapEntry
	}
	rows := make([]outer, 0, len(buckets))
	for _, b := range buckets {
		byKey := map[string][]bucket.Item{}
		for _, it := range b.Items {
			if key, _, ok := bucket.DimensionKey(it, opts.Distribution); ok {
				byKey[key] = append(byKey[key], it)
			}
		}
		series := make([]model.MapEntry, 0, len(inner))
		var total *float64
		for _, ib := range inner {
			v := opts.Measure.Value(byKey[ib.Key])
			series = append(series, model.MapEntry{Key: ib.Key, Value: v, Label: ib.Label})
			total = addValue(total, v)
		}
		rows = append(rows, outer{entry: entry{bucket: b, value: total}, series: series})
	}

	sortable := make([]entry, len(rows))
	position := make(map[*bucket.Bucket]int, len(rows))
	for i, r := range rows {
		sortable[i] = r.entry
		position[r.bucket] = i
	}
	sortEntries(sortable, opts.GroupBy, opts.Sorting)
	sortable, outerComplete := truncate(sortable, opts.Limit)

	entries = make([]model.HyperMapEntry, 0, len(sortable))
	for _, s := range sortable {
		r := rows[position[s.bucket]]
		entries = append(entries, model.HyperMapEntry{Key: r.bucket.Key, Label: r.bucket.Label, Value: r.series})
	}
	return entries, complete && outerComplete
}

func addValue(total, v *float64) *float64 {
	if v == nil {
		return total
	}
	if total == nil {
		t := *v
		return &t
	}
	t := *total + *v
	return &t
}

// sortEntries applies the configured sorting. Without one, groupings with date keys are sorted
// by key descending and everything else keeps the bucket order. The missing bucket always stays
// last.
func sortEntries(rows []entry, groupBy model.GroupBy, sorting *model.Sorting) {
	unsorted := sorting == nil || (sorting.By == "" && sorting.Order == "")
	if unsorted && !groupBy.HasDateKeys() {
		return
	}
	by, order := model.SortByKey, model.SortAsc
	if groupBy.HasDateKeys() {
		order = model.SortDesc
	}
	if sorting != nil {
		if sorting.By == model.SortByValue {
			by = model.SortByValue
		}
		if sorting.Order != "" {
			order = sorting.Order
		}
	}

	slices.SortStableFunc(rows, func(a, b entry) int {
		if a.bucket.Missing != b.bucket.Missing {
			if a.bucket.Missing {
				return 1
			}
			return -1
		}
		if by == model.SortByValue {
			if c := compareValues(a.value, b.value, order); c != 0 {
				return c
			}
			return bucket.Compare(a.bucket, b.bucket)
		}
		c := bucket.Compare(a.bucket, b.bucket)
		if order == model.SortDesc {
			return -c
		}
		return c
	})
}

// compareValues keeps nil values last regardless of order.
func compareValues(a, b *float64, order model.SortOrder) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := cmp.Compare(*a, *b)
	if order == model.SortDesc {
		return -c
	}
	return c
}

func truncate(rows []entry, limit int) ([]entry, bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, true
	}
	return rows[:limit], false
}

func truncateBuckets(buckets []*bucket.Bucket, limit int) ([]*bucket.Bucket, bool) {
	if limit <= 0 || len(buckets) <= limit {
		return buckets, true
	}
	return buckets[:limit], false
}
