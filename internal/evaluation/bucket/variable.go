package bucket

import (
	"math"
	"slices"
	"strconv"

	"go-reports/internal/evaluation/model"
)

func missingBucket() *Bucket {
	return &Bucket{Key: model.MissingKey, Label: model.MissingKey, Missing: true}
}

func groupByVariable(items []Item, ref model.VariableRef, opts Options) ([]*Bucket, error) {
	var missing *Bucket
	addMissing := func(it Item) {
		if missing == nil {
			missing = missingBucket()
		}
		missing.Items = append(missing.Items, it)
	}

	type valued struct {
		item  Item
		value model.TypedValue
	}
	present := make([]valued, 0, len(items))
	for _, it := range items {
		v, ok := it.Instance.TypedVariable(ref)
		if !ok {
			addMissing(it)
			continue
		}
		present = append(present, valued{item: it, value: v})
	}

	var buckets []*Bucket
	switch {
	case ref.Type == model.VarDate:
		dated := make([]datedItem, 0, len(present))
		for _, p := range present {
			dated = append(dated, datedItem{item: p.item, t: p.value.Time()})
		}
		unit := opts.GroupBy.DateUnit()
		// date variables never share a range with other reports
		dateOpts := opts
		dateOpts.DateRange = nil
		var err error
		buckets, err = groupByDate(dated, unit, dateOpts)
		if err != nil {
			return nil, err
		}
	case ref.Type.IsNumeric() && opts.CustomBucket != nil && opts.CustomBucket.Active && opts.CustomBucket.BucketSize > 0:
		nums := make([]float64, 0, len(present))
		its := make([]Item, 0, len(present))
		for _, p := range present {
			nums = append(nums, p.value.Number())
			its = append(its, p.item)
		}
		buckets = groupByRange(its, nums, ref.Type, *opts.CustomBucket, opts.MaxBuckets)
	default:
		index := map[string]*Bucket{}
		for _, p := range present {
			key := p.value.Key()
			b, ok := index[key]
			if !ok {
				b = valueBucket(p.value)
				index[key] = b
				buckets = append(buckets, b)
			}
			b.Items = append(b.Items, p.item)
		}
		sortBuckets(buckets)
	}

	if missing != nil {
		escapeMissingKey(buckets)
		buckets = append(buckets, missing)
	}
	return buckets, nil
}

// escapeMissingKey renames a value bucket whose key equals the missing bucket key, so keys stay
// unique. Underscores are appended until the key is free; the label keeps the value.
func escapeMissingKey(buckets []*Bucket) {
	taken := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		taken[b.Key] = true
	}
	for _, b := range buckets {
		if b.Key != model.MissingKey {
			continue
		}
		key := b.Key
		for taken[key] {
			key += "_"
		}
		b.Key = key
		taken[key] = true
	}
}

func valueBucket(v model.TypedValue) *Bucket {
	b := &Bucket{Key: v.Key(), Label: v.Key()}
	switch {
	case v.Type.IsIntegral():
		b.kind, b.i = kindInteger, v.Int()
	case v.Type.IsNumeric():
		b.kind, b.num = kindNumber, v.Number()
	case v.Type == model.VarBoolean:
		b.kind = kindNumber
		if v.Bool() {
			b.num = 1
		}
	}
	return b
}

// groupByRange buckets numbers into [baseline + k*size, baseline + (k+1)*size) intervals, filling
// empty intervals between the lowest and highest observed value.
func groupByRange(items []Item, nums []float64, typ model.VariableType, cb model.CustomBucket, maxBuckets int) []*Bucket {
	if len(nums) == 0 {
		return nil
	}
	index := func(n float64) int64 {
		return int64(math.Floor((n - cb.Baseline) / cb.BucketSize))
	}
	lo, hi := index(nums[0]), index(nums[0])
	for _, n := range nums[1:] {
		lo = min(lo, index(n))
		hi = max(hi, index(n))
	}

	byIndex := map[int64]*Bucket{}
	newBucket := func(k int64) *Bucket {
		start := cb.Baseline + float64(k)*cb.BucketSize
		key := numberKey(start, typ)
		return &Bucket{Key: key, Label: key, kind: kindNumber, num: start}
	}
	for i, n := range nums {
		k := index(n)
		b, ok := byIndex[k]
		if !ok {
			b = newBucket(k)
			byIndex[k] = b
		}
		b.Items = append(b.Items, items[i])
	}

	if maxBuckets > 0 && hi-lo+1 > int64(maxBuckets) {
		buckets := make([]*Bucket, 0, len(byIndex))
		for _, b := range byIndex {
			buckets = append(buckets, b)
		}
		sortBuckets(buckets)
		return buckets
	}
	buckets := make([]*Bucket, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		if b, ok := byIndex[k]; ok {
			buckets = append(buckets, b)
		} else {
			buckets = append(buckets, newBucket(k))
		}
	}
	return buckets
}

func numberKey(f float64, typ model.VariableType) string {
	if typ == model.VarDouble || f != math.Trunc(f) {
		return model.FormatDouble(f)
	}
	return strconv.FormatInt(int64(f), 10)
}

func sortBuckets(buckets []*Bucket) {
	slices.SortStableFunc(buckets, Compare)
}
