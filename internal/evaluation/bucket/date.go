package bucket

import (
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"
)

// KeyFormat renders date bucket keys.
const KeyFormat = "2006-01-02T15:04:05.000-0700"

type TimeRange struct {
	Min time.Time
	Max time.Time
}

// Union widens r to include other. A nil receiver yields other.
func (r *TimeRange) Union(other *TimeRange) *TimeRange {
	if other == nil {
		return r
	}
	if r == nil {
		c := *other
		return &c
	}
	out := *r
	if other.Min.Before(out.Min) {
		out.Min = other.Min
	}
	if other.Max.After(out.Max) {
		out.Max = other.Max
	}
	return &out
}

type datedItem struct {
	item Item
	t    time.Time
}

// ObservedRange returns the range of dates items are grouped by, nil when no item has one.
func ObservedRange(items []Item, groupBy model.GroupByType) *TimeRange {
	var r *TimeRange
	for _, it := range items {
		t, ok := it.Date(groupBy)
		if !ok {
			continue
		}
		r = r.Union(&TimeRange{Min: t, Max: t})
	}
	return r
}

// Truncate returns the start of the unit interval containing t. Weeks start on Monday.
func Truncate(t time.Time, unit model.DateUnit, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	switch unit {
	case model.UnitYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	case model.UnitMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case model.UnitWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case model.UnitDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case model.UnitHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case model.UnitMinute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	}
	return t
}

func next(t time.Time, unit model.DateUnit, loc *time.Location) time.Time {
	switch unit {
	case model.UnitYear:
		return Truncate(t.AddDate(1, 0, 0), unit, loc)
	case model.UnitMonth:
		return Truncate(t.AddDate(0, 1, 0), unit, loc)
	case model.UnitWeek:
		return Truncate(t.AddDate(0, 0, 7), unit, loc)
	case model.UnitDay:
		return Truncate(t.AddDate(0, 0, 1), unit, loc)
	case model.UnitHour:
		return Truncate(t.Add(time.Hour), unit, loc)
	default:
		return Truncate(t.Add(time.Minute), unit, loc)
	}
}

func dateBucket(t time.Time, loc *time.Location) *Bucket {
	key := t.In(loc).Format(KeyFormat)
	return &Bucket{Key: key, Label: key, kind: kindTime, t: t}
}

func groupByDate(items []datedItem, unit model.DateUnit, opts Options) ([]*Bucket, error) {
	switch unit {
	case model.UnitAutomatic:
		return groupByAutomaticInterval(items, opts), nil
	case model.UnitYear, model.UnitMonth, model.UnitWeek, model.UnitDay, model.UnitHour, model.UnitMinute:
		return groupByUnit(items, unit, opts), nil
	}
	return nil, apperrors.Validation("unsupported date unit %q", unit)
}

// groupByUnit emits one bucket per unit interval between the first and last observed date,
// including empty ones. When the span exceeds MaxBuckets only observed intervals are emitted.
func groupByUnit(items []datedItem, unit model.DateUnit, opts Options) []*Bucket {
	if len(items) == 0 {
		return nil
	}
	loc := opts.location()
	observed := map[time.Time]*Bucket{}
	var first, last time.Time
	for i, di := range items {
		start := Truncate(di.t, unit, loc)
		b, ok := observed[start]
		if !ok {
			b = dateBucket(start, loc)
			observed[start] = b
		}
		b.Items = append(b.Items, di.item)
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || start.After(last) {
			last = start
		}
	}

	var buckets []*Bucket
	limit := opts.MaxBuckets
	for t := first; !t.After(last); t = next(t, unit, loc) {
		if limit > 0 && len(buckets) >= limit {
			return observedOnly(observed)
		}
		if b, ok := observed[t]; ok {
			buckets = append(buckets, b)
		} else {
			buckets = append(buckets, dateBucket(t, loc))
		}
	}
	return buckets
}

func observedOnly(observed map[time.Time]*Bucket) []*Bucket {
	buckets := make([]*Bucket, 0, len(observed))
	for _, b := range observed {
		buckets = append(buckets, b)
	}
	sortBuckets(buckets)
	return buckets
}

// groupByAutomaticInterval splits the observed range into AutomaticBuckets equally wide buckets,
// never more than MaxBuckets. The width never drops below one millisecond so keys stay unique,
// which yields fewer buckets on spans shorter than the target in milliseconds. A zero-width
// range yields a single bucket.
func groupByAutomaticInterval(items []datedItem, opts Options) []*Bucket {
	loc := opts.location()
	r := opts.DateRange
	for _, di := range items {
		r = r.Union(&TimeRange{Min: di.t, Max: di.t})
	}
	if r == nil {
		return nil
	}

	target := opts.AutomaticBuckets
	if opts.MaxBuckets > 0 {
		target = min(target, opts.MaxBuckets)
	}
	if target <= 0 {
		target = 1
	}
	span := r.Max.Sub(r.Min)
	if span <= 0 {
		b := dateBucket(r.Min, loc)
		for _, di := range items {
			b.Items = append(b.Items, di.item)
		}
		return []*Bucket{b}
	}

	width := span/time.Duration(target) + 1
	if width < time.Millisecond {
		width = time.Millisecond
	}
	count := int(span/width) + 1

	buckets := make([]*Bucket, count)
	for i := range buckets {
		buckets[i] = dateBucket(r.Min.Add(time.Duration(i)*width), loc)
	}
	for _, di := range items {
		idx := int(di.t.Sub(r.Min) / width)
		if idx < 0 || idx >= count {
			continue
		}
		buckets[idx].Items = append(buckets[idx].Items, di.item)
	}
	return buckets
}
