package store

import (
	"cmp"
	"context"
	"strconv"
	"strings"

	"go-reports/internal/evaluation/filter"
	"go-reports/internal/evaluation/model"
)

// SearchRequest selects instances of the given sources. Query may be nil.
type SearchRequest struct {
	ReportType model.ReportType
	Sources    []model.DataSource
	Query      *filter.Query
	Sort       *model.Sorting
	Limit      int
	Offset     int
}

// InstanceStore is the document store holding process and decision instances.
//
// Search may return a superset of the instances accepted by the query when the query is not
// exact; callers re-apply the query in memory. Count is only exact for exact queries.
type InstanceStore interface {
	Search(ctx context.Context, req SearchRequest) ([]model.Instance, error)
	Count(ctx context.Context, req SearchRequest) (int64, error)
	// LatestVersion returns the highest deployed version of a definition key.
	LatestVersion(ctx context.Context, reportType model.ReportType, key string) (string, bool, error)
}

// DefaultSort orders raw rows by start date, newest first.
var DefaultSort = model.Sorting{By: model.SortByStartDate, Order: model.SortDesc}

func sortOrDefault(s *model.Sorting) model.Sorting {
	if s == nil || s.By == "" {
		return DefaultSort
	}
	out := *s
	if out.Order == "" {
		out.Order = model.SortAsc
	}
	return out
}

// compareVersions orders numeric versions numerically and everything else lexically.
func compareVersions(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

func highestVersion(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if compareVersions(v, best) > 0 {
			best = v
		}
	}
	return best, true
}
