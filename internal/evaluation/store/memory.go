package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go-reports/internal/evaluation/model"
)

// MemoryStore keeps instances in memory. It evaluates queries exactly.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[model.ReportType][]model.Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: map[model.ReportType][]model.Instance{}}
}

// Add stores instances, replacing existing ones with the same id.
func (s *MemoryStore) Add(reportType model.ReportType, instances ...model.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range instances {
		list := s.instances[reportType]
		idx := slices.IndexFunc(list, func(existing model.Instance) bool { return existing.ID == inst.ID })
		if idx >= 0 {
			list[idx] = inst
		} else {
			list = append(list, inst)
		}
		s.instances[reportType] = list
	}
}

func (s *MemoryStore) matching(req SearchRequest) []model.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Instance
	for _, inst := range s.instances[req.ReportType] {
		for _, src := range req.Sources {
			if src.Contains(&inst) && req.Query.MatchInstance(&inst, src.ID()) {
				out = append(out, inst)
				break
			}
		}
	}
	return out
}

func (s *MemoryStore) Search(ctx context.Context, req SearchRequest) ([]model.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.matching(req)
	sortInstances(out, sortOrDefault(req.Sort))
	if req.Offset > 0 {
		if req.Offset >= len(out) {
			return nil, nil
		}
		out = out[req.Offset:]
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, req SearchRequest) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(s.matching(req))), nil
}

func (s *MemoryStore) LatestVersion(ctx context.Context, reportType model.ReportType, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var versions []string
	for _, inst := range s.instances[reportType] {
		if inst.DefinitionKey == key {
			versions = append(versions, inst.DefinitionVersion)
		}
	}
	v, ok := highestVersion(versions)
	return v, ok, nil
}

// sortInstances mirrors the store ordering: missing values sort lowest, ties by id.
func sortInstances(list []model.Instance, s model.Sorting) {
	slices.SortStableFunc(list, func(a, b model.Instance) int {
		var c int
		switch s.By {
		case model.SortByEndDate:
			c = compareOptionalTime(a.EndDate, b.EndDate)
		case model.SortByDuration:
			c = compareOptionalInt(a.DurationMs, b.DurationMs)
		case model.SortByBusinessKey:
			c = cmp.Compare(a.BusinessKey, b.BusinessKey)
		default:
			c = a.StartDate.Compare(b.StartDate)
		}
		if s.Order == model.SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func compareOptionalInt(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}
