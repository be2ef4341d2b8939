package evaluator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"slices"

	"go-reports/internal/evaluation/filter"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"
	"go-reports/pkg/apperrors"
)

type pageToken struct {
	Offset int `json:"offset"`
}

func encodePageToken(offset int) string {
	b, _ := json.Marshal(pageToken{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, apperrors.Validation("malformed page token")
	}
	var t pageToken
	if err := json.Unmarshal(raw, &t); err != nil || t.Offset < 0 {
		return 0, apperrors.Validation("malformed page token")
	}
	return t.Offset, nil
}

func recordLimit(r *run, requested int) int {
	switch {
	case requested <= 0:
		return r.settings.RawDefaultLimit
	case requested > r.settings.RawMaxLimit:
		return r.settings.RawMaxLimit
	}
	return requested
}

// evaluateRaw returns one page of matching instances, newest first unless the report sorts
// otherwise. Pages never split an instance.
func (e *Engine) evaluateRaw(ctx context.Context, r *run, data model.ReportData, opts Options) (*model.EvaluationResult, error) {
	if err := e.validateReport(data); err != nil {
		return nil, err
	}
	query, err := filter.Compile(data, r.now)
	if err != nil {
		return nil, err
	}
	offset, err := decodePageToken(opts.PageToken)
	if err != nil {
		return nil, err
	}
	sources, err := e.resolveSources(ctx, r, data)
	if err != nil {
		return nil, err
	}

	limit := recordLimit(r, opts.RecordLimit)
	res := &model.EvaluationResult{
		Type:       model.ResultRaw,
		IsComplete: true,
		Pagination: &model.Pagination{Limit: limit},
	}
	if len(sources) == 0 {
		return res, nil
	}

	req := store.SearchRequest{
		ReportType: data.ReportType,
		Sources:    sources,
		Query:      query,
		Sort:       data.Configuration.Sorting,
	}
	var (
		page    []model.Instance
		hasMore bool
	)
	if query.Exact() {
		req.Limit, req.Offset = limit+1, offset
		page, err = e.store.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(page) > limit {
			page, hasMore = page[:limit], true
		}
		req.Limit, req.Offset = 0, 0
		if res.InstanceCount, err = e.store.Count(ctx, req); err != nil {
			return nil, err
		}
	} else {
		all, err := e.store.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		all = slices.DeleteFunc(all, func(inst model.Instance) bool {
			return !matchesAnySource(&inst, sources, query)
		})
		res.InstanceCount = int64(len(all))
		if offset < len(all) {
			end := min(offset+limit, len(all))
			page, hasMore = all[offset:end], end < len(all)
		}
	}

	if res.InstanceCountWithoutFilters, err = e.countWithoutFilters(ctx, data.ReportType, sources, query, res.InstanceCount); err != nil {
		return nil, err
	}
	res.Raw = rawRows(page)
	if hasMore {
		res.Pagination.NextToken = encodePageToken(offset + len(page))
	}
	return res, nil
}

func matchesAnySource(inst *model.Instance, sources []model.DataSource, query *filter.Query) bool {
	for _, src := range sources {
		if src.Contains(inst) && query.MatchInstance(inst, src.ID()) {
			return true
		}
	}
	return false
}

// rawRows renders instances as rows. Every row carries every variable name seen on the page,
// with an empty string where the instance has no value.
func rawRows(instances []model.Instance) []model.RawRow {
	names := map[string]bool{}
	for _, inst := range instances {
		for _, v := range inst.Variables {
			names[v.Name] = true
		}
	}

	rows := make([]model.RawRow, 0, len(instances))
	for _, inst := range instances {
		vars := make(map[string]string, len(names))
		for name := range names {
			vars[name] = ""
		}
		for _, v := range inst.Variables {
			if v.Value != nil {
				vars[v.Name] = *v.Value
			}
		}
		rows = append(rows, model.RawRow{
			InstanceID:    inst.ID,
			DefinitionID:  inst.DefinitionID,
			DefinitionKey: inst.DefinitionKey,
			Version:       inst.DefinitionVersion,
			TenantID:      inst.TenantID,
			BusinessKey:   inst.BusinessKey,
			State:         inst.State,
			StartDate:     inst.StartDate,
			EndDate:       inst.EndDate,
			DurationMs:    inst.DurationMs,
			Variables:     vars,
		})
	}
	return rows
}
