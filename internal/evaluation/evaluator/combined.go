package evaluator

import (
	"context"
	"errors"

	"go-reports/internal/evaluation/bucket"
	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// combinable are the result shapes a combined report can merge.
var combinable = map[model.ResultType]bool{
	model.ResultNumber: true,
	model.ResultMap:    true,
}

func (e *Engine) evaluateCombined(ctx context.Context, r *run, members []Member) (*model.CombinedResult, error) {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.ID] {
			return nil, apperrors.Internal("combined report lists member %q twice", m.ID)
		}
		seen[m.ID] = true
	}

	prepared := make([]*prepared, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.CombinedConcurrency)
	for i, m := range members {
		g.Go(func() error {
			if m.Data.IsRawData() {
				return nil
			}
			p, err := e.prepare(gctx, r, m.Data)
			if err != nil {
				return memberError(m, err)
			}
			prepared[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dateRange := sharedDateRange(prepared)
	out := &model.CombinedResult{}
	for i, m := range members {
		p := prepared[i]
		if p == nil {
			r.logger.Info("Skipping raw data member of combined report", zap.String("reportId", m.ID))
			continue
		}
		res, err := p.result(r, dateRange)
		if err != nil {
			return nil, memberError(m, err)
		}
		if !combinable[res.Type] {
			r.logger.Info("Skipping member with unsupported result type",
				zap.String("reportId", m.ID), zap.String("type", string(res.Type)))
			continue
		}
		if out.Type == "" {
			out.Type = res.Type
		}
		if res.Type != out.Type {
			r.logger.Info("Skipping member with mismatching result type",
				zap.String("reportId", m.ID), zap.String("type", string(res.Type)), zap.String("expected", string(out.Type)))
			continue
		}
		out.Entries = append(out.Entries, model.CombinedEntry{ReportID: m.ID, Name: m.Name, Result: res})
	}
	return out, nil
}

// sharedDateRange returns the union of the observed date ranges when every member groups by
// automatic date interval, so all members share bucket keys. Otherwise it returns nil.
func sharedDateRange(members []*prepared) *bucket.TimeRange {
	var union *bucket.TimeRange
	for _, p := range members {
		if p == nil {
			continue
		}
		if !p.automaticDateGrouping() {
			return nil
		}
		union = union.Union(bucket.ObservedRange(p.items, p.data.GroupBy.Type))
	}
	return union
}

func memberError(m Member, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	details := "report " + m.ID
	if appErr.Details != "" {
		details += ": " + appErr.Details
	}
	return apperrors.WithDetails(appErr, details)
}
