package main

import (
	"context"
	"fmt"

	"go-reports/internal/evaluation/evaluator"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"
	"go-reports/internal/features/authorization"
	"go-reports/internal/features/report"

	"go.uber.org/zap"
)

// InstanceWriter stores instance documents. Implemented by *store.MongoStore.
type InstanceWriter interface {
	Upsert(ctx context.Context, reportType model.ReportType, instances []model.Instance) error
}

type Seeder struct {
	instances InstanceWriter
	reports   report.ReportRepository
	auth      authorization.AuthorizationRepository
	logger    *zap.Logger
}

func NewSeeder(instances InstanceWriter, reports report.ReportRepository, auth authorization.AuthorizationRepository, logger *zap.Logger) *Seeder {
	return &Seeder{instances: instances, reports: reports, auth: auth, logger: logger}
}

// Seed upserts every fixture, so running it twice leaves the same documents.
func (s *Seeder) Seed(ctx context.Context, f *Fixtures) error {
	if err := s.instances.Upsert(ctx, model.ReportTypeProcess, f.Instances.Process); err != nil {
		return fmt.Errorf("failed to seed process instances: %w", err)
	}
	if err := s.instances.Upsert(ctx, model.ReportTypeDecision, f.Instances.Decision); err != nil {
		return fmt.Errorf("failed to seed decision instances: %w", err)
	}
	s.logger.Info("Seeded instances",
		zap.Int("process", len(f.Instances.Process)),
		zap.Int("decision", len(f.Instances.Decision)),
	)

	for i := range f.Collections {
		if err := s.auth.UpsertCollection(ctx, &f.Collections[i]); err != nil {
			return fmt.Errorf("failed to seed collection %s: %w", f.Collections[i].ID, err)
		}
	}
	for i := range f.Grants {
		if err := s.auth.UpsertGrant(ctx, &f.Grants[i]); err != nil {
			return fmt.Errorf("failed to seed grant %s: %w", f.Grants[i].ID, err)
		}
	}
	s.logger.Info("Seeded authorizations", zap.Int("collections", len(f.Collections)), zap.Int("grants", len(f.Grants)))

	for i := range f.Reports {
		r := &f.Reports[i]
		if r.Data != nil {
			r.ReportType = r.Data.ReportType
		}
		if err := s.reports.Upsert(ctx, r); err != nil {
			return fmt.Errorf("failed to seed report %s: %w", r.ID, err)
		}
	}
	s.logger.Info("Seeded reports", zap.Int("reports", len(f.Reports)))
	return nil
}

// DryRun evaluates every fixture report against an in-memory copy of the fixture instances
// without touching the database.
func DryRun(ctx context.Context, f *Fixtures, settings evaluator.SettingsSource, logger *zap.Logger) error {
	st := store.NewMemoryStore()
	st.Add(model.ReportTypeProcess, f.Instances.Process...)
	st.Add(model.ReportTypeDecision, f.Instances.Decision...)
	engine := evaluator.NewEngine(st, settings, nil, logger)

	failed := 0
	for i := range f.Reports {
		r := &f.Reports[i]
		log := logger.With(zap.String("report", r.ID))

		if r.IsCombined() {
			var members []evaluator.Member
			for _, m := range f.singleMembers(r) {
				members = append(members, evaluator.Member{ID: m.ID, Name: m.Name, Data: *m.Data})
			}
			res, err := engine.EvaluateCombined(ctx, members, evaluator.Options{})
			if err != nil {
				failed++
				log.Error("Combined report does not evaluate", zap.Error(err))
				continue
			}
			log.Info("Combined report evaluated", zap.String("type", string(res.Type)), zap.Int("members", len(res.Entries)))
			continue
		}

		if r.Data == nil {
			failed++
			log.Error("Report has no definition data")
			continue
		}
		res, err := engine.Evaluate(ctx, *r.Data, evaluator.Options{})
		if err != nil {
			failed++
			log.Error("Report does not evaluate", zap.Error(err))
			continue
		}
		log.Info("Report evaluated",
			zap.String("type", string(res.Type)),
			zap.Int64("instanceCount", res.InstanceCount),
			zap.Bool("complete", res.IsComplete),
		)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fixture reports failed to evaluate", failed, len(f.Reports))
	}
	return nil
}
