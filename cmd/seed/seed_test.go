package main

import (
	"context"
	"testing"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/features/authorization"
	"go-reports/internal/features/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingWriter struct {
	written map[model.ReportType]int
}

func (w *recordingWriter) Upsert(_ context.Context, reportType model.ReportType, instances []model.Instance) error {
	w.written[reportType] += len(instances)
	return nil
}

type recordingReports struct {
	report.ReportRepository
	upserted []string
}

func (r *recordingReports) Upsert(_ context.Context, def *report.ReportDefinition) error {
	r.upserted = append(r.upserted, def.ID)
	return nil
}

type recordingAuth struct {
	authorization.AuthorizationRepository
	grants      []string
	collections []string
}

func (a *recordingAuth) UpsertGrant(_ context.Context, g *authorization.DefinitionAuthorization) error {
	a.grants = append(a.grants, g.ID)
	return nil
}

func (a *recordingAuth) UpsertCollection(_ context.Context, c *authorization.Collection) error {
	a.collections = append(a.collections, c.ID)
	return nil
}

func settingsSource(t *testing.T) *config.SettingsHolder {
	engine := config.EngineSettings{
		AutomaticIntervalBuckets: 80,
		MaxBuckets:               1000,
		CombinedConcurrency:      2,
		QueryTimeout:             time.Second,
		RawDefaultLimit:          20,
		RawMaxLimit:              100,
	}
	require.NoError(t, engine.Normalize())
	return config.NewSettingsHolder(&config.Config{Engine: engine})
}

func TestBundledFixturesEvaluate(t *testing.T) {
	fixtures, err := LoadFixtures("../../fixtures/seed.yaml")
	require.NoError(t, err)
	assert.Len(t, fixtures.Instances.Process, 4)
	assert.Len(t, fixtures.Instances.Decision, 2)
	require.NotEmpty(t, fixtures.Reports)

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, DryRun(context.Background(), fixtures, settingsSource(t), zap.New(core)))
	assert.Len(t, logs.FilterMessage("Report evaluated").All(), len(fixtures.Reports)-1)
	assert.Len(t, logs.FilterMessage("Combined report evaluated").All(), 1)
}

func TestSeedUpsertsEverything(t *testing.T) {
	fixtures, err := LoadFixtures("../../fixtures/seed.yaml")
	require.NoError(t, err)

	writer := &recordingWriter{written: map[model.ReportType]int{}}
	reports := &recordingReports{}
	auth := &recordingAuth{}

	require.NoError(t, NewSeeder(writer, reports, auth, zap.NewNop()).Seed(context.Background(), fixtures))
	assert.Equal(t, 4, writer.written[model.ReportTypeProcess])
	assert.Equal(t, 2, writer.written[model.ReportTypeDecision])
	assert.Len(t, reports.upserted, len(fixtures.Reports))
	assert.Equal(t, []string{"finance"}, auth.collections)
	assert.Len(t, auth.grants, len(fixtures.Grants))
	assert.Equal(t, model.ReportTypeProcess, fixtures.Reports[0].ReportType)
}

func TestParseFixturesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "reports: [unterminated"},
		{"report without name", "reports:\n  - {id: r1, kind: single}\n"},
		{"report without id", "reports:\n  - {name: Nameless, kind: combined, combinedData: {reports: [a]}}\n"},
		{"grant without user", "grants:\n  - {id: g1, definitionKey: invoice, reportType: process}\n"},
		{"instance without key", "instances:\n  process:\n    - {id: p1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
