package evaluator

import (
	"context"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/evaluation/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluation kinds reported to the Observer.
const (
	KindSingle   = "single"
	KindRaw      = "raw"
	KindCombined = "combined"
)

// SettingsSource yields the engine settings in effect.
type SettingsSource interface {
	Load() *config.EngineSettings
}

// Observer receives the outcome of every evaluation.
type Observer interface {
	ObserveEvaluation(kind string, elapsed time.Duration, err error)
}

// Options tune one evaluation call.
type Options struct {
	// Location overrides the configured timezone of date buckets.
	Location *time.Location
	// RecordLimit is the raw data page size; 0 uses the configured default.
	RecordLimit int
	// PageToken continues a previous raw data page.
	PageToken string
}

// Member is one single report of a combined report.
type Member struct {
	ID   string
	Name string
	Data model.ReportData
}

// Engine evaluates report definitions against an instance store. It keeps no state between
// calls.
type Engine struct {
	store    store.InstanceStore
	settings SettingsSource
	observer Observer
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewEngine(st store.InstanceStore, settings SettingsSource, observer Observer, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		settings: settings,
		observer: observer,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// run captures the settings snapshot and clock of one evaluation.
type run struct {
	id       string
	now      time.Time
	settings *config.EngineSettings
	location *time.Location
	logger   *zap.Logger
}

func (e *Engine) begin(kind string, opts Options) *run {
	s := e.settings.Load()
	loc := opts.Location
	if loc == nil {
		loc = s.Location()
	}
	id := uuid.NewString()
	return &run{
		id:       id,
		now:      e.now(),
		settings: s,
		location: loc,
		logger:   e.logger.With(zap.String("evaluationId", id), zap.String("kind", kind)),
	}
}

func (e *Engine) finish(r *run, kind string, err error) {
	elapsed := e.now().Sub(r.now)
	if e.observer != nil {
		e.observer.ObserveEvaluation(kind, elapsed, err)
	}
	if err != nil {
		r.logger.Debug("Evaluation failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	r.logger.Debug("Evaluation finished", zap.Duration("elapsed", elapsed))
}

// Evaluate evaluates a single report. Raw data views return one page of rows.
func (e *Engine) Evaluate(ctx context.Context, data model.ReportData, opts Options) (result *model.EvaluationResult, err error) {
	kind := KindSingle
	if data.IsRawData() {
		kind = KindRaw
	}
	r := e.begin(kind, opts)
	defer func() { e.finish(r, kind, err) }()

	if data.IsRawData() {
		return e.evaluateRaw(ctx, r, data, opts)
	}
	p, err := e.prepare(ctx, r, data)
	if err != nil {
		return nil, err
	}
	return p.result(r, nil)
}

// EvaluateCombined evaluates the members of a combined report concurrently and merges their
// results in member order. Callers must authorize every member beforehand.
func (e *Engine) EvaluateCombined(ctx context.Context, members []Member, opts Options) (result *model.CombinedResult, err error) {
	r := e.begin(KindCombined, opts)
	defer func() { e.finish(r, KindCombined, err) }()
	return e.evaluateCombined(ctx, r, members)
}
