package store

import (
	"context"
	"errors"
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/pkg/apperrors"
)

// QueryObserver receives the outcome of every store call.
type QueryObserver interface {
	ObserveQuery(operation string, elapsed time.Duration, err error)
}

// Guarded bounds every call of the wrapped store by a timeout and reports failures as
// evaluation errors. Calls are detached from the caller's cancellation: a query in flight
// completes even if the request goes away.
type Guarded struct {
	inner    InstanceStore
	timeout  func() time.Duration
	observer QueryObserver
}

func NewGuarded(inner InstanceStore, timeout func() time.Duration, observer QueryObserver) *Guarded {
	return &Guarded{inner: inner, timeout: timeout, observer: observer}
}

func (g *Guarded) run(ctx context.Context, operation string, call func(context.Context) error) error {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout())
	defer cancel()

	start := time.Now()
	err := call(qctx)
	if g.observer != nil {
		g.observer.ObserveQuery(operation, time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, "store query timed out")
	}
	return apperrors.Wrap(err, "store query failed")
}

func (g *Guarded) Search(ctx context.Context, req SearchRequest) ([]model.Instance, error) {
	var out []model.Instance
	err := g.run(ctx, "search", func(ctx context.Context) error {
		var err error
		out, err = g.inner.Search(ctx, req)
		return err
	})
	return out, err
}

func (g *Guarded) Count(ctx context.Context, req SearchRequest) (int64, error) {
	var n int64
	err := g.run(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = g.inner.Count(ctx, req)
		return err
	})
	return n, err
}

func (g *Guarded) LatestVersion(ctx context.Context, reportType model.ReportType, key string) (string, bool, error) {
	var (
		version string
		found   bool
	)
	err := g.run(ctx, "latest_version", func(ctx context.Context) error {
		var err error
		version, found, err = g.inner.LatestVersion(ctx, reportType, key)
		return err
	})
	return version, found, err
}
