package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"go-reports/pkg/apperrors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, "validation", Outcome(apperrors.Validation("no view")))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
}

func TestObserveEvaluation(t *testing.T) {
	c := NewCollector()
	c.ObserveEvaluation("single", 20*time.Millisecond, nil)
	c.ObserveEvaluation("single", time.Millisecond, apperrors.Forbidden("no"))
	c.ObserveEvaluation("combined", time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("single", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("single", "forbidden")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("combined", OutcomeOK)))
}

func TestObserveQueryCountsErrors(t *testing.T) {
	c := NewCollector()
	c.ObserveQuery("search", time.Millisecond, nil)
	c.ObserveQuery("search", time.Millisecond, errors.New("timeout"))

	assert.Equal(t, float64(1), testutil.ToFloat64(c.queryErrors.WithLabelValues("search")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveEvaluation("raw", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `report_evaluations_total{kind="raw",outcome="ok"} 1`)
}
