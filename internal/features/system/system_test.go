package system

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthApp(ping error) *fiber.App {
	app := fiber.New()
	holder := config.NewSettingsHolder(&config.Config{Engine: config.EngineSettings{
		AutomaticIntervalBuckets: 80,
		MaxBuckets:               1000,
		CombinedConcurrency:      4,
		QueryTimeout:             30 * time.Second,
		RawDefaultLimit:          20,
		RawMaxLimit:              10000,
		Timezone:                 "UTC",
	}})
	NewHealthApi(pingerFunc(func(context.Context) error { return ping }), holder).Setup(app)
	return app
}

func TestHealth(t *testing.T) {
	app := healthApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestReady(t *testing.T) {
	resp, err := healthApp(nil).Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string                `json:"status"`
		Engine config.EngineSettings `json:"engine"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, 80, body.Engine.AutomaticIntervalBuckets)

	resp, err = healthApp(errors.New("no primary")).Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	collector.ObserveEvaluation("single", 20*time.Millisecond, nil)
	collector.ObserveQuery("search", time.Millisecond, errors.New("boom"))

	app := fiber.New()
	NewMetricsApi(collector).Setup(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `report_evaluations_total{kind="single",outcome="ok"} 1`)
	assert.Contains(t, string(body), `store_query_errors_total{operation="search"} 1`)
}
