package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go-reports/internal/config"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/features/authorization"
	"go-reports/internal/middleware"
	"go-reports/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReportService struct {
	mock.Mock
}

func (m *mockReportService) CreateReport(ctx context.Context, userID string, report *ReportDefinition) error {
	return m.Called(ctx, userID, report).Error(0)
}

func (m *mockReportService) GetReport(ctx context.Context, userID, id string) (*ReportDefinition, error) {
	args := m.Called(ctx, userID, id)
	report, _ := args.Get(0).(*ReportDefinition)
	return report, args.Error(1)
}

func (m *mockReportService) ListReports(ctx context.Context, userID string) ([]ReportDefinition, error) {
	args := m.Called(ctx, userID)
	reports, _ := args.Get(0).([]ReportDefinition)
	return reports, args.Error(1)
}

func (m *mockReportService) DeleteReport(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockReportService) EvaluateSaved(ctx context.Context, userID, reportID string, opts EvaluationOptions) (*AuthorizedResult, error) {
	args := m.Called(ctx, userID, reportID, opts)
	res, _ := args.Get(0).(*AuthorizedResult)
	return res, args.Error(1)
}

func (m *mockReportService) EvaluateAdHoc(ctx context.Context, userID string, report *ReportDefinition, opts EvaluationOptions) (*AuthorizedResult, error) {
	args := m.Called(ctx, userID, report, opts)
	res, _ := args.Get(0).(*AuthorizedResult)
	return res, args.Error(1)
}

func (m *mockReportService) Export(ctx context.Context, userID, reportID string, format ExportFormat) ([]byte, string, error) {
	args := m.Called(ctx, userID, reportID, format)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Error(2)
}

func newTestApp(svc ReportService) *fiber.App {
	app := fiber.New()
	NewReportApi(NewReportController(svc), &config.Config{SkipAuth: true}).Setup(app)
	return app
}

func numberResult(v float64) *AuthorizedResult {
	return &AuthorizedResult{
		Report:          &ReportDefinition{ID: "r1", Kind: KindSingle},
		CurrentUserRole: authorization.RoleViewer,
		Result:          &model.EvaluationResult{Type: model.ResultNumber, Number: &v, IsComplete: true},
	}
}

func TestEvaluateEndpointPassesOptions(t *testing.T) {
	svc := new(mockReportService)
	svc.On("EvaluateSaved", mock.Anything, middleware.DevUserID, "r1", mock.MatchedBy(func(o EvaluationOptions) bool {
		return len(o.Filters) == 1 &&
			o.Filters[0].Type == model.FilterRunningInstancesOnly &&
			o.Timezone == "Europe/Berlin" &&
			o.RecordLimit == 50
	})).Return(numberResult(7), nil)

	req := httptest.NewRequest("POST", "/api/reports/r1/evaluate?recordLimit=50",
		strings.NewReader(`{"filters":[{"type":"runningInstancesOnly"}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TimezoneHeader, "Europe/Berlin")

	resp, err := newTestApp(svc).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		CurrentUserRole string `json:"currentUserRole"`
		Result          struct {
			Type string  `json:"type"`
			Data float64 `json:"data"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "viewer", body.CurrentUserRole)
	assert.Equal(t, "number", body.Result.Type)
	assert.Equal(t, 7.0, body.Result.Data)
	svc.AssertExpectations(t)
}

func TestEvaluateEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"forbidden", apperrors.Forbidden("no access"), fiber.StatusForbidden},
		{"validation", apperrors.Validation("view is required"), fiber.StatusBadRequest},
		{"store failure", apperrors.Evaluation("store query timed out"), fiber.StatusInternalServerError},
		{"not found", apperrors.NotFound("report r1 does not exist"), fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockReportService)
			svc.On("EvaluateSaved", mock.Anything, mock.Anything, "r1", mock.Anything).Return(nil, tt.err)

			resp, err := newTestApp(svc).Test(httptest.NewRequest("GET", "/api/reports/r1/evaluate", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestEvaluateAdHocEndpoint(t *testing.T) {
	svc := new(mockReportService)
	svc.On("EvaluateAdHoc", mock.Anything, middleware.DevUserID, mock.MatchedBy(func(r *ReportDefinition) bool {
		return r.Name == "draft" && r.Kind == KindSingle
	}), mock.Anything).Return(numberResult(1), nil)

	req := httptest.NewRequest("POST", "/api/reports/evaluate",
		strings.NewReader(`{"report":{"name":"draft","kind":"single"}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := newTestApp(svc).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestExportEndpoint(t *testing.T) {
	svc := new(mockReportService)
	svc.On("Export", mock.Anything, middleware.DevUserID, "r1", FormatCSV).Return([]byte("value\n3\n"), "invoices.csv", nil)

	resp, err := newTestApp(svc).Test(httptest.NewRequest("GET", "/api/reports/r1/export", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=invoices.csv", resp.Header.Get("Content-Disposition"))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "value\n3\n", string(body))
}

func TestDeleteEndpoint(t *testing.T) {
	svc := new(mockReportService)
	svc.On("DeleteReport", mock.Anything, middleware.DevUserID, "r1").Return(nil)

	resp, err := newTestApp(svc).Test(httptest.NewRequest("DELETE", "/api/reports/r1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
