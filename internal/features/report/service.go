package report

import (
	"context"
	"math"
	"time"

	"go-reports/internal/evaluation/evaluator"
	"go-reports/internal/evaluation/model"
	"go-reports/internal/features/authorization"
	"go-reports/internal/logger"
	"go-reports/pkg/apperrors"
	"go-reports/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluator runs report definitions. Implemented by *evaluator.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, data model.ReportData, opts evaluator.Options) (*model.EvaluationResult, error)
	EvaluateCombined(ctx context.Context, members []evaluator.Member, opts evaluator.Options) (*model.CombinedResult, error)
}

type ReportService interface {
	CreateReport(ctx context.Context, userID string, report *ReportDefinition) error
	GetReport(ctx context.Context, userID, id string) (*ReportDefinition, error)
	ListReports(ctx context.Context, userID string) ([]ReportDefinition, error)
	DeleteReport(ctx context.Context, userID, id string) error
	EvaluateSaved(ctx context.Context, userID, reportID string, opts EvaluationOptions) (*AuthorizedResult, error)
	EvaluateAdHoc(ctx context.Context, userID string, report *ReportDefinition, opts EvaluationOptions) (*AuthorizedResult, error)
	Export(ctx context.Context, userID, reportID string, format ExportFormat) ([]byte, string, error)
}

type ReportServiceImpl struct {
	ReportRepo  ReportRepository
	AuthService authorization.AuthorizationService
	Evaluator   Evaluator
	logger      *zap.Logger
	validate    *validator.Validate
	now         func() time.Time
}

func NewReportService(reportRepo ReportRepository, authService authorization.AuthorizationService, evaluator Evaluator, logger *zap.Logger) ReportService {
	return &ReportServiceImpl{
		ReportRepo:  reportRepo,
		AuthService: authService,
		Evaluator:   evaluator,
		logger:      logger,
		validate:    validator.New(),
		now:         time.Now,
	}
}

func (s *ReportServiceImpl) CreateReport(ctx context.Context, userID string, report *ReportDefinition) error {
	if err := s.validateDefinition(report); err != nil {
		return err
	}
	report.ID = uuid.NewString()
	report.Owner = userID
	if err := s.ReportRepo.Create(ctx, report); err != nil {
		return apperrors.Internal("failed to save report: %v", err)
	}
	s.logger.Info("Report created",
		zap.String(logger.ReportIDKey, report.ID),
		zap.String(logger.UserIDKey, userID),
		zap.String("kind", string(report.Kind)),
	)
	return nil
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, userID, id string) (*ReportDefinition, error) {
	report, err := s.ReportRepo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, userID, report, false, authorization.RoleViewer); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportServiceImpl) ListReports(ctx context.Context, userID string) ([]ReportDefinition, error) {
	reports, err := s.ReportRepo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list reports: %v", err)
	}
	if reports == nil {
		reports = []ReportDefinition{}
	}
	return reports, nil
}

func (s *ReportServiceImpl) DeleteReport(ctx context.Context, userID, id string) error {
	report, err := s.ReportRepo.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, userID, report, false, authorization.RoleEditor); err != nil {
		return err
	}
	if err := s.ReportRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Report deleted", zap.String(logger.ReportIDKey, id), zap.String(logger.UserIDKey, userID))
	return nil
}

func (s *ReportServiceImpl) EvaluateSaved(ctx context.Context, userID, reportID string, opts EvaluationOptions) (*AuthorizedResult, error) {
	report, err := s.ReportRepo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, userID, report, false, opts)
}

// EvaluateAdHoc evaluates an unsaved definition. It gets a fresh id and the caller as owner.
func (s *ReportServiceImpl) EvaluateAdHoc(ctx context.Context, userID string, report *ReportDefinition, opts EvaluationOptions) (*AuthorizedResult, error) {
	if err := s.validateDefinition(report); err != nil {
		return nil, err
	}
	report.ID = uuid.NewString()
	report.Owner = userID
	return s.evaluate(ctx, userID, report, true, opts)
}

func (s *ReportServiceImpl) Export(ctx context.Context, userID, reportID string, format ExportFormat) ([]byte, string, error) {
	if format != FormatCSV && format != FormatXLSX {
		return nil, "", apperrors.Validation("unsupported export format %q", format)
	}

	report, err := s.ReportRepo.GetReport(ctx, reportID)
	if err != nil {
		return nil, "", err
	}
	res, err := s.evaluate(ctx, userID, report, false, EvaluationOptions{RecordLimit: math.MaxInt32})
	if err != nil {
		return nil, "", err
	}
	if err := s.collectRawPages(ctx, userID, report, res); err != nil {
		return nil, "", err
	}

	t := resultTable(res)
	var data []byte
	if format == FormatXLSX {
		data, err = writeExcel(t)
	} else {
		data, err = writeCSV(t)
	}
	if err != nil {
		return nil, "", apperrors.Internal("failed to write %s export: %v", format, err)
	}
	return data, exportFilename(utils.Slugify(res.Report.Name, "report"), format, s.now()), nil
}

// collectRawPages follows the continuation tokens of a raw data result so an
// export holds every row, not just the first page of RAW_MAX_LIMIT rows.
func (s *ReportServiceImpl) collectRawPages(ctx context.Context, userID string, report *ReportDefinition, res *AuthorizedResult) error {
	r := res.Result
	if r == nil || r.Type != model.ResultRaw {
		return nil
	}
	pages := 1
	for r.Pagination != nil && r.Pagination.NextToken != "" {
		next, err := s.evaluate(ctx, userID, report, false, EvaluationOptions{RecordLimit: math.MaxInt32, PageToken: r.Pagination.NextToken})
		if err != nil {
			return err
		}
		if next.Result == nil || next.Result.Type != model.ResultRaw {
			return apperrors.Internal("raw export page %d returned no raw data", pages+1)
		}
		r.Raw = append(r.Raw, next.Result.Raw...)
		r.Pagination = next.Result.Pagination
		pages++
	}
	if pages > 1 {
		s.logger.Info("Raw export collected",
			zap.String(logger.ReportIDKey, report.ID),
			zap.Int("pages", pages),
			zap.Int("rows", len(r.Raw)))
	}
	return nil
}

func (s *ReportServiceImpl) evaluate(ctx context.Context, userID string, report *ReportDefinition, adHoc bool, opts EvaluationOptions) (*AuthorizedResult, error) {
	log := s.logger.With(zap.String(logger.ReportIDKey, report.ID), zap.String(logger.UserIDKey, userID))

	role, err := s.authorize(ctx, userID, report, adHoc, authorization.RoleViewer)
	if err != nil {
		return nil, err
	}

	engineOpts := evaluator.Options{RecordLimit: opts.RecordLimit, PageToken: opts.PageToken}
	if opts.Timezone != "" {
		loc, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, apperrors.Validation("unknown timezone %q", opts.Timezone)
		}
		engineOpts.Location = loc
	}

	out := &AuthorizedResult{Report: report, CurrentUserRole: role}
	if report.IsCombined() {
		if report.CombinedData == nil {
			return nil, apperrors.Validation("combined report %s lists no reports", report.ID)
		}
		if len(opts.Filters) > 0 {
			log.Info("Ignoring additional filters for combined report", zap.Int("filters", len(opts.Filters)))
		}
		members, err := s.combinedMembers(ctx, userID, report, log)
		if err != nil {
			return nil, err
		}
		out.CombinedResult, err = s.Evaluator.EvaluateCombined(ctx, members, engineOpts)
		if err != nil {
			log.Warn("Combined report evaluation failed", zap.Error(err))
			return nil, err
		}
		log.Info("Combined report evaluated", zap.Int("members", len(out.CombinedResult.Entries)))
		return out, nil
	}

	if report.Data == nil {
		return nil, apperrors.Validation("report %s has no definition data", report.ID)
	}
	data := *report.Data
	if len(opts.Filters) > 0 {
		if data.ReportType == model.ReportTypeProcess {
			data = data.WithFilters(opts.Filters)
		} else {
			log.Info("Ignoring additional filters for non-process report",
				zap.String("reportType", string(data.ReportType)),
				zap.Int("filters", len(opts.Filters)),
			)
		}
	}

	out.Result, err = s.Evaluator.Evaluate(ctx, data, engineOpts)
	if err != nil {
		log.Warn("Report evaluation failed", zap.Error(err))
		return nil, err
	}
	log.Info("Report evaluated",
		zap.String("resultType", string(out.Result.Type)),
		zap.Int64("instanceCount", out.Result.InstanceCount),
	)
	return out, nil
}

// combinedMembers resolves the member reports and requires a role on every one of them before
// anything is evaluated.
func (s *ReportServiceImpl) combinedMembers(ctx context.Context, userID string, report *ReportDefinition, log *zap.Logger) ([]evaluator.Member, error) {
	ids := report.CombinedData.Reports
	reports, err := s.ReportRepo.GetSingleReportsForIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to load combined report members: %v", err)
	}
	if len(reports) < len(ids) {
		log.Warn("Combined report references missing reports",
			zap.Strings("requested", ids),
			zap.Int("found", len(reports)),
		)
	}

	members := make([]evaluator.Member, 0, len(reports))
	for i := range reports {
		member := &reports[i]
		if member.Data == nil {
			log.Warn("Skipping combined report member without data", zap.String("memberId", member.ID))
			continue
		}
		if _, err := s.authorize(ctx, userID, member, false, authorization.RoleViewer); err != nil {
			if apperrors.IsForbidden(err) {
				return nil, apperrors.Forbidden("user %s is not authorized to evaluate combined report %s", userID, report.ID)
			}
			return nil, err
		}
		members = append(members, evaluator.Member{ID: member.ID, Name: member.Name, Data: *member.Data})
	}
	return members, nil
}

func (s *ReportServiceImpl) authorize(ctx context.Context, userID string, report *ReportDefinition, adHoc bool, required authorization.Role) (authorization.Role, error) {
	subject := authorization.Subject{
		Owner:        report.Owner,
		CollectionID: report.CollectionID,
		Sources:      report.Sources(),
		AdHoc:        adHoc,
	}
	if report.Data != nil {
		subject.ReportType = report.Data.ReportType
	}
	role, err := s.AuthService.Role(ctx, userID, subject)
	if err != nil {
		return authorization.RoleNone, err
	}
	if role == authorization.RoleNone || !role.AtLeast(required) {
		return role, apperrors.Forbidden("user %s is not authorized to access report %s", userID, report.ID)
	}
	return role, nil
}

func (s *ReportServiceImpl) validateDefinition(report *ReportDefinition) error {
	if report == nil {
		return apperrors.Validation("report definition is required")
	}
	if err := s.validate.Struct(report); err != nil {
		return apperrors.WithDetails(apperrors.Validation("report definition is incomplete"), err.Error())
	}
	if report.Kind == KindSingle {
		report.ReportType = report.Data.ReportType
	}
	return nil
}
