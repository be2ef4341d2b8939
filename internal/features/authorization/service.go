package authorization

import (
	"context"
	"slices"

	"go-reports/internal/evaluation/model"
	"go-reports/internal/logger"
	"go-reports/pkg/apperrors"

	"go.uber.org/zap"
)

type AuthorizationService interface {
	// Role resolves the access userID has on a report. Failing definition grants yield RoleNone.
	Role(ctx context.Context, userID string, subject Subject) (Role, error)
}

type AuthorizationServiceImpl struct {
	repo   AuthorizationRepository
	logger *zap.Logger
}

func NewAuthorizationService(repo AuthorizationRepository, logger *zap.Logger) AuthorizationService {
	return &AuthorizationServiceImpl{repo: repo, logger: logger}
}

func (s *AuthorizationServiceImpl) Role(ctx context.Context, userID string, subject Subject) (Role, error) {
	if userID == "" {
		return RoleNone, nil
	}

	role, err := s.reportRole(ctx, userID, subject)
	if err != nil || role == RoleNone {
		return RoleNone, err
	}

	grants, err := s.repo.GetGrants(ctx, userID)
	if err != nil {
		return RoleNone, apperrors.Internal("failed to load definition authorizations: %v", err)
	}
	for _, source := range subject.Sources {
		if !covered(grants, subject.ReportType, source) {
			s.logger.Debug("Definition not authorized",
				zap.String(logger.UserIDKey, userID),
				zap.String("definitionKey", source.Key),
			)
			return RoleNone, nil
		}
	}
	return role, nil
}

func (s *AuthorizationServiceImpl) reportRole(ctx context.Context, userID string, subject Subject) (Role, error) {
	switch {
	case subject.AdHoc:
		return RoleEditor, nil
	case subject.Owner == userID:
		return RoleManager, nil
	case subject.CollectionID == "":
		return RoleNone, nil
	}

	collection, err := s.repo.GetCollection(ctx, subject.CollectionID)
	if err != nil {
		return RoleNone, apperrors.Internal("failed to load collection %s: %v", subject.CollectionID, err)
	}
	if collection == nil {
		return RoleNone, nil
	}
	return collection.MemberRole(userID), nil
}

// covered reports whether the grants give access to every tenant of source.
func covered(grants []DefinitionAuthorization, reportType model.ReportType, source model.DataSource) bool {
	for _, tenant := range source.TenantIDs() {
		ok := slices.ContainsFunc(grants, func(g DefinitionAuthorization) bool {
			return g.ReportType == reportType &&
				(g.DefinitionKey == Wildcard || g.DefinitionKey == source.Key) &&
				grantsTenant(g, tenant)
		})
		if !ok {
			return false
		}
	}
	return true
}

func grantsTenant(g DefinitionAuthorization, tenant string) bool {
	if len(g.Tenants) == 0 {
		return tenant == model.DefaultTenant
	}
	return slices.Contains(g.Tenants, Wildcard) || slices.Contains(g.Tenants, tenant)
}
