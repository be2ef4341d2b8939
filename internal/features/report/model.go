package report

import (
	"time"

	"go-reports/internal/evaluation/model"
	"go-reports/internal/features/authorization"
)

type ReportKind string

const (
	KindSingle   ReportKind = "single"
	KindCombined ReportKind = "combined"
)

// CombinedData lists the single reports shown together, in display order.
type CombinedData struct {
	Reports       []string `json:"reports" bson:"reports" yaml:"reports" validate:"required,min=1"`
	Visualization string   `json:"visualization,omitempty" bson:"visualization,omitempty" yaml:"visualization"`
}

// ReportDefinition is a saved report. Single reports carry Data, combined reports CombinedData.
type ReportDefinition struct {
	ID           string            `json:"id" bson:"_id" yaml:"id"`
	Name         string            `json:"name" bson:"name" yaml:"name" validate:"required"`
	Owner        string            `json:"owner" bson:"owner" yaml:"owner"`
	CollectionID string            `json:"collectionId,omitempty" bson:"collectionId,omitempty" yaml:"collectionId"`
	Kind         ReportKind        `json:"kind" bson:"kind" yaml:"kind" validate:"required,oneof=single combined"`
	ReportType   model.ReportType  `json:"reportType,omitempty" bson:"reportType,omitempty" yaml:"reportType"`
	Data         *model.ReportData `json:"data,omitempty" bson:"data,omitempty" yaml:"data" validate:"required_if=Kind single"`
	CombinedData *CombinedData     `json:"combinedData,omitempty" bson:"combinedData,omitempty" yaml:"combinedData" validate:"required_if=Kind combined"`
	CreatedAt    time.Time         `json:"createdAt" bson:"createdAt" yaml:"-"`
	LastModified time.Time         `json:"lastModified" bson:"lastModified" yaml:"-"`
}

func (d *ReportDefinition) IsCombined() bool {
	return d.Kind == KindCombined
}

// Sources returns the data sources of a single report, nil for combined reports.
func (d *ReportDefinition) Sources() []model.DataSource {
	if d.Data == nil {
		return nil
	}
	return d.Data.DataSources
}

// EvaluationOptions are the per-call overrides of an evaluation.
type EvaluationOptions struct {
	Filters     []model.Filter `json:"filters"`
	RecordLimit int            `json:"recordLimit"`
	PageToken   string         `json:"pageToken"`
	Timezone    string         `json:"-"`
}

// AuthorizedResult pairs an evaluation with the role the caller holds on the report.
type AuthorizedResult struct {
	Report          *ReportDefinition       `json:"reportDefinition"`
	CurrentUserRole authorization.Role      `json:"currentUserRole"`
	Result          *model.EvaluationResult `json:"result,omitempty"`
	CombinedResult  *model.CombinedResult   `json:"combinedResult,omitempty"`
}
