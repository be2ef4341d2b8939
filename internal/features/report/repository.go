package report

import (
	"context"
	"time"

	"go-reports/internal/database"
	"go-reports/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ReportCollection = "reports"

type ReportRepository interface {
	Create(ctx context.Context, report *ReportDefinition) error
	GetReport(ctx context.Context, id string) (*ReportDefinition, error)
	GetSingleReportsForIDs(ctx context.Context, ids []string) ([]ReportDefinition, error)
	List(ctx context.Context, owner string) ([]ReportDefinition, error)
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, report *ReportDefinition) error
}

type ReportRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewReportRepository(db *database.MongodbDB) ReportRepository {
	return &ReportRepositoryImpl{
		Collection: db.DB.Collection(ReportCollection),
	}
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, report *ReportDefinition) error {
	report.CreatedAt = time.Now()
	report.LastModified = report.CreatedAt
	_, err := r.Collection.InsertOne(ctx, report)
	return err
}

func (r *ReportRepositoryImpl) GetReport(ctx context.Context, id string) (*ReportDefinition, error) {
	var report ReportDefinition
	err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("report %s does not exist", id)
		}
		return nil, err
	}
	return &report, nil
}

// GetSingleReportsForIDs returns the single reports among ids in the order of ids. Missing ids
// and combined reports are skipped.
func (r *ReportRepositoryImpl) GetSingleReportsForIDs(ctx context.Context, ids []string) ([]ReportDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "kind": KindSingle})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []ReportDefinition
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	return inRequestedOrder(ids, found), nil
}

func (r *ReportRepositoryImpl) List(ctx context.Context, owner string) ([]ReportDefinition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastModified", Value: -1}})
	cursor, err := r.Collection.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []ReportDefinition
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepositoryImpl) Delete(ctx context.Context, id string) error {
	res, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("report %s does not exist", id)
	}
	return nil
}

func (r *ReportRepositoryImpl) Upsert(ctx context.Context, report *ReportDefinition) error {
	now := time.Now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.LastModified = now
	opts := options.Replace().SetUpsert(true)
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": report.ID}, report, opts)
	return err
}

func inRequestedOrder(ids []string, found []ReportDefinition) []ReportDefinition {
	byID := make(map[string]ReportDefinition, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	ordered := make([]ReportDefinition, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
			delete(byID, id)
		}
	}
	return ordered
}
