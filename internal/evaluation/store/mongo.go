package store

import (
	"context"
	"fmt"

	"go-reports/internal/database"
	"go-reports/internal/evaluation/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ProcessInstanceCollection  = "process_instances"
	DecisionInstanceCollection = "decision_instances"
)

type MongoStore struct {
	DB *mongo.Database
}

func NewMongoStore(db *database.MongodbDB) *MongoStore {
	return &MongoStore{DB: db.DB}
}

func (s *MongoStore) collection(reportType model.ReportType) *mongo.Collection {
	if reportType == model.ReportTypeDecision {
		return s.DB.Collection(DecisionInstanceCollection)
	}
	return s.DB.Collection(ProcessInstanceCollection)
}

func (s *MongoStore) Search(ctx context.Context, req SearchRequest) ([]model.Instance, error) {
	opts := options.Find().SetSort(sortDocument(sortOrDefault(req.Sort)))
	if req.Limit > 0 {
		opts.SetLimit(int64(req.Limit))
	}
	if req.Offset > 0 {
		opts.SetSkip(int64(req.Offset))
	}

	cursor, err := s.collection(req.ReportType).Find(ctx, req.Query.Pushdown(req.Sources), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []model.Instance
	if err := cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *MongoStore) Count(ctx context.Context, req SearchRequest) (int64, error) {
	return s.collection(req.ReportType).CountDocuments(ctx, req.Query.Pushdown(req.Sources))
}

func (s *MongoStore) LatestVersion(ctx context.Context, reportType model.ReportType, key string) (string, bool, error) {
	raw, err := s.collection(reportType).Distinct(ctx, "definitionVersion", bson.M{"definitionKey": key})
	if err != nil {
		return "", false, err
	}
	versions := make([]string, 0, len(raw))
	for _, v := range raw {
		versions = append(versions, fmt.Sprint(v))
	}
	v, ok := highestVersion(versions)
	return v, ok, nil
}

// Upsert replaces instances by id. Completed instances get their duration computed when missing.
func (s *MongoStore) Upsert(ctx context.Context, reportType model.ReportType, instances []model.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(instances))
	for _, inst := range instances {
		normalize(&inst)
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": inst.ID}).
			SetReplacement(inst).
			SetUpsert(true))
	}
	_, err := s.collection(reportType).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

func normalize(inst *model.Instance) {
	if inst.DurationMs == nil && inst.EndDate != nil {
		d := inst.EndDate.Sub(inst.StartDate).Milliseconds()
		inst.DurationMs = &d
	}
	for i := range inst.FlowNodes {
		fn := &inst.FlowNodes[i]
		if fn.DurationMs == nil && fn.EndDate != nil {
			d := fn.EndDate.Sub(fn.StartDate).Milliseconds()
			fn.DurationMs = &d
		}
	}
}

// EnsureIndexes creates the indexes used by source selection, sorting and filters.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "definitionKey", Value: 1}, {Key: "definitionVersion", Value: 1}, {Key: "tenantId", Value: 1}}},
		{Keys: bson.D{{Key: "startDate", Value: -1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "endDate", Value: -1}}},
		{Keys: bson.D{{Key: "flowNodes.flowNodeId", Value: 1}}},
		{Keys: bson.D{{Key: "variables.name", Value: 1}}},
	}
	for _, rt := range []model.ReportType{model.ReportTypeProcess, model.ReportTypeDecision} {
		if _, err := s.collection(rt).Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
	}
	return nil
}

var sortFields = map[string]string{
	model.SortByStartDate:   "startDate",
	model.SortByEndDate:     "endDate",
	model.SortByDuration:    "durationMs",
	model.SortByBusinessKey: "businessKey",
}

func sortDocument(s model.Sorting) bson.D {
	field, ok := sortFields[s.By]
	if !ok {
		field = "startDate"
	}
	dir := 1
	if s.Order == model.SortDesc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}
}
