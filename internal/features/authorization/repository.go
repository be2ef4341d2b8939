package authorization

import (
	"context"

	"go-reports/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	GrantCollection      = "definition_authorizations"
	CollectionCollection = "collections"
)

type AuthorizationRepository interface {
	GetGrants(ctx context.Context, userID string) ([]DefinitionAuthorization, error)
	GetCollection(ctx context.Context, id string) (*Collection, error)
	UpsertGrant(ctx context.Context, grant *DefinitionAuthorization) error
	UpsertCollection(ctx context.Context, collection *Collection) error
}

type AuthorizationRepositoryImpl struct {
	Grants      *mongo.Collection
	Collections *mongo.Collection
}

func NewAuthorizationRepository(mongodb *database.MongodbDB) AuthorizationRepository {
	return &AuthorizationRepositoryImpl{
		Grants:      mongodb.DB.Collection(GrantCollection),
		Collections: mongodb.DB.Collection(CollectionCollection),
	}
}

func (r *AuthorizationRepositoryImpl) GetGrants(ctx context.Context, userID string) ([]DefinitionAuthorization, error) {
	cursor, err := r.Grants.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []DefinitionAuthorization
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

// GetCollection returns nil without error when the collection does not exist.
func (r *AuthorizationRepositoryImpl) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var collection Collection
	err := r.Collections.FindOne(ctx, bson.M{"_id": id}).Decode(&collection)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &collection, nil
}

func (r *AuthorizationRepositoryImpl) UpsertGrant(ctx context.Context, grant *DefinitionAuthorization) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.Grants.ReplaceOne(ctx, bson.M{"_id": grant.ID}, grant, opts)
	return err
}

func (r *AuthorizationRepositoryImpl) UpsertCollection(ctx context.Context, collection *Collection) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.Collections.ReplaceOne(ctx, bson.M{"_id": collection.ID}, collection, opts)
	return err
}
