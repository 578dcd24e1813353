package mongo

import (
	"context"
	"errors"
	"time"

	"valhalla/gym-api/internal/domain"
	"valhalla/gym-api/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const clientCollectionName = "clients"

// clientDocument is the stored shape of a client record. The nutrition and
// progress sub-documents are persisted as serialized JSON text and decoded
// on read with a safe fallback, so a corrupt blob can never surface as a
// parse error to callers.
type clientDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Active         bool               `bson:"active"`
	Routine        string             `bson:"routine"`
	GoalWeight     string             `bson:"goalWeight"`
	AssignedUserID *string            `bson:"assignedUserId,omitempty"`
	Nutrition      string             `bson:"nutrition"`
	Progress       string             `bson:"progress"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func toDocument(client *domain.Client) clientDocument {
	return clientDocument{
		ID:             client.ID,
		Name:           client.Name,
		Active:         client.Active,
		Routine:        client.Routine,
		GoalWeight:     client.GoalWeight,
		AssignedUserID: client.AssignedUserID,
		Nutrition:      domain.EncodeNutrition(client.Nutrition),
		Progress:       domain.EncodeProgress(client.Progress),
		CreatedAt:      client.CreatedAt,
		UpdatedAt:      client.UpdatedAt,
	}
}

func fromDocument(doc clientDocument) domain.Client {
	return domain.Client{
		ID:             doc.ID,
		Name:           doc.Name,
		Active:         doc.Active,
		Routine:        doc.Routine,
		GoalWeight:     doc.GoalWeight,
		AssignedUserID: doc.AssignedUserID,
		Nutrition:      domain.DecodeNutrition(doc.Nutrition),
		Progress:       domain.DecodeProgress(doc.Progress),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// mongoClientRepository implements repository.ClientRepository using MongoDB.
type mongoClientRepository struct {
	collection *mongo.Collection
}

// NewMongoClientRepository creates a new instance of mongoClientRepository.
func NewMongoClientRepository(db *mongo.Database) repository.ClientRepository {
	return &mongoClientRepository{
		collection: db.Collection(clientCollectionName),
	}
}

// Create inserts a new client record.
func (r *mongoClientRepository) Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error) {
	if client.Name == "" {
		return primitive.NilObjectID, errors.New("client name is required")
	}

	client.ID = primitive.NewObjectID() // Generate new ObjectID
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	doc := toDocument(client)
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrAssignmentTaken
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a client record by its ObjectID.
func (r *mongoClientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	var doc clientDocument
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	client := fromDocument(doc)
	return &client, nil
}

// List retrieves all client records, most recently created first.
// ObjectIDs embed the creation timestamp, so sorting on _id descending
// gives insertion-recency order.
func (r *mongoClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []clientDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	clients := make([]domain.Client, len(docs))
	for i, doc := range docs {
		clients[i] = fromDocument(doc)
	}
	return clients, nil
}

// FindByAssignedUser retrieves the client assigned to the given user, if any.
func (r *mongoClientRepository) FindByAssignedUser(ctx context.Context, userID string) (*domain.Client, error) {
	var doc clientDocument
	filter := bson.M{"assignedUserId": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	client := fromDocument(doc)
	return &client, nil
}

// Update writes the whole client record. An unassigned client has no
// assignedUserId field at all ($unset), which keeps it out of the sparse
// unique index; a concurrent double-assign trips that index and comes back
// as ErrAssignmentTaken.
func (r *mongoClientRepository) Update(ctx context.Context, client *domain.Client) error {
	if client.ID == primitive.NilObjectID {
		return errors.New("client ID is required for update")
	}

	client.UpdatedAt = time.Now().UTC()
	doc := toDocument(client)

	set := bson.M{
		"name":       doc.Name,
		"active":     doc.Active,
		"routine":    doc.Routine,
		"goalWeight": doc.GoalWeight,
		"nutrition":  doc.Nutrition,
		"progress":   doc.Progress,
		"updatedAt":  doc.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if doc.AssignedUserID != nil {
		set["assignedUserId"] = *doc.AssignedUserID
	} else {
		update["$unset"] = bson.M{"assignedUserId": ""}
	}

	filter := bson.M{"_id": client.ID}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAssignmentTaken
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a client record. Hard delete, irreversible.
func (r *mongoClientRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureClientIndexes creates necessary indexes for the clients collection.
// The unique sparse index on assignedUserId enforces the one-client-per-user
// invariant at the storage layer, closing the check-then-act race between
// concurrent assignment requests.
func EnsureClientIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignedUserId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
