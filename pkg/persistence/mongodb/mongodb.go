// Package mongodb provides a MongoDB persistence implementation. Models are stored as
// embedded documents next to the handful of top-level fields that queries filter on.
package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	collectionWorkflows  = "workflows"
	collectionExecutions = "workflow_executions"
	collectionCandidates = "candidates"
	collectionTasks      = "tasks"

	// fieldDoc holds the JSON form of the stored model.
	fieldDoc = "doc"
)

// Persistence implements persistence.Persistence on MongoDB.
type Persistence struct {
	client *mongo.Client
	logger *slog.Logger

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	candidateRepo *CandidateRepository
	taskRepo      *TaskRepository
}

// NewPersistence connects to uri, selects database and ensures the query indexes exist.
func NewPersistence(ctx context.Context, logger *slog.Logger, uri, database string) (*Persistence, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)

	err = ensureIndexes(ctx, db)
	if err != nil {
		_ = client.Disconnect(ctx)

		return nil, err
	}

	logger.InfoContext(ctx, "Connected to MongoDB", "database", database)

	return &Persistence{
		client:        client,
		logger:        logger,
		workflowRepo:  &WorkflowRepository{collection: db.Collection(collectionWorkflows), logger: logger},
		executionRepo: &ExecutionRepository{collection: db.Collection(collectionExecutions), logger: logger},
		candidateRepo: &CandidateRepository{collection: db.Collection(collectionCandidates), logger: logger},
		taskRepo:      &TaskRepository{collection: db.Collection(collectionTasks), logger: logger},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) CandidateRepository() persistence.CandidateRepository {
	return p.candidateRepo
}

func (p *Persistence) TaskRepository() persistence.TaskRepository {
	return p.taskRepo
}

// HealthCheck pings the primary.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx, readpref.Primary())
	if err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (p *Persistence) Close(ctx context.Context) error {
	err := p.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		collectionWorkflows: {
			{Keys: bson.D{{Key: "triggerType", Value: 1}, {Key: "isActive", Value: 1}}},
		},
		collectionExecutions: {
			{Keys: bson.D{{Key: "workflowId", Value: 1}, {Key: "startedAt", Value: -1}}},
			{Keys: bson.D{{Key: "workflowId", Value: 1}, {Key: "candidateId", Value: 1}}},
		},
		collectionTasks: {
			{Keys: bson.D{{Key: "candidateId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for collection, indexModels := range indexes {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexModels)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	return nil
}

// toDocument converts a model to BSON through its JSON form, so the custom trigger and
// action encoders define the stored shape.
func toDocument(value any) (bson.D, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var doc bson.D

	err = bson.UnmarshalExtJSON(data, false, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}

	return doc, nil
}

// fromDocument is the inverse of toDocument.
func fromDocument(raw bson.Raw, target any) error {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return fmt.Errorf("failed to convert document: %w", err)
	}

	return json.Unmarshal(data, target)
}

func decodeAll[T any](ctx context.Context, logger *slog.Logger, cursor *mongo.Cursor) ([]*T, error) {
	defer func() {
		err := cursor.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "failed to close cursor", "error", err)
		}
	}()

	items := make([]*T, 0)

	for cursor.Next(ctx) {
		raw, err := cursor.Current.LookupErr(fieldDoc)
		if err != nil {
			return nil, fmt.Errorf("document without payload: %w", err)
		}

		var item T

		err = fromDocument(raw.Document(), &item)
		if err != nil {
			return nil, err
		}

		items = append(items, &item)
	}

	err := cursor.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating cursor: %w", err)
	}

	return items, nil
}

func decodeOne(result *mongo.SingleResult, target any) error {
	raw, err := result.Raw()
	if err != nil {
		return err
	}

	doc, err := raw.LookupErr(fieldDoc)
	if err != nil {
		return fmt.Errorf("document without payload: %w", err)
	}

	return fromDocument(doc.Document(), target)
}
