package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// counterFields are owned by RecordExecution; Save only fills them when they are missing.
var counterFields = []string{"executionCount", "successCount", "failureCount", "lastExecutedAt"}

// WorkflowRepository stores workflows in the workflows collection.
type WorkflowRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	return decodeAll[models.Workflow](ctx, r.logger, cursor)
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := decodeOne(r.collection.FindOne(ctx, bson.M{"_id": id}), &workflow)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	filter := bson.M{"triggerType": string(triggerType), "isActive": true}
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows by trigger type: %w", err)
	}

	return decodeAll[models.Workflow](ctx, r.logger, cursor)
}

// Save upserts a workflow. The trigger type filter makes a type change miss the existing
// document and collide on _id, which is then reported as ErrTriggerTypeChanged. Counters
// already stored win over the ones carried by workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	doc, err := toDocument(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	counters := bson.D{}

	for _, field := range counterFields {
		var current any

		for _, element := range doc {
			if element.Key == field {
				current = element.Value
			}
		}

		counters = append(counters, bson.E{
			Key:   field,
			Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + fieldDoc + "." + field, current}}},
		})
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isActive", Value: workflow.IsActive},
			{Key: "priority", Value: workflow.Priority},
			{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", workflow.CreatedAt}}}},
			{Key: fieldDoc, Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
				bson.D{{Key: "$literal", Value: doc}},
				counters,
			}}}},
		}}},
	}

	filter := bson.M{"_id": workflow.ID, "triggerType": string(workflow.Trigger.Type())}

	_, err = r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrTriggerTypeChanged)
	}

	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (r *WorkflowRepository) RecordExecution(ctx context.Context, id string, succeeded bool, at time.Time) error {
	outcome := fieldDoc + ".failureCount"
	if succeeded {
		outcome = fieldDoc + ".successCount"
	}

	update := bson.D{
		{Key: "$inc", Value: bson.D{
			{Key: fieldDoc + ".executionCount", Value: 1},
			{Key: outcome, Value: 1},
		}},
		{Key: "$set", Value: bson.D{
			{Key: fieldDoc + ".lastExecutedAt", Value: at.UTC().Format(time.RFC3339Nano)},
		}},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return persistence.NewWorkflowError("RecordExecution", id, err)
	}

	if result.MatchedCount == 0 {
		return persistence.NewWorkflowError("RecordExecution", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// ExecutionRepository stores execution records in the workflow_executions collection.
type ExecutionRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	doc, err := toDocument(execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	_, err = r.collection.InsertOne(ctx, bson.D{
		{Key: "_id", Value: execution.ID},
		{Key: "workflowId", Value: execution.WorkflowID},
		{Key: "candidateId", Value: execution.CandidateID},
		{Key: "status", Value: string(execution.Status)},
		{Key: "startedAt", Value: execution.StartedAt.UTC()},
		{Key: fieldDoc, Value: doc},
	})
	if mongo.IsDuplicateKeyError(err) {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// Complete replaces the stored record only while its status is still running.
func (r *ExecutionRepository) Complete(ctx context.Context, execution *models.WorkflowExecution) error {
	doc, err := toDocument(execution)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	filter := bson.M{"_id": execution.ID, "status": string(models.ExecutionStatusRunning)}
	update := bson.M{"$set": bson.M{"status": string(execution.Status), fieldDoc: doc}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": execution.ID})
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	if count == 0 {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionClosed)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := decodeOne(r.collection.FindOne(ctx, bson.M{"_id": id}), &execution)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"workflowId": workflowID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	return decodeAll[models.WorkflowExecution](ctx, r.logger, cursor)
}

func (r *ExecutionRepository) Count(ctx context.Context, filter models.ExecutionFilter) (int, error) {
	query := bson.M{}

	if filter.WorkflowID != "" {
		query["workflowId"] = filter.WorkflowID
	}

	if filter.CandidateID != "" {
		query["candidateId"] = filter.CandidateID
	}

	if !filter.Since.IsZero() {
		query["startedAt"] = bson.M{"$gte": filter.Since.UTC()}
	}

	count, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return int(count), nil
}

// CandidateRepository stores candidates in the candidates collection.
type CandidateRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func (r *CandidateRepository) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	var candidate models.Candidate

	err := decodeOne(r.collection.FindOne(ctx, bson.M{"_id": id}), &candidate)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persistence.NewCandidateError("GetByID", id, persistence.ErrCandidateNotFound)
	}

	if err != nil {
		return nil, persistence.NewCandidateError("GetByID", id, err)
	}

	return &candidate, nil
}

func (r *CandidateRepository) Save(ctx context.Context, candidate *models.Candidate) error {
	doc, err := toDocument(candidate)
	if err != nil {
		return persistence.NewCandidateError("Save", candidate.ID, err)
	}

	_, err = r.collection.ReplaceOne(ctx,
		bson.M{"_id": candidate.ID},
		bson.D{{Key: "status", Value: candidate.Status}, {Key: fieldDoc, Value: doc}},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return persistence.NewCandidateError("Save", candidate.ID, err)
	}

	return nil
}

func (r *CandidateRepository) GetAll(ctx context.Context) ([]*models.Candidate, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}

	return decodeAll[models.Candidate](ctx, r.logger, cursor)
}

// TaskRepository stores tasks in the tasks collection.
type TaskRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	doc, err := toDocument(task)
	if err != nil {
		return fmt.Errorf("failed to convert task %s: %w", task.ID, err)
	}

	_, err = r.collection.InsertOne(ctx, bson.D{
		{Key: "_id", Value: task.ID},
		{Key: "candidateId", Value: task.CandidateID},
		{Key: "createdAt", Value: task.CreatedAt.UTC()},
		{Key: fieldDoc, Value: doc},
	})
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) ListByCandidate(ctx context.Context, candidateID string) ([]*models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"candidateId": candidateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	return decodeAll[models.Task](ctx, r.logger, cursor)
}
