// Package memory provides an indexed in-memory persistence implementation backed by go-memdb.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	tableWorkflows  = "workflows"
	tableExecutions = "workflow_executions"
	tableCandidates = "candidates"
	tableTasks      = "tasks"

	indexID                = "id"
	indexTrigger           = "trigger"
	indexWorkflow          = "workflow"
	indexWorkflowCandidate = "workflow_candidate"
	indexCandidate         = "candidate"
)

// Persistence implements persistence.Persistence in memory. Records are copied on the way
// in and out, so callers never share state with the store.
type Persistence struct {
	db *memdb.MemDB

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	candidateRepo *CandidateRepository
	taskRepo      *TaskRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() (*Persistence, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	return &Persistence{
		db:            db,
		workflowRepo:  &WorkflowRepository{db: db},
		executionRepo: &ExecutionRepository{db: db},
		candidateRepo: &CandidateRepository{db: db},
		taskRepo:      &TaskRepository{db: db},
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

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableWorkflows: {
				Name: tableWorkflows,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexTrigger: {
						Name:         indexTrigger,
						AllowMissing: true,
						Indexer:      &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "TriggerType"},
								&memdb.BoolFieldIndex{Field: "Active"},
							},
						},
					},
				},
			},
			tableExecutions: {
				Name: tableExecutions,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexWorkflow: {
						Name:         indexWorkflow,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "WorkflowID"},
					},
					indexWorkflowCandidate: {
						Name:         indexWorkflowCandidate,
						AllowMissing: true,
						Indexer:      &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "WorkflowID"},
								&memdb.StringFieldIndex{Field: "CandidateID"},
							},
						},
					},
				},
			},
			tableCandidates: {
				Name: tableCandidates,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			tableTasks: {
				Name: tableTasks,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					indexCandidate: {
						Name:         indexCandidate,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "CandidateID"},
					},
				},
			},
		},
	}
}

// clone deep-copies a model through its JSON form, which also exercises the custom
// trigger and action encoders.
func clone[T any](value *T) (*T, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var copied T

	err = json.Unmarshal(data, &copied)
	if err != nil {
		return nil, err
	}

	return &copied, nil
}
