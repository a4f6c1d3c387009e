// Package file provides file-based persistence implementation for workflows, executions and candidates.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	workflowsDir  = "workflows"
	executionsDir = "executions"
	candidatesDir = "candidates"
	tasksDir      = "tasks"
)

var errRecordNotFound = errors.New("record not found")

// Persistence implements the persistence.Persistence interface using the file system.
// Every record is a JSON file named after its identifier.
type Persistence struct {
	root string

	// mu serializes read-modify-write cycles across repositories.
	mu sync.Mutex

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	candidateRepo *CandidateRepository
	taskRepo      *TaskRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	fp := &Persistence{root: strings.Replace(root, "file://", "", 1)}

	fp.workflowRepo = &WorkflowRepository{store: fp}
	fp.executionRepo = &ExecutionRepository{store: fp}
	fp.candidateRepo = &CandidateRepository{store: fp}
	fp.taskRepo = &TaskRepository{store: fp}

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) CandidateRepository() persistence.CandidateRepository {
	return fp.candidateRepo
}

func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) recordPath(dir, id string) string {
	return filepath.Clean(path.Join(fp.root, dir, id+".json"))
}

// read decodes the record id of dir into target, returning errRecordNotFound when the
// file does not exist.
func (fp *Persistence) read(dir, id string, target any) error {
	body, err := os.ReadFile(fp.recordPath(dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return errRecordNotFound
		}

		return fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

// write stores value atomically by renaming a temporary file over the record.
func (fp *Persistence) write(dir, id string, value any) error {
	err := os.MkdirAll(path.Join(fp.root, dir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	target := fp.recordPath(dir, id)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return os.Rename(tmp, target)
}

func (fp *Persistence) remove(dir, id string) error {
	err := os.Remove(fp.recordPath(dir, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", dir, id, err)
	}

	return nil
}

// ids lists the record identifiers stored in dir. A missing directory yields no ids.
func (fp *Persistence) ids(dir string) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(path.Join(fp.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
