// -----------------------------------------------------------------------
// Task executor registry - one executor per job family, selected by
// lookup rather than branching
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vistaview/conveyor/internal/models"
)

// TaskExecutor is the uniform contract every family handler implements.
// Execute returns a summary blob for the completed job or an error that
// counts against the job's retry budget.
type TaskExecutor interface {
	Family() models.JobFamily
	Execute(ctx context.Context, job *models.Job) (json.RawMessage, error)
}

// Registry maps job families to their executors
type Registry struct {
	executors map[models.JobFamily]TaskExecutor
}

func NewRegistry(executors ...TaskExecutor) *Registry {
	r := &Registry{
		executors: make(map[models.JobFamily]TaskExecutor, len(executors)),
	}
	for _, executor := range executors {
		r.executors[executor.Family()] = executor
	}
	return r
}

// Lookup returns the executor for a family
func (r *Registry) Lookup(family models.JobFamily) (TaskExecutor, error) {
	executor, ok := r.executors[family]
	if !ok {
		return nil, fmt.Errorf("no executor registered for family %q", family)
	}
	return executor, nil
}

// Families lists the registered families
func (r *Registry) Families() []models.JobFamily {
	families := make([]models.JobFamily, 0, len(r.executors))
	for family := range r.executors {
		families = append(families, family)
	}
	return families
}
