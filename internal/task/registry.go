package task

import (
	"sync"
	"time"
)

// Status values for a background task.
const (
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Task is one background unit of work. Exactly one background job writes a
// given task; status polls only ever read copies.
type Task struct {
	ID        string
	URL       string
	Kind      string
	Progress  float64
	Status    string
	Message   string
	FilePath  string
	Filename  string
	WorkDir   string
	CreatedAt time.Time
}

// Ready reports whether the task has finished one way or the other.
func (t Task) Ready() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Registry is the process-scoped task table. Entries are created on task
// start and removed on explicit cleanup or the startup sweep.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates a new task registry
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Create registers a new task in the queued state.
func (r *Registry) Create(id, url, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = &Task{
		ID:        id,
		URL:       url,
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
}

// Get returns a copy of the task so readers never observe partial writes.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Update applies fn to the task under the write lock. Only the background
// job owning the task id may call this.
func (r *Registry) Update(id string, fn func(t *Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}

// Delete removes the task entry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Reporter adapts a task id to the engine's progress interface.
func (r *Registry) Reporter(id string) *Reporter {
	return &Reporter{registry: r, id: id}
}

// Reporter forwards engine progress updates into the registry.
type Reporter struct {
	registry *Registry
	id       string
}

// Update implements the media progress contract.
func (p *Reporter) Update(progress float64, status, message string) {
	p.registry.Update(p.id, func(t *Task) {
		t.Progress = progress
		t.Status = status
		t.Message = message
	})
}
