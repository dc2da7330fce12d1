package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"harmonizer/harmonize"
)

// RunStatus статус прогона гармонизации
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Run прогон гармонизации в реестре сервера
type Run struct {
	ID          string               `json:"id"`
	Status      RunStatus            `json:"status"`
	Filename    string               `json:"filename"`
	Records     int                  `json:"records"`
	SubmittedAt time.Time            `json:"submitted_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
	Error       string               `json:"error,omitempty"`
	Result      *harmonize.RunResult `json:"-"`

	cancel context.CancelFunc
}

// Registry потокобезопасный реестр прогонов
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Create регистрирует новый прогон и возвращает его снимок
func (r *Registry) Create(filename string, records int, cancel context.CancelFunc) Run {
	run := &Run{
		ID:          uuid.NewString(),
		Status:      StatusRunning,
		Filename:    filename,
		Records:     records,
		SubmittedAt: time.Now().UTC(),
		cancel:      cancel,
	}
	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
	return *run
}

// Get возвращает снимок прогона по идентификатору. Результат после
// завершения неизменяем, копия безопасна для чтения без блокировки.
func (r *Registry) Get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List возвращает снимок всех прогонов
func (r *Registry) List() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out
}

// Complete помечает прогон завершенным и сохраняет результат
func (r *Registry) Complete(id string, result *harmonize.RunResult) {
	r.finish(id, StatusCompleted, result, "")
}

// Fail помечает прогон неуспешным
func (r *Registry) Fail(id string, errMsg string) {
	r.finish(id, StatusFailed, nil, errMsg)
}

// Cancel отменяет идущий прогон; частичные результаты будут сохранены
// завершением воркера
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status != StatusRunning {
		return false
	}
	run.Status = StatusCancelled
	if run.cancel != nil {
		run.cancel()
	}
	return true
}

func (r *Registry) finish(id string, status RunStatus, result *harmonize.RunResult, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	// отмена не перезатирается поздним завершением воркера
	if run.Status == StatusRunning {
		run.Status = status
	}
	run.Result = result
	run.Error = errMsg
	now := time.Now().UTC()
	run.FinishedAt = &now
}
