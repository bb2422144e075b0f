// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package task implements the Task Registry (spec.md §4.9): a process-
local store of in-flight and completed download tasks, keyed by a
generated task id. The registry itself never runs the download — the
caller supplies a run function; the registry owns the task's id,
mutex-guarded state, progress, GC, and artifact-stability verification.
*/
package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/novelforge/novelforge/internal/platform/apperr"
	"github.com/novelforge/novelforge/internal/platform/constants"
	"github.com/novelforge/novelforge/pkg/uuid"
)

// # Status

// Status is a download task's position in its state machine.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusFetchingMeta     Status = "FETCHING_META"
	StatusFetchingChapters Status = "FETCHING_CHAPTERS"
	StatusAssembling       Status = "ASSEMBLING"
	StatusReady            Status = "READY"
	StatusFailed           Status = "FAILED"
)

// # Task

// Task is one download's mutable state. Every field access outside of
// construction goes through [Task]'s methods, which hold mu for the
// duration.
type Task struct {
	ID        string
	CreatedAt time.Time

	mu                sync.Mutex
	status            Status
	completedChapters int
	failedChapters    int
	totalChapters     int
	currentTitle      string
	artifactPath      string
	errMessage        string
}

// Snapshot is an immutable, race-free copy of a [Task]'s current state.
type Snapshot struct {
	ID                string    `json:"taskId"`
	Status            Status    `json:"status"`
	CompletedChapters int       `json:"completedChapters"`
	FailedChapters    int       `json:"failedChapters"`
	TotalChapters     int       `json:"totalChapters"`
	CurrentTitle      string    `json:"currentChapterTitle,omitempty"`
	ArtifactPath      string    `json:"-"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func newTask() *Task {
	return &Task{ID: uuid.New(), CreatedAt: time.Now(), status: StatusPending}
}

// Snapshot returns a copy of the task's current state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:                t.ID,
		Status:            t.status,
		CompletedChapters: t.completedChapters,
		FailedChapters:    t.failedChapters,
		TotalChapters:     t.totalChapters,
		CurrentTitle:      t.currentTitle,
		ArtifactPath:      t.artifactPath,
		Error:             t.errMessage,
		CreatedAt:         t.CreatedAt,
	}
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

// SetFetchingChapters advances the task to FETCHING_CHAPTERS and records
// the chapter count the runner resolved from the table of contents.
func (t *Task) SetFetchingChapters(totalChapters int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusFetchingChapters
	t.totalChapters = totalChapters
}

// SetAssembling advances the task to ASSEMBLING. Called once every
// chapter has been attempted and the runner begins writing the artifact.
func (t *Task) SetAssembling() {
	t.setStatus(StatusAssembling)
}

// ReportProgress updates the task's chapter counters. It matches
// [download.ProgressCallback]'s shape so a Runner can pass it straight
// through as the download's progress callback. completed and failed are
// tracked separately so completedChapters+failedChapters == totalChapters
// holds once every chapter has been attempted.
func (t *Task) ReportProgress(completed, failed, total int64, currentTitle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedChapters = int(completed)
	t.failedChapters = int(failed)
	t.currentTitle = currentTitle
}

func (t *Task) setFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusFailed
	t.errMessage = err.Error()
}

func (t *Task) setReady(path string, failedChapters int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusReady
	t.artifactPath = path
	t.failedChapters = failedChapters
}

// # Registry

// Runner executes one download task end to end, reporting progress and
// advancing through FETCHING_META/FETCHING_CHAPTERS/ASSEMBLING as it
// goes, and returns the final artifact path.
type Runner func(ctx context.Context, t *Task) (artifactPath string, failedChapters int, err error)

// Registry is the process-local task store.
type Registry struct {
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*Task

	wg sync.WaitGroup
}

// New constructs an empty [Registry].
func New(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, tasks: make(map[string]*Task)}
}

// Submit creates a new task, starts run in a background goroutine, and
// returns the task id immediately.
//
// Parameters:
//   - ctx: context.Context governing the whole download's lifetime
//   - run: Runner invoked with the new task
//
// Returns:
//   - string: the generated task id, usable immediately with [Registry.Progress]
func (r *Registry) Submit(ctx context.Context, run Runner) string {
	t := newTask()

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, t, run)
	}()

	return t.ID
}

func (r *Registry) execute(ctx context.Context, t *Task, run Runner) {
	t.setStatus(StatusFetchingMeta)

	path, failedChapters, err := run(ctx, t)
	if err != nil {
		t.setFailed(err)
		r.logger.Warn("download task failed", "taskId", t.ID, "error", err)
		return
	}

	if err := verifyArtifactStable(path); err != nil {
		t.setFailed(err)
		r.logger.Warn("download task artifact unstable", "taskId", t.ID, "error", err)
		return
	}

	t.setReady(path, failedChapters)
}

// Progress returns the current [Snapshot] for taskID, or
// [apperr.NotFound] if no such task exists.
func (r *Registry) Progress(taskID string) (Snapshot, error) {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, apperr.NotFound("task")
	}
	return t.Snapshot(), nil
}

// Result returns the finished [Snapshot] for taskID, or
// [apperr.NotFound] if the task is unknown or not yet terminal.
func (r *Registry) Result(taskID string) (Snapshot, error) {
	snapshot, err := r.Progress(taskID)
	if err != nil {
		return Snapshot{}, err
	}
	if snapshot.Status != StatusReady && snapshot.Status != StatusFailed {
		return Snapshot{}, apperr.NotFound("completed task")
	}
	return snapshot, nil
}

// GC removes every task created more than constants.TaskRetention ago
// that has reached a terminal state. Intended to be called periodically (e.g.
// from a ticker in main).
func (r *Registry) GC() {
	cutoff := time.Now().Add(-constants.TaskRetention)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tasks {
		snapshot := t.Snapshot()
		if (snapshot.Status == StatusReady || snapshot.Status == StatusFailed) && t.CreatedAt.Before(cutoff) {
			if snapshot.ArtifactPath != "" {
				_ = os.Remove(snapshot.ArtifactPath)
			}
			delete(r.tasks, id)
		}
	}
}

// ActiveCount returns the number of tasks not yet in a terminal state.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, t := range r.tasks {
		snapshot := t.Snapshot()
		if snapshot.Status != StatusReady && snapshot.Status != StatusFailed {
			active++
		}
	}
	return active
}

// Drain blocks until every submitted task has finished running,
// implementing the "Task Registry drains" first step of the shutdown
// ordering (spec.md §9).
func (r *Registry) Drain() {
	r.wg.Wait()
}

// # Artifact stability

// verifyArtifactStable confirms the file at path has a stable size
// across two checks a short delay apart, guarding against a caller
// reading a download whose final flush/rename is still in flight on a
// slow filesystem.
func verifyArtifactStable(path string) error {
	first, err := os.Stat(path)
	if err != nil {
		return apperr.Internal(err)
	}
	time.Sleep(50 * time.Millisecond)
	second, err := os.Stat(path)
	if err != nil {
		return apperr.Internal(err)
	}
	if first.Size() != second.Size() {
		return apperr.Internal(errors.New("artifact size changed between stability checks"))
	}
	return nil
}
