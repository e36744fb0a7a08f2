// Package store holds the client-side task state and the actions that
// change it. Every write goes to the remote API and is followed by a full
// refetch; nothing is applied optimistically.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"smarttodo/internal/task"
)

var ErrNotEditing = errors.New("no task is being edited")

// Remote is the task API the store talks to.
type Remote interface {
	List(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, t task.Task) (task.Task, error)
	Replace(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

// State is a point-in-time copy of the store for rendering.
type State struct {
	Tasks         []task.Task
	Loading       bool
	Err           string
	NewDraft      Draft
	EditDraft     Draft
	EditingTaskID string
	DrawerOpen    bool
}

type Store struct {
	remote Remote
	log    *zap.Logger
	now    func() time.Time
	rules  Rules

	mu            sync.Mutex
	tasks         []task.Task
	loading       bool
	err           string
	newDraft      Draft
	editDraft     Draft
	editingTaskID string
	drawerOpen    bool
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRules(r Rules) Option {
	return func(s *Store) { s.rules = r }
}

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		log:    zap.NewNop(),
		now:    time.Now,
		rules:  DefaultRules(),
		tasks:  []task.Task{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.newDraft = s.emptyDraft()
	s.editDraft = s.emptyDraft()
	return s
}

func (s *Store) emptyDraft() Draft {
	return Draft{
		Deadline: task.FormatDeadline(s.now()),
		Errors:   emptyErrors(),
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]task.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return State{
		Tasks:         tasks,
		Loading:       s.loading,
		Err:           s.err,
		NewDraft:      s.newDraft.clone(),
		EditDraft:     s.editDraft.clone(),
		EditingTaskID: s.editingTaskID,
		DrawerOpen:    s.drawerOpen,
	}
}

// begin marks the start of a remote action.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) fail(op Op, cause error) error {
	e := newError(op, cause)
	s.mu.Lock()
	s.err = e.Message
	s.loading = false
	s.mu.Unlock()
	s.log.Warn("task action failed", zap.String("op", string(op)), zap.Error(cause))
	return e
}

func (s *Store) done() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// FetchTasks replaces the task list with the server's. On failure the
// previous list is kept.
func (s *Store) FetchTasks(ctx context.Context) error {
	s.begin()
	s.log.Debug("fetching tasks")
	tasks, err := s.remote.List(ctx)
	if err != nil {
		return s.fail(OpLoad, err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}

	s.mu.Lock()
	s.tasks = tasks
	s.loading = false
	if s.editingTaskID != "" && !containsID(tasks, s.editingTaskID) {
		s.editingTaskID = ""
		s.editDraft = s.emptyDraft()
	}
	s.mu.Unlock()
	return nil
}

// mutate runs a write and then refetches. A refetch failure is returned as
// the load error.
func (s *Store) mutate(ctx context.Context, op Op, write func() error) error {
	s.begin()
	if err := write(); err != nil {
		return s.fail(op, err)
	}
	if err := s.FetchTasks(ctx); err != nil {
		return err
	}
	s.done()
	return nil
}

// AddTask creates a task from d. An invalid draft makes no network call; its
// field errors are stored on the new-task draft.
func (s *Store) AddTask(ctx context.Context, d Draft) error {
	if errs := s.rules.check(d); hasErrors(errs) {
		s.mu.Lock()
		s.newDraft.Errors = errs
		s.mu.Unlock()
		return &ValidationError{Fields: errs}
	}
	body := d.toTask("")
	body.IsCompleted = false
	s.log.Debug("adding task", zap.String("title", body.Title))
	return s.mutate(ctx, OpAdd, func() error {
		_, err := s.remote.Create(ctx, body)
		return err
	})
}

// EditTask replaces the task with id by the fields of d. Field errors are
// stored on the edit draft only when id is the task being edited.
func (s *Store) EditTask(ctx context.Context, id string, d Draft) error {
	if errs := s.rules.check(d); hasErrors(errs) {
		s.mu.Lock()
		if id == s.editingTaskID {
			s.editDraft.Errors = errs
		}
		s.mu.Unlock()
		return &ValidationError{Fields: errs}
	}
	body := d.toTask(id)
	s.log.Debug("updating task", zap.String("id", id))
	return s.mutate(ctx, OpUpdate, func() error {
		_, err := s.remote.Replace(ctx, body)
		return err
	})
}

func (s *Store) RemoveTask(ctx context.Context, id string) error {
	s.log.Debug("deleting task", zap.String("id", id))
	return s.mutate(ctx, OpDelete, func() error {
		return s.remote.Delete(ctx, id)
	})
}

func (s *Store) ToggleComplete(ctx context.Context, t task.Task) error {
	d := Draft{
		Title:       t.Title,
		Description: t.Description,
		Deadline:    t.Deadline,
		IsCompleted: !t.IsCompleted,
	}
	return s.EditTask(ctx, t.ID, d)
}

// SubmitNewTask validates and posts the new-task draft. On success the draft
// is reset and the drawer closed; on failure both are left for a retry.
func (s *Store) SubmitNewTask(ctx context.Context) error {
	if !s.ValidateNewTask() {
		s.mu.Lock()
		errs := s.newDraft.clone().Errors
		s.mu.Unlock()
		return &ValidationError{Fields: errs}
	}
	s.mu.Lock()
	d := s.newDraft.clone()
	s.mu.Unlock()

	if err := s.AddTask(ctx, d); err != nil {
		return err
	}
	s.mu.Lock()
	s.newDraft = s.emptyDraft()
	s.drawerOpen = false
	s.mu.Unlock()
	return nil
}

// SaveEdit submits the edit draft for the task being edited and leaves edit
// mode on success.
func (s *Store) SaveEdit(ctx context.Context) error {
	s.mu.Lock()
	id := s.editingTaskID
	d := s.editDraft.clone()
	s.mu.Unlock()
	if id == "" {
		return ErrNotEditing
	}
	if err := s.EditTask(ctx, id, d); err != nil {
		return err
	}
	s.CancelEdit()
	return nil
}

// ValidateNewTask recomputes the new-task draft's field errors.
func (s *Store) ValidateNewTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.rules.check(s.newDraft)
	s.newDraft.Errors = errs
	return !hasErrors(errs)
}

func (s *Store) SetNewTaskField(f Field, v string) {
	s.mu.Lock()
	s.newDraft.set(f, v)
	s.mu.Unlock()
}

func (s *Store) ResetNewTaskDraft() {
	s.mu.Lock()
	s.newDraft = s.emptyDraft()
	s.mu.Unlock()
}

// ClearDraftFields blanks every new-task field, deadline included.
func (s *Store) ClearDraftFields() {
	s.mu.Lock()
	s.newDraft = Draft{Errors: emptyErrors()}
	s.mu.Unlock()
}

func (s *Store) SetEditField(f Field, v string) {
	s.mu.Lock()
	s.editDraft.set(f, v)
	s.mu.Unlock()
}

func (s *Store) StartEdit(t task.Task) {
	if t.ID == "" {
		return
	}
	s.mu.Lock()
	s.editingTaskID = t.ID
	s.editDraft = DraftFromTask(t)
	s.mu.Unlock()
}

func (s *Store) CancelEdit() {
	s.mu.Lock()
	s.editingTaskID = ""
	s.editDraft = s.emptyDraft()
	s.mu.Unlock()
}

func (s *Store) OpenCreateDrawer() {
	s.mu.Lock()
	s.drawerOpen = true
	s.mu.Unlock()
	s.ClearDraftFields()
}

func (s *Store) CloseCreateDrawer() {
	s.mu.Lock()
	s.drawerOpen = false
	s.mu.Unlock()
	s.ClearDraftFields()
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
}

func containsID(tasks []task.Task, id string) bool {
	for _, t := range tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
