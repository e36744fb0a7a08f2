package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smarttodo/internal/task"
)

var refNow = time.Date(2025, 7, 10, 12, 0, 0, 0, time.Local)

func fixedClock() time.Time { return refNow }

// fakeRemote is an in-memory tasks API that counts calls.
type fakeRemote struct {
	mu     sync.Mutex
	tasks  []task.Task
	nextID int

	listErr, createErr, replaceErr, deleteErr error

	lists, creates, replaces, deletes int
	lastCreate, lastReplace           task.Task
}

func newFakeRemote(seed ...task.Task) *fakeRemote {
	f := &fakeRemote{nextID: 1}
	for _, t := range seed {
		t.ID = strconv.Itoa(f.nextID)
		f.nextID++
		f.tasks = append(f.tasks, t)
	}
	return f
}

func (f *fakeRemote) List(context.Context) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeRemote) Create(_ context.Context, t task.Task) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.lastCreate = t
	if f.createErr != nil {
		return task.Task{}, f.createErr
	}
	t.ID = strconv.Itoa(f.nextID)
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeRemote) Replace(_ context.Context, t task.Task) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	f.lastReplace = t
	if f.replaceErr != nil {
		return task.Task{}, f.replaceErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == t.ID {
			f.tasks[i] = t
			return t, nil
		}
	}
	return task.Task{}, errors.New("not found")
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func newStore(remote Remote, opts ...Option) *Store {
	return New(remote, append([]Option{WithClock(fixedClock)}, opts...)...)
}

func TestNew_InitialState(t *testing.T) {
	s := newStore(newFakeRemote())
	st := s.Snapshot()

	assert.Empty(t, st.Tasks)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
	assert.Empty(t, st.EditingTaskID)
	assert.False(t, st.DrawerOpen)
	assert.Equal(t, task.FormatDeadline(refNow), st.NewDraft.Deadline)
}

func TestFetchTasks_PreservesServerOrder(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "b"}, task.Task{Title: "a"}, task.Task{Title: "c"})
	s := newStore(remote)

	require.NoError(t, s.FetchTasks(context.Background()))

	st := s.Snapshot()
	require.Len(t, st.Tasks, 3)
	assert.Equal(t, "b", st.Tasks[0].Title)
	assert.Equal(t, "a", st.Tasks[1].Title)
	assert.Equal(t, "c", st.Tasks[2].Title)
	assert.False(t, st.Loading)
}

func TestFetchTasks_FailureKeepsStaleTasks(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "kept"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))

	remote.listErr = errors.New("boom")
	err := s.FetchTasks(context.Background())

	assert.ErrorIs(t, err, ErrLoad)
	st := s.Snapshot()
	assert.Equal(t, "Failed to load tasks.", st.Err)
	assert.False(t, st.Loading)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "kept", st.Tasks[0].Title)
}

func TestAddTask_EmptyTitleMakesNoCall(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "existing"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))
	before := s.Snapshot().Tasks
	lists := remote.lists

	err := s.AddTask(context.Background(), Draft{Title: "   "})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Fields[FieldTitle])
	assert.Equal(t, 0, remote.creates)
	assert.Equal(t, lists, remote.lists)

	st := s.Snapshot()
	assert.Equal(t, before, st.Tasks)
	assert.Equal(t, "Enter a Title", st.NewDraft.Error(FieldTitle))
	assert.False(t, st.Loading)
}

func TestAddTask_RefetchesExactlyOnce(t *testing.T) {
	remote := newFakeRemote()
	s := newStore(remote)
	deadline := task.FormatDeadline(refNow.Add(time.Hour))

	err := s.AddTask(context.Background(), Draft{Title: "Buy milk", Deadline: deadline, IsCompleted: true})
	require.NoError(t, err)

	assert.Equal(t, 1, remote.creates)
	assert.Equal(t, 1, remote.lists)
	assert.False(t, remote.lastCreate.IsCompleted, "new tasks are posted incomplete")
	assert.Empty(t, remote.lastCreate.ID)

	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, remote.tasks, st.Tasks)

	status := task.Evaluate(st.Tasks[0], refNow)
	assert.True(t, strings.HasPrefix(status.Label, "Due in"), status.Label)
}

func TestAddTask_RemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = errors.New("503")
	s := newStore(remote)

	err := s.AddTask(context.Background(), Draft{Title: "x"})

	assert.ErrorIs(t, err, ErrAdd)
	assert.Equal(t, "Failed to add task.", err.Error())
	assert.Equal(t, 0, remote.lists)
	st := s.Snapshot()
	assert.Equal(t, "Failed to add task.", st.Err)
	assert.False(t, st.Loading)
}

func TestAddTask_RefetchFailureReported(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("flaky")
	s := newStore(remote)

	err := s.AddTask(context.Background(), Draft{Title: "x"})

	assert.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, 1, remote.creates)
	st := s.Snapshot()
	assert.Equal(t, "Failed to load tasks.", st.Err)
	assert.False(t, st.Loading)
}

func TestAddTask_RequireDeadlineToggle(t *testing.T) {
	remote := newFakeRemote()
	s := newStore(remote, WithRules(Rules{Required: []Field{FieldTitle}, RequireDeadline: true}))

	err := s.AddTask(context.Background(), Draft{Title: "x"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Select a date & time", verr.Fields[FieldDeadline])
	assert.Empty(t, verr.Fields[FieldTitle])
	assert.Equal(t, 0, remote.creates)
}

func TestEditTask_PutsFullReplacement(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "old", Description: "d", Deadline: "2025-07-10T13:00"})
	s := newStore(remote)

	err := s.EditTask(context.Background(), "1", Draft{Title: " new ", Description: "d2", Deadline: "2025-07-11T09:00"})
	require.NoError(t, err)

	assert.Equal(t, task.Task{ID: "1", Title: "new", Description: "d2", Deadline: "2025-07-11T09:00"}, remote.lastReplace)
	assert.Equal(t, 1, remote.lists)
	assert.Equal(t, "new", s.Snapshot().Tasks[0].Title)
}

func TestEditTask_Failure(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "old"})
	remote.replaceErr = errors.New("nope")
	s := newStore(remote)

	err := s.EditTask(context.Background(), "1", Draft{Title: "new"})

	assert.ErrorIs(t, err, ErrUpdate)
	assert.Equal(t, "Failed to update task.", s.Snapshot().Err)
}

func TestEditTask_InvalidSetsEditErrors(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "old"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))
	s.StartEdit(s.Snapshot().Tasks[0])

	err := s.EditTask(context.Background(), "1", Draft{Title: ""})

	assert.Error(t, err)
	assert.Equal(t, 0, remote.replaces)
	assert.Equal(t, "Enter a Title", s.Snapshot().EditDraft.Error(FieldTitle))
}

func TestRemoveTask_IdempotentAbsence(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a"}, task.Task{Title: "b"})
	s := newStore(remote)

	require.NoError(t, s.RemoveTask(context.Background(), "1"))
	require.NoError(t, s.FetchTasks(context.Background()))

	for _, tk := range s.Snapshot().Tasks {
		assert.NotEqual(t, "1", tk.ID)
	}

	err := s.RemoveTask(context.Background(), "1")
	assert.ErrorIs(t, err, ErrDelete)
	assert.Equal(t, "Failed to delete task.", s.Snapshot().Err)
}

func TestToggleComplete(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a", Deadline: "2025-07-10T13:00"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))

	require.NoError(t, s.ToggleComplete(context.Background(), s.Snapshot().Tasks[0]))
	assert.True(t, s.Snapshot().Tasks[0].IsCompleted)

	require.NoError(t, s.ToggleComplete(context.Background(), s.Snapshot().Tasks[0]))
	assert.False(t, s.Snapshot().Tasks[0].IsCompleted)
	assert.Equal(t, "2025-07-10T13:00", remote.lastReplace.Deadline)
}

func TestToggleComplete_BlankTitleLeavesEditDraftAlone(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "  ", Deadline: "2025-07-10T13:00"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))

	err := s.ToggleComplete(context.Background(), s.Snapshot().Tasks[0])

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, remote.replaces)
	st := s.Snapshot()
	assert.Empty(t, st.EditingTaskID)
	assert.Empty(t, st.EditDraft.Error(FieldTitle))
}

func TestStartEditThenCancel(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a", Deadline: "2025-07-10T13:00:00Z"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))
	before := s.Snapshot().Tasks

	s.StartEdit(before[0])
	st := s.Snapshot()
	assert.Equal(t, "1", st.EditingTaskID)
	assert.Equal(t, "a", st.EditDraft.Title)
	assert.Equal(t, task.EditableDeadline("2025-07-10T13:00:00Z"), st.EditDraft.Deadline)

	s.CancelEdit()
	st = s.Snapshot()
	assert.Empty(t, st.EditingTaskID)
	assert.Empty(t, st.EditDraft.Title)
	assert.Equal(t, before, st.Tasks)
	assert.Equal(t, 0, remote.replaces)
}

func TestSaveEdit(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))

	assert.ErrorIs(t, s.SaveEdit(context.Background()), ErrNotEditing)

	s.StartEdit(s.Snapshot().Tasks[0])
	s.SetEditField(FieldTitle, "renamed")
	require.NoError(t, s.SaveEdit(context.Background()))

	st := s.Snapshot()
	assert.Empty(t, st.EditingTaskID)
	assert.Equal(t, "renamed", st.Tasks[0].Title)
}

func TestFetchTasks_DropsEditOfVanishedTask(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))
	s.StartEdit(s.Snapshot().Tasks[0])

	remote.tasks = nil
	require.NoError(t, s.FetchTasks(context.Background()))

	assert.Empty(t, s.Snapshot().EditingTaskID)
}

func TestValidateNewTask(t *testing.T) {
	s := newStore(newFakeRemote())

	s.SetNewTaskField(FieldTitle, "")
	assert.False(t, s.ValidateNewTask())
	assert.Equal(t, "Enter a Title", s.Snapshot().NewDraft.Error(FieldTitle))

	s.SetNewTaskField(FieldTitle, "ok")
	assert.True(t, s.ValidateNewTask())
	assert.Empty(t, s.Snapshot().NewDraft.Error(FieldTitle))
}

func TestDrawerClearsDraft(t *testing.T) {
	s := newStore(newFakeRemote())
	s.SetNewTaskField(FieldTitle, "half typed")
	s.SetNewTaskField(FieldCompleted, "true")

	s.OpenCreateDrawer()
	st := s.Snapshot()
	assert.True(t, st.DrawerOpen)
	assert.Empty(t, st.NewDraft.Title)
	assert.Empty(t, st.NewDraft.Deadline)
	assert.False(t, st.NewDraft.IsCompleted)
	assert.NotNil(t, st.NewDraft.Errors)

	s.SetNewTaskField(FieldTitle, "again")
	s.CloseCreateDrawer()
	st = s.Snapshot()
	assert.False(t, st.DrawerOpen)
	assert.Empty(t, st.NewDraft.Title)
}

func TestResetNewTaskDraft(t *testing.T) {
	s := newStore(newFakeRemote())
	s.ClearDraftFields()
	s.SetNewTaskField(FieldDescription, "x")

	s.ResetNewTaskDraft()

	st := s.Snapshot()
	assert.Empty(t, st.NewDraft.Description)
	assert.Equal(t, task.FormatDeadline(refNow), st.NewDraft.Deadline)
}

func TestSubmitNewTask(t *testing.T) {
	remote := newFakeRemote()
	s := newStore(remote)
	s.OpenCreateDrawer()

	err := s.SubmitNewTask(context.Background())
	assert.Error(t, err)
	assert.True(t, s.Snapshot().DrawerOpen)
	assert.Equal(t, 0, remote.creates)

	s.SetNewTaskField(FieldTitle, "Buy milk")
	s.SetNewTaskField(FieldDeadline, task.FormatDeadline(refNow.Add(time.Hour)))
	require.NoError(t, s.SubmitNewTask(context.Background()))

	st := s.Snapshot()
	assert.False(t, st.DrawerOpen)
	assert.Empty(t, st.NewDraft.Title)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Buy milk", st.Tasks[0].Title)
}

func TestSubmitNewTask_FailureKeepsDrawer(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = errors.New("down")
	s := newStore(remote)
	s.OpenCreateDrawer()
	s.SetNewTaskField(FieldTitle, "keep me")

	assert.ErrorIs(t, s.SubmitNewTask(context.Background()), ErrAdd)

	st := s.Snapshot()
	assert.True(t, st.DrawerOpen)
	assert.Equal(t, "keep me", st.NewDraft.Title)
}

func TestClearError(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("x")
	s := newStore(remote)
	_ = s.FetchTasks(context.Background())
	require.NotEmpty(t, s.Snapshot().Err)

	s.ClearError()
	assert.Empty(t, s.Snapshot().Err)
}

func TestSnapshotIsACopy(t *testing.T) {
	remote := newFakeRemote(task.Task{Title: "a"})
	s := newStore(remote)
	require.NoError(t, s.FetchTasks(context.Background()))

	st := s.Snapshot()
	st.Tasks[0].Title = "mutated"
	st.NewDraft.Errors[FieldTitle] = "x"

	again := s.Snapshot()
	assert.Equal(t, "a", again.Tasks[0].Title)
	assert.Empty(t, again.NewDraft.Error(FieldTitle))
}

func TestRulesFromNames(t *testing.T) {
	r, err := RulesFromNames([]string{"title", " description "}, true)
	require.NoError(t, err)
	assert.Equal(t, []Field{FieldTitle, FieldDescription}, r.Required)
	assert.True(t, r.RequireDeadline)

	_, err = RulesFromNames([]string{"colour"}, false)
	assert.Error(t, err)
}
