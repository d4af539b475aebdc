package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tackboard/tackboard/internal/activity"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/mocks"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/service"
	"go.uber.org/mock/gomock"
)

func TestCreateTaskAllocatesSequentialNumbers(t *testing.T) {
	e := newEnv(t, nil)

	first := e.createTask(e.owner, "first")
	second := e.createTask(e.owner, "second")
	third := e.createTask(e.owner, "third")

	assert.EqualValues(t, 1, first.TaskNumber)
	assert.EqualValues(t, 2, second.TaskNumber)
	assert.EqualValues(t, 3, third.TaskNumber)
	assert.Equal(t, "WEB-1", first.Ref("WEB"))
}

func TestCreateTaskDefaults(t *testing.T) {
	e := newEnv(t, nil)

	task := e.createTask(e.owner, "defaults")

	cols := e.columns(e.owner)
	assert.Equal(t, cols[0].ID, task.ColumnID, "lands in the board's first column")
	assert.Equal(t, model.PriorityMedium, task.Priority)
	require.NotNil(t, task.ReporterID)
	assert.Equal(t, e.owner, *task.ReporterID)
	assert.EqualValues(t, 1, e.activityCount(task.ID, model.ActionTaskCreated))
}

func TestCreateTaskValidation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.board.CreateTask(ctx, e.projectHandle(e.owner), service.CreateTaskInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.board.CreateTask(ctx, e.projectHandle(e.owner), service.CreateTaskInput{
		Title: "bad priority", Priority: "urgent",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Concurrent creators must never share a task number; every number in
// 1..N is issued exactly once.
func TestCreateTaskConcurrentNumbering(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	h := e.projectHandle(e.owner)

	const n = 8
	numbers := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := e.board.CreateTask(ctx, h, service.CreateTaskInput{Title: "racing"})
			if assert.NoError(t, err) {
				numbers <- task.TaskNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool)
	for num := range numbers {
		assert.False(t, seen[num], "task number %d issued twice", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "task number %d missing", i)
	}
}

// The acceptance walk: org "acme", project "WEB", three tasks, then task
// #2 is dragged to the head of the column.
func TestMoveTaskToHead(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	t1 := e.createTask(e.owner, "one")
	t2 := e.createTask(e.owner, "two")
	t3 := e.createTask(e.owner, "three")

	todo := e.columns(e.owner)[0]
	_, err := e.board.MoveTask(ctx, e.taskHandle(e.owner, t2.ID), service.MoveTaskInput{
		ColumnID:     todo.ID,
		BeforeTaskID: &t1.ID,
	})
	require.NoError(t, err)

	tasks, err := e.board.ColumnTasks(ctx, e.projectHandle(e.owner), todo.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{t2.TaskNumber, t1.TaskNumber, t3.TaskNumber},
		[]int64{tasks[0].TaskNumber, tasks[1].TaskNumber, tasks[2].TaskNumber})
}

func TestMoveTaskAcrossColumns(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "moving")
	cols := e.columns(e.owner)
	todo, doing := cols[0], cols[1]

	moved, err := e.board.MoveTask(ctx, e.taskHandle(e.owner, task.ID), service.MoveTaskInput{
		ColumnID: doing.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, doing.ID, moved.ColumnID)

	left, err := e.board.ColumnTasks(ctx, e.projectHandle(e.owner), todo.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.EqualValues(t, 1, e.activityCount(task.ID, model.ActionTaskMoved))
}

func TestMoveTaskRejectsInvertedAnchors(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	t1 := e.createTask(e.owner, "one")
	t2 := e.createTask(e.owner, "two")
	todo := e.columns(e.owner)[0]

	// Anchors from a stale board snapshot, in the wrong relative order.
	_, err := e.board.MoveTask(ctx, e.taskHandle(e.owner, t1.ID), service.MoveTaskInput{
		ColumnID:     todo.ID,
		AfterTaskID:  &t2.ID,
		BeforeTaskID: &t1.ID,
	})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestWIPLimit(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	one := 1
	review, err := e.board.CreateColumn(ctx, e.projectHandle(e.owner), service.CreateColumnInput{
		Name: "Review", WIPLimit: &one,
	})
	require.NoError(t, err)

	t1 := e.createTask(e.owner, "one")
	t2 := e.createTask(e.owner, "two")

	_, err = e.board.MoveTask(ctx, e.taskHandle(e.owner, t1.ID), service.MoveTaskInput{
		ColumnID: review.ID,
	})
	require.NoError(t, err)

	// Column full: neither a move nor a create may enter it.
	_, err = e.board.MoveTask(ctx, e.taskHandle(e.owner, t2.ID), service.MoveTaskInput{
		ColumnID: review.ID,
	})
	assert.ErrorIs(t, err, domain.ErrWIPLimitReached)

	_, err = e.board.CreateTask(ctx, e.projectHandle(e.owner), service.CreateTaskInput{
		Title: "three", ColumnID: &review.ID,
	})
	assert.ErrorIs(t, err, domain.ErrWIPLimitReached)

	// Reordering within the full column is still allowed.
	_, err = e.board.MoveTask(ctx, e.taskHandle(e.owner, t1.ID), service.MoveTaskInput{
		ColumnID: review.ID,
	})
	assert.NoError(t, err)
}

func TestUpdateTaskFields(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "original")

	title := "renamed"
	high := model.PriorityHigh
	updated, err := e.board.UpdateTaskFields(ctx, e.taskHandle(e.owner, task.ID), service.UpdateTaskInput{
		Title:    &title,
		Priority: &high,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, model.PriorityHigh, updated.Priority)

	// One log entry per changed field.
	assert.EqualValues(t, 2, e.activityCount(task.ID, model.ActionTaskUpdated))

	// Re-applying the same values changes nothing and logs nothing.
	_, err = e.board.UpdateTaskFields(ctx, e.taskHandle(e.owner, task.ID), service.UpdateTaskInput{
		Title:    &title,
		Priority: &high,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, e.activityCount(task.ID, model.ActionTaskUpdated))
}

func TestUpdateTaskAssignee(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "assignable")
	assignee := e.addUser(nextEmail("assignee"))

	updated, err := e.board.UpdateTaskFields(ctx, e.taskHandle(e.owner, task.ID), service.UpdateTaskInput{
		AssigneeID: &assignee,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, assignee, *updated.AssigneeID)

	updated, err = e.board.UpdateTaskFields(ctx, e.taskHandle(e.owner, task.ID), service.UpdateTaskInput{
		ClearAssignee: true,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
}

func TestArchiveTaskIsTerminalAndIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "done with this")
	todo := e.columns(e.owner)[0]

	archived, err := e.board.ArchiveTask(ctx, e.taskHandle(e.owner, task.ID))
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	// Second archive: no error, no second log entry.
	_, err = e.board.ArchiveTask(ctx, e.taskHandle(e.owner, task.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.activityCount(task.ID, model.ActionTaskArchived))

	// Archived tasks leave the board view and refuse edits and moves.
	tasks, err := e.board.ColumnTasks(ctx, e.projectHandle(e.owner), todo.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	var verr *domain.ValidationError
	_, err = e.board.MoveTask(ctx, e.taskHandle(e.owner, task.ID), service.MoveTaskInput{ColumnID: todo.ID})
	assert.ErrorAs(t, err, &verr)

	title := "too late"
	_, err = e.board.UpdateTaskFields(ctx, e.taskHandle(e.owner, task.ID), service.UpdateTaskInput{Title: &title})
	assert.ErrorAs(t, err, &verr)
}

func TestDeleteTaskKeepsActivityLog(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "short lived")

	// Plain members cannot hard-delete.
	member := e.addUser(nextEmail("member"))
	e.enroll(member, model.OrgRoleMember, model.ProjectRoleMember)
	err := e.board.DeleteTask(ctx, e.taskHandle(member, task.ID))
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, e.board.DeleteTask(ctx, e.taskHandle(e.owner, task.ID)))

	_, err = e.guard.ResolveTask(ctx, e.owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The audit trail outlives the row.
	assert.EqualValues(t, 1, e.activityCount(task.ID, model.ActionTaskCreated))
	assert.EqualValues(t, 1, e.activityCount(task.ID, model.ActionTaskDeleted))

	// The number is burned, not reissued.
	next := e.createTask(e.owner, "successor")
	assert.Greater(t, next.TaskNumber, task.TaskNumber)
}

func TestViewerIsReadOnly(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "visible")
	viewer := e.addUser(nextEmail("viewer"))
	e.enroll(viewer, model.OrgRoleMember, model.ProjectRoleViewer)

	todo := e.columns(e.owner)[0]
	tasks, err := e.board.ColumnTasks(ctx, e.projectHandle(viewer), todo.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	feed, err := e.board.TaskActivity(ctx, e.taskHandle(viewer, task.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, feed)

	_, err = e.board.CreateTask(ctx, e.projectHandle(viewer), service.CreateTaskInput{Title: "nope"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = e.board.MoveTask(ctx, e.taskHandle(viewer, task.ID), service.MoveTaskInput{ColumnID: todo.ID})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = e.board.CreateColumn(ctx, e.projectHandle(viewer), service.CreateColumnInput{Name: "Nope"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestReorderColumn(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	cols := e.columns(e.owner)
	done := cols[2]

	// Drag "Done" to the front.
	_, err := e.board.ReorderColumn(ctx, e.projectHandle(e.owner), service.ReorderColumnInput{
		ColumnID:       done.ID,
		BeforeColumnID: &cols[0].ID,
	})
	require.NoError(t, err)

	reordered := e.columns(e.owner)
	assert.Equal(t, []string{"Done", "To Do", "In Progress"},
		[]string{reordered[0].Name, reordered[1].Name, reordered[2].Name})
}

// Events reach the notifier only after the transaction commits; a rolled
// back mutation never notifies.
func TestNotifierFiresOnlyAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)

	var seen []string
	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, events []activity.Event) error {
			for _, ev := range events {
				seen = append(seen, ev.Action)
			}
			return nil
		}).
		Times(2)

	e := newEnv(t, notifier)
	ctx := context.Background()

	one := 1
	review, err := e.board.CreateColumn(ctx, e.projectHandle(e.owner), service.CreateColumnInput{
		Name: "Review", WIPLimit: &one,
	})
	require.NoError(t, err)

	_, err = e.board.CreateTask(ctx, e.projectHandle(e.owner), service.CreateTaskInput{
		Title: "fits", ColumnID: &review.ID,
	})
	require.NoError(t, err)

	// This one rolls back on the WIP limit; the Times(2) expectation above
	// fails the test if it notifies anyway.
	_, err = e.board.CreateTask(ctx, e.projectHandle(e.owner), service.CreateTaskInput{
		Title: "does not fit", ColumnID: &review.ID,
	})
	require.ErrorIs(t, err, domain.ErrWIPLimitReached)

	assert.Equal(t, []string{model.ActionColumnCreated, model.ActionTaskCreated}, seen)
}

// Delivery failures are logged, never surfaced: the mutation already
// committed by the time the notifier runs.
func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		Return(errors.New("smtp down")).
		Times(1)

	e := newEnv(t, notifier)

	task, err := e.board.CreateTask(context.Background(), e.projectHandle(e.owner), service.CreateTaskInput{
		Title: "still created",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, task.ID)
}

func TestProjectTasksFiltersAndPaging(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	ph := e.projectHandle(e.owner)

	mk := func(title, desc string, prio model.Priority, labels ...string) *model.Task {
		t.Helper()
		task, err := e.board.CreateTask(ctx, ph, service.CreateTaskInput{
			Title: title, Description: desc, Priority: prio, Labels: labels,
		})
		require.NoError(t, err)
		return task
	}

	mk("Login page", "", model.PriorityHigh, "frontend")
	mk("Password reset", "broken login link", model.PriorityMedium, "backend")
	mk("Billing export", "", model.PriorityLow, "backend")
	stale := mk("Old spike", "", model.PriorityLow)
	_, err := e.board.ArchiveTask(ctx, e.taskHandle(e.owner, stale.ID))
	require.NoError(t, err)

	// Search matches title and description, case-insensitively.
	got, err := e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Search: "LOGIN"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Login page", got[0].Title)
	assert.Equal(t, "Password reset", got[1].Title)

	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Priority: model.PriorityLow})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Label: "backend"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Archived nil lists everything; an explicit false hides the spike.
	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	active := false
	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Archived: &active})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Priority sort puts high first; paging walks number order.
	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Sort: "priority"})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, model.PriorityHigh, got[0].Priority)

	got, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 3, got[0].TaskNumber)
	assert.EqualValues(t, 4, got[1].TaskNumber)

	_, err = e.board.ProjectTasks(ctx, ph, service.ListTasksInput{Sort: "drop table"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
