// internal/service/board.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/activity"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/ordering"
	"github.com/tackboard/tackboard/internal/repository"
	"github.com/tackboard/tackboard/internal/tenancy"
	"gorm.io/gorm"
)

// BoardService is the single write entry point for board state. Every
// mutation takes a guard-resolved handle, checks the caller's capability,
// runs inside one transaction (task numbering, positioning and the activity
// log included), and hands notification events to the notifier only after
// that transaction commits.
//
// Task state machine: a task is active in exactly one column of its board
// until archived; archived is terminal. There is no un-archive transition.
type BoardService struct {
	db       *gorm.DB
	recorder *activity.Recorder
	notifier activity.Notifier
	validate *validator.Validate
}

func NewBoardService(db *gorm.DB, recorder *activity.Recorder, notifier activity.Notifier) *BoardService {
	return &BoardService{
		db:       db,
		recorder: recorder,
		notifier: notifier,
		validate: validator.New(),
	}
}

// mutate runs work in a transaction, retrying once when a position
// collision (unique index on column_id, position) aborts the commit. A
// unique violation on the task-number index is never retried: the
// allocator makes duplicates impossible, so one reaching commit is a bug
// and fails loudly. Events collected by work are published only after a
// successful commit.
func (s *BoardService) mutate(ctx context.Context, resource string, work func(tx *gorm.DB, events *[]activity.Event) error) error {
	run := func() ([]activity.Event, error) {
		var events []activity.Event
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return work(tx, &events)
		})
		return events, err
	}

	events, err := run()
	if err == nil {
		s.publish(ctx, events)
		return nil
	}
	if !repository.IsUniqueViolation(err) {
		return err
	}
	if strings.Contains(repository.UniqueConstraintHint(err), "task_number") {
		iv := &domain.InvariantViolation{
			Invariant: "task numbers are unique per project",
			Context:   map[string]interface{}{"resource": resource},
			Err:       err,
		}
		slog.ErrorContext(ctx, "duplicate task number reached commit",
			"resource", resource, "error", err)
		return iv
	}

	events, err = run()
	if err == nil {
		s.publish(ctx, events)
		return nil
	}
	if repository.IsUniqueViolation(err) {
		return &domain.ConflictError{Resource: resource, Err: err}
	}
	return err
}

func (s *BoardService) publish(ctx context.Context, events []activity.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, events); err != nil {
		slog.ErrorContext(ctx, "notifying mutation events", "error", err)
	}
}

type CreateTaskInput struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Labels      []string       `json:"labels"`
	ColumnID    *uuid.UUID     `json:"column_id"`
	AssigneeID  *uuid.UUID     `json:"assignee_id"`
}

// CreateTask creates a task at the tail of the target column (the board's
// first column when none is given), allocating its project-scoped number
// in the same transaction that inserts the row.
func (s *BoardService) CreateTask(ctx context.Context, h tenancy.ProjectHandle, input CreateTaskInput) (*model.Task, error) {
	if !h.Roles().CanEditTask() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}

	var task *model.Task
	err := s.mutate(ctx, "task", func(tx *gorm.DB, events *[]activity.Event) error {
		boards := repository.NewBoardRepository(tx)
		board, err := boards.FindByProject(ctx, h.Project().ID)
		if err != nil {
			return err
		}
		column, err := s.targetColumn(ctx, tx, board, input.ColumnID)
		if err != nil {
			return err
		}
		if err := s.checkWIP(ctx, tx, column); err != nil {
			return err
		}

		number, err := repository.NewProjectRepository(tx).AllocateTaskNumber(ctx, h.Project().ID)
		if err != nil {
			return err
		}
		position, err := ordering.TaskSlot(tx, column.ID, nil, nil)
		if err != nil {
			return err
		}

		reporter := h.Caller()
		task = &model.Task{
			ProjectID:   h.Project().ID,
			BoardID:     board.ID,
			ColumnID:    column.ID,
			TaskNumber:  number,
			Position:    position,
			Title:       input.Title,
			Description: input.Description,
			Priority:    input.Priority,
			Labels:      input.Labels,
			AssigneeID:  input.AssigneeID,
			ReporterID:  &reporter,
		}
		if err := repository.NewTaskRepository(tx).Create(ctx, task); err != nil {
			return err
		}

		ev := s.taskEvent(h.Caller(), task.ID, model.ActionTaskCreated, nil)
		if err := s.recorder.Record(tx, ev, model.JSONMap{
			"task_number": task.TaskNumber,
			"column_id":   column.ID.String(),
			"title":       task.Title,
		}); err != nil {
			return err
		}
		*events = append(*events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

type MoveTaskInput struct {
	ColumnID     uuid.UUID  `json:"column_id" validate:"required"`
	AfterTaskID  *uuid.UUID `json:"after_task_id"`
	BeforeTaskID *uuid.UUID `json:"before_task_id"`
}

// MoveTask changes a task's column and/or relative position as one
// single-row update. Neighbor positions are re-read inside the write
// transaction, so stale request-time anchors observe any order that
// committed in between.
func (s *BoardService) MoveTask(ctx context.Context, h tenancy.TaskHandle, input MoveTaskInput) (*model.Task, error) {
	if !h.Roles().CanEditTask() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	if h.Task().Archived {
		return nil, &domain.ValidationError{Field: "task", Reason: "archived tasks cannot be moved"}
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var moved *model.Task
	err := s.mutate(ctx, "task position", func(tx *gorm.DB, events *[]activity.Event) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.FindByID(ctx, h.Task().ID)
		if err != nil {
			return err
		}
		column, err := repository.NewBoardRepository(tx).FindColumn(ctx, task.BoardID, input.ColumnID)
		if err != nil {
			return err
		}
		if column.ID != task.ColumnID {
			if err := s.checkWIP(ctx, tx, column); err != nil {
				return err
			}
		}

		position, err := ordering.TaskSlot(tx, column.ID, input.AfterTaskID, input.BeforeTaskID)
		if err != nil {
			if errors.Is(err, ordering.ErrBadNeighbors) {
				return &domain.ConflictError{Resource: "task position", Err: err}
			}
			return err
		}

		oldColumn := task.ColumnID
		oldPosition := task.Position
		task.ColumnID = column.ID
		task.Position = position
		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		ev := s.taskEvent(h.Caller(), task.ID, model.ActionTaskMoved, []activity.Change{{
			Field: "column_id",
			Old:   oldColumn.String(),
			New:   column.ID.String(),
		}})
		if err := s.recorder.Record(tx, ev, model.JSONMap{
			"old_position": oldPosition,
			"new_position": position,
		}); err != nil {
			return err
		}
		*events = append(*events, ev)
		moved = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

type UpdateTaskInput struct {
	Title         *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string         `json:"description"`
	Priority      *model.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Labels        *[]string       `json:"labels"`
	AssigneeID    *uuid.UUID      `json:"assignee_id"`
	ClearAssignee bool            `json:"clear_assignee"`
}

// UpdateTaskFields applies a partial update. Concurrent writers are
// last-write-wins per field; each changed field gets its own log entry.
func (s *BoardService) UpdateTaskFields(ctx context.Context, h tenancy.TaskHandle, input UpdateTaskInput) (*model.Task, error) {
	if !h.Roles().CanEditTask() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	if h.Task().Archived {
		return nil, &domain.ValidationError{Field: "task", Reason: "archived tasks cannot be edited"}
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var updated *model.Task
	err := s.mutate(ctx, "task", func(tx *gorm.DB, events *[]activity.Event) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.FindByID(ctx, h.Task().ID)
		if err != nil {
			return err
		}

		var changes []activity.Change
		if input.Title != nil && *input.Title != task.Title {
			changes = append(changes, activity.Change{Field: "title", Old: task.Title, New: *input.Title})
			task.Title = *input.Title
		}
		if input.Description != nil && *input.Description != task.Description {
			changes = append(changes, activity.Change{Field: "description", Old: task.Description, New: *input.Description})
			task.Description = *input.Description
		}
		if input.Priority != nil && *input.Priority != task.Priority {
			changes = append(changes, activity.Change{Field: "priority", Old: string(task.Priority), New: string(*input.Priority)})
			task.Priority = *input.Priority
		}
		if input.Labels != nil {
			old := strings.Join(task.Labels, ",")
			next := strings.Join(*input.Labels, ",")
			if old != next {
				changes = append(changes, activity.Change{Field: "labels", Old: old, New: next})
				task.Labels = *input.Labels
			}
		}
		switch {
		case input.ClearAssignee && task.AssigneeID != nil:
			changes = append(changes, activity.Change{Field: "assignee_id", Old: task.AssigneeID.String(), New: ""})
			task.AssigneeID = nil
		case input.AssigneeID != nil && (task.AssigneeID == nil || *task.AssigneeID != *input.AssigneeID):
			old := ""
			if task.AssigneeID != nil {
				old = task.AssigneeID.String()
			}
			changes = append(changes, activity.Change{Field: "assignee_id", Old: old, New: input.AssigneeID.String()})
			task.AssigneeID = input.AssigneeID
		}

		if len(changes) == 0 {
			updated = task
			return nil
		}
		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		ev := s.taskEvent(h.Caller(), task.ID, model.ActionTaskUpdated, changes)
		if err := s.recorder.Record(tx, ev, nil); err != nil {
			return err
		}
		*events = append(*events, ev)
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ArchiveTask transitions a task to its terminal archived state. Archiving
// an already-archived task is a no-op: no update, no log entry, no event.
func (s *BoardService) ArchiveTask(ctx context.Context, h tenancy.TaskHandle) (*model.Task, error) {
	if !h.Roles().CanEditTask() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}

	var archived *model.Task
	err := s.mutate(ctx, "task", func(tx *gorm.DB, events *[]activity.Event) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.FindByID(ctx, h.Task().ID)
		if err != nil {
			return err
		}
		if task.Archived {
			archived = task
			return nil
		}
		task.Archived = true
		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		ev := s.taskEvent(h.Caller(), task.ID, model.ActionTaskArchived, []activity.Change{{
			Field: "archived", Old: "false", New: "true",
		}})
		if err := s.recorder.Record(tx, ev, nil); err != nil {
			return err
		}
		*events = append(*events, ev)
		archived = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// DeleteTask hard-deletes a task. Project admins only; the task's log
// entries are kept for audit. The task number is never reissued.
func (s *BoardService) DeleteTask(ctx context.Context, h tenancy.TaskHandle) error {
	if !h.Roles().CanDeleteTask() {
		return domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	return s.mutate(ctx, "task", func(tx *gorm.DB, events *[]activity.Event) error {
		tasks := repository.NewTaskRepository(tx)
		task, err := tasks.FindByID(ctx, h.Task().ID)
		if err != nil {
			return err
		}
		if err := tasks.Delete(ctx, task.ID); err != nil {
			return err
		}
		ev := s.taskEvent(h.Caller(), task.ID, model.ActionTaskDeleted, nil)
		if err := s.recorder.Record(tx, ev, model.JSONMap{
			"task_number": task.TaskNumber,
			"title":       task.Title,
		}); err != nil {
			return err
		}
		*events = append(*events, ev)
		return nil
	})
}

type CreateColumnInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	WIPLimit *int   `json:"wip_limit" validate:"omitempty,min=1"`
}

// CreateColumn appends a column at the end of the board.
func (s *BoardService) CreateColumn(ctx context.Context, h tenancy.ProjectHandle, input CreateColumnInput) (*model.Column, error) {
	if !h.Roles().CanManageColumns() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var column *model.Column
	err := s.mutate(ctx, "column", func(tx *gorm.DB, events *[]activity.Event) error {
		boards := repository.NewBoardRepository(tx)
		board, err := boards.FindByProject(ctx, h.Project().ID)
		if err != nil {
			return err
		}
		position, err := ordering.ColumnSlot(tx, board.ID, nil, nil)
		if err != nil {
			return err
		}
		column = &model.Column{
			BoardID:  board.ID,
			Name:     input.Name,
			Position: position,
			WIPLimit: input.WIPLimit,
		}
		if err := boards.CreateColumn(ctx, column); err != nil {
			return err
		}

		caller := h.Caller()
		ev := activity.Event{
			ActorID: &caller,
			Action:  model.ActionColumnCreated,
		}
		if err := s.recorder.Record(tx, ev, model.JSONMap{
			"column_id": column.ID.String(),
			"name":      column.Name,
		}); err != nil {
			return err
		}
		*events = append(*events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return column, nil
}

type ReorderColumnInput struct {
	ColumnID       uuid.UUID  `json:"column_id" validate:"required"`
	AfterColumnID  *uuid.UUID `json:"after_column_id"`
	BeforeColumnID *uuid.UUID `json:"before_column_id"`
}

// ReorderColumn repositions a column among its board's columns using the
// same fractional engine tasks use.
func (s *BoardService) ReorderColumn(ctx context.Context, h tenancy.ProjectHandle, input ReorderColumnInput) (*model.Column, error) {
	if !h.Roles().CanManageColumns() {
		return nil, domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil, &domain.ValidationError{Field: "project", Reason: "project is archived"}
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var column *model.Column
	err := s.mutate(ctx, "column position", func(tx *gorm.DB, events *[]activity.Event) error {
		boards := repository.NewBoardRepository(tx)
		board, err := boards.FindByProject(ctx, h.Project().ID)
		if err != nil {
			return err
		}
		col, err := boards.FindColumn(ctx, board.ID, input.ColumnID)
		if err != nil {
			return err
		}
		position, err := ordering.ColumnSlot(tx, board.ID, input.AfterColumnID, input.BeforeColumnID)
		if err != nil {
			if errors.Is(err, ordering.ErrBadNeighbors) {
				return &domain.ConflictError{Resource: "column position", Err: err}
			}
			return err
		}
		old := col.Position
		col.Position = position
		if err := boards.UpdateColumn(ctx, col); err != nil {
			return err
		}

		caller := h.Caller()
		ev := activity.Event{
			ActorID: &caller,
			Action:  model.ActionColumnMoved,
			Changes: []activity.Change{{
				Field: "position",
				Old:   strconv.FormatFloat(old, 'f', -1, 64),
				New:   strconv.FormatFloat(position, 'f', -1, 64),
			}},
		}
		if err := s.recorder.Record(tx, ev, model.JSONMap{
			"column_id": col.ID.String(),
		}); err != nil {
			return err
		}
		*events = append(*events, ev)
		column = col
		return nil
	})
	if err != nil {
		return nil, err
	}
	return column, nil
}

type ListTasksInput struct {
	Search   string         `json:"q"`
	Priority model.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Label    string         `json:"label"`
	Archived *bool          `json:"archived"`
	Sort     string         `json:"sort" validate:"omitempty,oneof=number created updated priority position"`
	Limit    int            `json:"limit" validate:"omitempty,min=1,max=200"`
	Offset   int            `json:"offset" validate:"omitempty,min=0"`
}

// ProjectTasks lists a project's tasks across columns with optional
// search, priority/label filters, sorting and pagination. Archived nil
// returns active and archived tasks together.
func (s *BoardService) ProjectTasks(ctx context.Context, h tenancy.ProjectHandle, input ListTasksInput) ([]model.Task, error) {
	if !h.Roles().CanViewProject() {
		return nil, domain.ErrNotFound
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return repository.NewTaskRepository(s.db).FindByProject(ctx, h.Project().ID, repository.TaskFilter{
		Search:   input.Search,
		Priority: input.Priority,
		Label:    input.Label,
		Archived: input.Archived,
		Sort:     input.Sort,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
}

// ColumnTasks lists a column's active tasks in board order.
func (s *BoardService) ColumnTasks(ctx context.Context, h tenancy.ProjectHandle, columnID uuid.UUID) ([]model.Task, error) {
	if !h.Roles().CanViewProject() {
		return nil, domain.ErrNotFound
	}
	board, err := repository.NewBoardRepository(s.db).FindByProject(ctx, h.Project().ID)
	if err != nil {
		return nil, err
	}
	if _, err := repository.NewBoardRepository(s.db).FindColumn(ctx, board.ID, columnID); err != nil {
		return nil, err
	}
	return repository.NewTaskRepository(s.db).FindByColumn(ctx, columnID)
}

// Columns lists the board's columns in display order.
func (s *BoardService) Columns(ctx context.Context, h tenancy.ProjectHandle) ([]model.Column, error) {
	if !h.Roles().CanViewProject() {
		return nil, domain.ErrNotFound
	}
	board, err := repository.NewBoardRepository(s.db).FindByProject(ctx, h.Project().ID)
	if err != nil {
		return nil, err
	}
	return repository.NewBoardRepository(s.db).FindColumns(ctx, board.ID)
}

// TaskActivity returns a task's activity feed, newest first.
func (s *BoardService) TaskActivity(ctx context.Context, h tenancy.TaskHandle) ([]model.ActivityLogEntry, error) {
	if !h.Roles().CanViewProject() {
		return nil, domain.ErrNotFound
	}
	return repository.NewActivityRepository(s.db).FindByTask(ctx, h.Task().ID)
}

func (s *BoardService) taskEvent(caller uuid.UUID, taskID uuid.UUID, action string, changes []activity.Change) activity.Event {
	return activity.Event{
		TaskID:  &taskID,
		ActorID: &caller,
		Action:  action,
		Changes: changes,
	}
}

func (s *BoardService) targetColumn(ctx context.Context, tx *gorm.DB, board *model.Board, columnID *uuid.UUID) (*model.Column, error) {
	boards := repository.NewBoardRepository(tx)
	if columnID != nil {
		return boards.FindColumn(ctx, board.ID, *columnID)
	}
	columns, err := boards.FindColumns(ctx, board.ID)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, &domain.ValidationError{Field: "column_id", Reason: "board has no columns"}
	}
	return &columns[0], nil
}

func (s *BoardService) checkWIP(ctx context.Context, tx *gorm.DB, column *model.Column) error {
	if column.WIPLimit == nil {
		return nil
	}
	count, err := repository.NewTaskRepository(tx).CountActiveInColumn(ctx, column.ID)
	if err != nil {
		return err
	}
	if count >= int64(*column.WIPLimit) {
		return domain.ErrWIPLimitReached
	}
	return nil
}
