// internal/activity/recorder.go

// Package activity appends the immutable mutation log and carries the
// post-commit notification hook. Log entries are written inside the
// mutating transaction; notification events are handed to the Notifier by
// the service layer strictly after a successful commit, exactly once, and
// never on rollback.
package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

// Change captures a single field transition.
type Change struct {
	Field string
	Old   string
	New   string
}

// Event is the structured view of one committed mutation passed to the
// notification collaborator. TaskID is nil for column-level mutations.
type Event struct {
	TaskID  *uuid.UUID
	ActorID *uuid.UUID
	Action  string
	Changes []Change
}

// Notifier receives events for committed mutations. Implementations must
// tolerate being called with several events from one operation.
type Notifier interface {
	Notify(ctx context.Context, events []Event) error
}

// NoopNotifier discards events.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, events []Event) error { return nil }

// Recorder appends activity log entries on the caller's transaction.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

// Record writes one entry per change, or a single field-less entry when the
// action carries no field transitions (creation, archival).
func (r *Recorder) Record(tx *gorm.DB, ev Event, meta model.JSONMap) error {
	entries := make([]model.ActivityLogEntry, 0, len(ev.Changes))
	if len(ev.Changes) == 0 {
		entries = append(entries, model.ActivityLogEntry{
			TaskID:  ev.TaskID,
			ActorID: ev.ActorID,
			Action:  ev.Action,
			Context: meta,
		})
	}
	for _, c := range ev.Changes {
		entries = append(entries, model.ActivityLogEntry{
			TaskID:   ev.TaskID,
			ActorID:  ev.ActorID,
			Action:   ev.Action,
			Field:    c.Field,
			OldValue: c.Old,
			NewValue: c.New,
			Context:  meta,
		})
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("appending activity entries: %w", err)
	}
	return nil
}
