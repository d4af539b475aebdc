// internal/ordering/ordering.go

// Package ordering maintains fractional position values for tasks within a
// column and for columns within a board. Inserting between two neighbors
// touches a single row; only when the midpoint gap drops below MinGap does
// a rebalance rewrite the scope's positions, inside the same transaction
// and preserving relative order.
//
// Every function takes the caller's open transaction. Neighbor positions
// are always read through that transaction, never from a request-time
// snapshot, so a concurrent reorder that already committed is observed
// before the new position is computed.
package ordering

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

const (
	// PositionGap is the spacing for appends and for rebalanced rows.
	PositionGap = 1024.0

	// MinGap is the smallest midpoint gap accepted before a rebalance is
	// forced. Well above float64 epsilon so midpoints stay exact.
	MinGap = 1e-9
)

// ErrBadNeighbors reports an insert-between request whose anchors are not
// in the expected relative order (stale client state).
var ErrBadNeighbors = errors.New("neighbor tasks are not adjacent in the requested order")

// scope abstracts "tasks of one column" vs "columns of one board".
type scope struct {
	model     interface{}
	scopeExpr string
	scopeID   uuid.UUID
}

func taskScope(columnID uuid.UUID) scope {
	return scope{model: &model.Task{}, scopeExpr: "column_id = ?", scopeID: columnID}
}

func columnScope(boardID uuid.UUID) scope {
	return scope{model: &model.Column{}, scopeExpr: "board_id = ?", scopeID: boardID}
}

// TaskSlot computes a position for a task in columnID placed after afterID
// and/or before beforeID (nil anchors mean column head/tail respectively;
// both nil appends to the tail).
func TaskSlot(tx *gorm.DB, columnID uuid.UUID, afterID, beforeID *uuid.UUID) (float64, error) {
	return slot(tx, taskScope(columnID), afterID, beforeID)
}

// ColumnSlot is TaskSlot for reordering columns on a board.
func ColumnSlot(tx *gorm.DB, boardID uuid.UUID, afterID, beforeID *uuid.UUID) (float64, error) {
	return slot(tx, columnScope(boardID), afterID, beforeID)
}

// RebalanceTasks rewrites all task positions in the column to even
// multiples of PositionGap, by current order. Archived tasks keep a column
// and position, so they are included; skipping them could make a fresh slot
// collide with an archived row under the unique index.
func RebalanceTasks(tx *gorm.DB, columnID uuid.UUID) error {
	return rebalance(tx, taskScope(columnID))
}

// RebalanceColumns rewrites the board's column positions.
func RebalanceColumns(tx *gorm.DB, boardID uuid.UUID) error {
	return rebalance(tx, columnScope(boardID))
}

type row struct {
	ID       uuid.UUID
	Position float64
}

func slot(tx *gorm.DB, sc scope, afterID, beforeID *uuid.UUID) (float64, error) {
	pos, retry, err := computeSlot(tx, sc, afterID, beforeID)
	if err != nil {
		return 0, err
	}
	if !retry {
		return pos, nil
	}
	// Precision exhausted between the anchors: rebalance the scope and
	// compute again against the rewritten positions.
	if err := rebalance(tx, sc); err != nil {
		return 0, err
	}
	pos, retry, err = computeSlot(tx, sc, afterID, beforeID)
	if err != nil {
		return 0, err
	}
	if retry {
		return 0, &domain.InvariantViolation{
			Invariant: "rebalance restores insertable gaps",
			Context:   map[string]interface{}{"scope_id": sc.scopeID},
			Err:       errors.New("midpoint gap still below threshold after rebalance"),
		}
	}
	return pos, nil
}

// computeSlot returns the new position, or retry=true when the gap between
// the anchors is too small to split.
func computeSlot(tx *gorm.DB, sc scope, afterID, beforeID *uuid.UUID) (float64, bool, error) {
	switch {
	case afterID == nil && beforeID == nil:
		max, ok, err := boundary(tx, sc, "MAX")
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return PositionGap, false, nil
		}
		return max + PositionGap, false, nil

	case afterID != nil && beforeID != nil:
		a, err := anchor(tx, sc, *afterID)
		if err != nil {
			return 0, false, err
		}
		b, err := anchor(tx, sc, *beforeID)
		if err != nil {
			return 0, false, err
		}
		if b <= a {
			return 0, false, ErrBadNeighbors
		}
		if b-a < MinGap {
			return 0, true, nil
		}
		return a + (b-a)/2, false, nil

	case afterID != nil:
		a, err := anchor(tx, sc, *afterID)
		if err != nil {
			return 0, false, err
		}
		succ, ok, err := adjacent(tx, sc, a, true)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return a + PositionGap, false, nil
		}
		if succ-a < MinGap {
			return 0, true, nil
		}
		return a + (succ-a)/2, false, nil

	default: // beforeID != nil
		b, err := anchor(tx, sc, *beforeID)
		if err != nil {
			return 0, false, err
		}
		pred, ok, err := adjacent(tx, sc, b, false)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return b - PositionGap, false, nil
		}
		if b-pred < MinGap {
			return 0, true, nil
		}
		return pred + (b-pred)/2, false, nil
	}
}

// anchor reads an anchor row's current position, scoped, inside the tx.
func anchor(tx *gorm.DB, sc scope, id uuid.UUID) (float64, error) {
	var r row
	err := tx.Model(sc.model).
		Select("id", "position").
		Where(sc.scopeExpr, sc.scopeID).
		Where("id = ?", id).
		Take(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("reading anchor position: %w", err)
	}
	return r.Position, nil
}

// adjacent finds the position of the row immediately after (or before) pos.
func adjacent(tx *gorm.DB, sc scope, pos float64, after bool) (float64, bool, error) {
	cmp, ord := "position > ?", "position ASC"
	if !after {
		cmp, ord = "position < ?", "position DESC"
	}
	var rows []row
	err := tx.Model(sc.model).
		Select("id", "position").
		Where(sc.scopeExpr, sc.scopeID).
		Where(cmp, pos).
		Order(ord).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, false, fmt.Errorf("reading adjacent position: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Position, true, nil
}

// boundary returns MAX or MIN of the scope's positions.
func boundary(tx *gorm.DB, sc scope, fn string) (float64, bool, error) {
	var out []row
	ord := "position DESC"
	if fn == "MIN" {
		ord = "position ASC"
	}
	err := tx.Model(sc.model).
		Select("id", "position").
		Where(sc.scopeExpr, sc.scopeID).
		Order(ord).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return 0, false, fmt.Errorf("reading boundary position: %w", err)
	}
	if len(out) == 0 {
		return 0, false, nil
	}
	return out[0].Position, true, nil
}

// rebalance rewrites positions to (i+1)*PositionGap by current order. The
// first pass parks every row at a distinct position below the scope's
// current minimum so no intermediate update can trip the unique index; the
// second pass assigns the final values.
func rebalance(tx *gorm.DB, sc scope) error {
	var rows []row
	err := tx.Model(sc.model).
		Select("id", "position").
		Where(sc.scopeExpr, sc.scopeID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("reading rows for rebalance: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	maxAbs := 0.0
	for _, r := range rows {
		abs := r.Position
		if abs < 0 {
			abs = -abs
		}
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	for i, r := range rows {
		park := -(maxAbs + float64(i+1)*PositionGap)
		if err := tx.Model(sc.model).
			Where("id = ?", r.ID).
			Update("position", park).Error; err != nil {
			return fmt.Errorf("parking row during rebalance: %w", err)
		}
	}
	for i, r := range rows {
		if err := tx.Model(sc.model).
			Where("id = ?", r.ID).
			Update("position", float64(i+1)*PositionGap).Error; err != nil {
			return fmt.Errorf("assigning rebalanced position: %w", err)
		}
	}
	return nil
}
