package ordering_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/ordering"
	"github.com/tackboard/tackboard/internal/testdb"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	boardID  uuid.UUID
	columnID uuid.UUID
	projID   uuid.UUID
	nextNum  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:      testdb.Open(t),
		boardID: uuid.New(),
		projID:  uuid.New(),
	}
	require.NoError(t, f.db.Create(&model.Board{ID: f.boardID, ProjectID: f.projID}).Error)

	col := &model.Column{BoardID: f.boardID, Name: "To Do", Position: ordering.PositionGap}
	require.NoError(t, f.db.Create(col).Error)
	f.columnID = col.ID
	return f
}

func (f *fixture) addTask(t *testing.T, title string, pos float64) *model.Task {
	t.Helper()
	f.nextNum++
	task := &model.Task{
		ProjectID:  f.projID,
		BoardID:    f.boardID,
		ColumnID:   f.columnID,
		TaskNumber: f.nextNum,
		Position:   pos,
		Title:      title,
		Priority:   model.PriorityMedium,
	}
	require.NoError(t, f.db.Create(task).Error)
	return task
}

func (f *fixture) titlesInOrder(t *testing.T) []string {
	t.Helper()
	var tasks []model.Task
	require.NoError(t, f.db.
		Where("column_id = ?", f.columnID).
		Order("position ASC").
		Find(&tasks).Error)
	titles := make([]string, len(tasks))
	for i, task := range tasks {
		titles[i] = task.Title
	}
	return titles
}

func TestTaskSlotAppendsToTail(t *testing.T) {
	f := newFixture(t)

	pos, err := ordering.TaskSlot(f.db, f.columnID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ordering.PositionGap, pos)
	f.addTask(t, "a", pos)

	pos, err = ordering.TaskSlot(f.db, f.columnID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*ordering.PositionGap, pos)
}

func TestTaskSlotInsertsBetween(t *testing.T) {
	f := newFixture(t)
	a := f.addTask(t, "a", 1024)
	b := f.addTask(t, "b", 2048)

	pos, err := ordering.TaskSlot(f.db, f.columnID, &a.ID, &b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1536.0, pos)
	f.addTask(t, "between", pos)

	assert.Equal(t, []string{"a", "between", "b"}, f.titlesInOrder(t))
}

func TestTaskSlotBeforeHead(t *testing.T) {
	f := newFixture(t)
	a := f.addTask(t, "a", 1024)
	f.addTask(t, "b", 2048)

	pos, err := ordering.TaskSlot(f.db, f.columnID, nil, &a.ID)
	require.NoError(t, err)
	assert.Less(t, pos, a.Position)
	f.addTask(t, "head", pos)

	assert.Equal(t, []string{"head", "a", "b"}, f.titlesInOrder(t))
}

func TestTaskSlotAfterAnchorSplitsWithSuccessor(t *testing.T) {
	f := newFixture(t)
	a := f.addTask(t, "a", 1024)
	f.addTask(t, "b", 2048)

	pos, err := ordering.TaskSlot(f.db, f.columnID, &a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1536.0, pos)
}

func TestTaskSlotRejectsInvertedAnchors(t *testing.T) {
	f := newFixture(t)
	a := f.addTask(t, "a", 1024)
	b := f.addTask(t, "b", 2048)

	_, err := ordering.TaskSlot(f.db, f.columnID, &b.ID, &a.ID)
	assert.ErrorIs(t, err, ordering.ErrBadNeighbors)
}

func TestTaskSlotUnknownAnchor(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, "a", 1024)
	ghost := uuid.New()

	_, err := ordering.TaskSlot(f.db, f.columnID, &ghost, nil)
	assert.Error(t, err)
}

// Repeated insertion into the same gap must stay transparent to callers:
// once midpoints run out of precision the engine rebalances the column and
// retries, and the relative order never changes.
func TestTaskSlotRebalancesWhenPrecisionExhausted(t *testing.T) {
	f := newFixture(t)
	a := f.addTask(t, "a", 1024)
	b := f.addTask(t, "b", 2048)

	// Each round inserts directly after "a", halving the remaining gap.
	// 1024 / 2^50 is far below the minimum gap, so a rebalance must fire
	// somewhere along the way.
	prev := b
	want := []string{"a"}
	for i := 0; i < 50; i++ {
		pos, err := ordering.TaskSlot(f.db, f.columnID, &a.ID, &prev.ID)
		require.NoError(t, err, "round %d", i)
		title := "t" + string(rune('A'+i%26)) + string(rune('a'+i/26))
		prev = f.addTask(t, title, pos)
		want = append([]string{want[0], title}, want[1:]...)
	}
	want = append(want, "b")

	assert.Equal(t, want, f.titlesInOrder(t))

	// After the rebalance all positions are clean multiples of the gap
	// again only until the next midpoint insert, so just confirm the
	// column remains insertable.
	_, err := ordering.TaskSlot(f.db, f.columnID, &a.ID, &prev.ID)
	assert.NoError(t, err)
}

func TestRebalanceTasksPreservesOrderAndSpacing(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, "a", 3.5)
	f.addTask(t, "b", 3.50000001)
	f.addTask(t, "c", 900)

	require.NoError(t, ordering.RebalanceTasks(f.db, f.columnID))

	var tasks []model.Task
	require.NoError(t, f.db.
		Where("column_id = ?", f.columnID).
		Order("position ASC").
		Find(&tasks).Error)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, float64(i+1)*ordering.PositionGap, task.Position)
	}
	assert.Equal(t, []string{"a", "b", "c"}, f.titlesInOrder(t))
}

func TestColumnSlotAndRebalance(t *testing.T) {
	f := newFixture(t)

	second := &model.Column{BoardID: f.boardID, Name: "Doing", Position: 2 * ordering.PositionGap}
	require.NoError(t, f.db.Create(second).Error)

	// Append lands after the existing columns.
	pos, err := ordering.ColumnSlot(f.db, f.boardID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*ordering.PositionGap, pos)

	// Move the second column ahead of the first.
	pos, err = ordering.ColumnSlot(f.db, f.boardID, nil, &f.columnID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Column{}).
		Where("id = ?", second.ID).
		Update("position", pos).Error)

	require.NoError(t, ordering.RebalanceColumns(f.db, f.boardID))

	var cols []model.Column
	require.NoError(t, f.db.
		Where("board_id = ?", f.boardID).
		Order("position ASC").
		Find(&cols).Error)
	require.Len(t, cols, 2)
	assert.Equal(t, "Doing", cols[0].Name)
	assert.Equal(t, "To Do", cols[1].Name)
}
