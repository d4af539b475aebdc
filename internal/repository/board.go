// internal/repository/board.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) Create(ctx context.Context, board *model.Board) error {
	if err := r.db.WithContext(ctx).Create(board).Error; err != nil {
		return fmt.Errorf("creating board: %w", err)
	}
	return nil
}

func (r *BoardRepository) FindByProject(ctx context.Context, projectID uuid.UUID) (*model.Board, error) {
	var board model.Board
	if err := r.db.WithContext(ctx).First(&board, "project_id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding board: %w", err)
	}
	return &board, nil
}

func (r *BoardRepository) CreateColumn(ctx context.Context, column *model.Column) error {
	if err := r.db.WithContext(ctx).Create(column).Error; err != nil {
		return fmt.Errorf("creating column: %w", err)
	}
	return nil
}

func (r *BoardRepository) FindColumn(ctx context.Context, boardID, columnID uuid.UUID) (*model.Column, error) {
	var column model.Column
	err := r.db.WithContext(ctx).
		First(&column, "id = ? AND board_id = ?", columnID, boardID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding column: %w", err)
	}
	return &column, nil
}

// FindColumns returns the board's columns in display order.
func (r *BoardRepository) FindColumns(ctx context.Context, boardID uuid.UUID) ([]model.Column, error) {
	var columns []model.Column
	if err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&columns).Error; err != nil {
		return nil, fmt.Errorf("finding columns: %w", err)
	}
	return columns, nil
}

func (r *BoardRepository) UpdateColumn(ctx context.Context, column *model.Column) error {
	if err := r.db.WithContext(ctx).Save(column).Error; err != nil {
		return fmt.Errorf("updating column: %w", err)
	}
	return nil
}
