package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/guaminsects/crbmap/internal/database"
	"github.com/guaminsects/crbmap/internal/models"
)

// maxGridCells caps a single query.
const maxGridCells = 10000

// GridRepository handles database operations for grid cells
type GridRepository struct {
	db *sql.DB
}

// NewGridRepository creates a new grid repository
func NewGridRepository(db *sql.DB) *GridRepository {
	return &GridRepository{db: db}
}

// ReplaceCells swaps the stored grid for cells in one transaction.
func (r *GridRepository) ReplaceCells(ctx context.Context, runID string, cells []models.AggregatedCell) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM grid_cells`); err != nil {
			return fmt.Errorf("failed to clear grid cells: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO grid_cells (id, row_index, col_index, min_x, min_y, max_x, max_y,
				damage_mean, point_count, center_lat, center_lon, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare grid cell insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range cells {
			_, err := stmt.ExecContext(ctx,
				c.ID, c.Row, c.Col, c.MinX, c.MinY, c.MaxX, c.MaxY,
				c.DamageMean, c.PointCount, c.CenterLat, c.CenterLon, runID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert grid cell %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

const gridSelect = `SELECT id, row_index, col_index, min_x, min_y, max_x, max_y,
	damage_mean, point_count, center_lat, center_lon
	FROM grid_cells`

// GetGridCells retrieves grid cells with filtering
func (r *GridRepository) GetGridCells(ctx context.Context, filter models.GridFilter) ([]models.AggregatedCell, error) {
	query := gridSelect

	var conditions []string
	var args []interface{}

	if filter.MinDamage != nil {
		conditions = append(conditions, "damage_mean >= ?")
		args = append(args, *filter.MinDamage)
	}
	if filter.MaxDamage != nil {
		conditions = append(conditions, "damage_mean <= ?")
		args = append(args, *filter.MaxDamage)
	}
	if filter.MinPoints > 0 {
		conditions = append(conditions, "point_count >= ?")
		args = append(args, filter.MinPoints)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Worst damage first
	query += " ORDER BY damage_mean DESC, id"

	limit := filter.Limit
	if limit <= 0 || limit > maxGridCells {
		limit = maxGridCells
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid cells: %w", err)
	}
	defer rows.Close()

	var cells []models.AggregatedCell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}

	return cells, rows.Err()
}

// GetGridCellByID retrieves a single grid cell; nil if there is none.
func (r *GridRepository) GetGridCellByID(ctx context.Context, id int64) (*models.AggregatedCell, error) {
	c, err := scanCell(r.db.QueryRowContext(ctx, gridSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// Damages returns every stored cell mean.
func (r *GridRepository) Damages(ctx context.Context) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT damage_mean FROM grid_cells`)
	if err != nil {
		return nil, fmt.Errorf("failed to query damage values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan damage value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func scanCell(row rowScanner) (*models.AggregatedCell, error) {
	var c models.AggregatedCell
	err := row.Scan(
		&c.ID, &c.Row, &c.Col, &c.MinX, &c.MinY, &c.MaxX, &c.MaxY,
		&c.DamageMean, &c.PointCount, &c.CenterLat, &c.CenterLon,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan grid cell: %w", err)
	}
	return &c, nil
}
