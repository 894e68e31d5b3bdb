// Package repository persists calculation history in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/fx-calc/internal/database"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

const defaultListLimit = 50

// ErrCalculationNotFound is returned when no calculation matches the user and id.
var ErrCalculationNotFound = errors.New("calculation not found")

// CalculationRepository handles calculation history operations.
type CalculationRepository struct {
	db database.PGXDB
}

// NewCalculationRepository creates a new CalculationRepository.
func NewCalculationRepository(db database.PGXDB) *CalculationRepository {
	return &CalculationRepository{db: db}
}

// Create stores a calculation and its steps in one transaction. It assigns
// ID when unset and fills CreatedAt from the database.
func (r *CalculationRepository) Create(ctx context.Context, calc *models.Calculation) error {
	if strings.TrimSpace(calc.UserID) == "" {
		return errors.New("failed to create calculation: user id is required")
	}
	if calc.ID == uuid.Nil {
		calc.ID = uuid.New()
	}
	if calc.CurrencyCode == "" {
		calc.CurrencyCode = "BRL"
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin calculation transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO calculations (id, user_id, initial_amount, final_amount, currency_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, calc.ID, calc.UserID, calc.InitialAmount, calc.FinalAmount, calc.CurrencyCode,
	).Scan(&calc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create calculation: %w", err)
	}

	if len(calc.Steps) > 0 {
		batch := &pgx.Batch{}
		for _, step := range calc.Steps {
			batch.Queue(`
				INSERT INTO calculation_steps (
					calculation_id, step_number, description, calculation_details,
					result_intermediate, result_running_total, explanation
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, calc.ID, step.Step, step.Description, step.CalculationDetails,
				step.ResultIntermediate, step.ResultRunningTotal, step.Explanation)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to create calculation steps: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit calculation: %w", err)
	}
	return nil
}

// ListByUser returns a user's calculations newest first, without steps.
func (r *CalculationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Calculation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, initial_amount, final_amount, currency_code, created_at
		FROM calculations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	var calcs []models.Calculation
	for rows.Next() {
		var c models.Calculation
		if err := rows.Scan(&c.ID, &c.UserID, &c.InitialAmount, &c.FinalAmount, &c.CurrencyCode, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		calcs = append(calcs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calculations: %w", err)
	}
	return calcs, nil
}

// GetByID returns one of the user's calculations with its steps in order.
func (r *CalculationRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.Calculation, error) {
	var c models.Calculation
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, initial_amount, final_amount, currency_code, created_at
		FROM calculations
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&c.ID, &c.UserID, &c.InitialAmount, &c.FinalAmount, &c.CurrencyCode, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCalculationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calculation: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT step_number, description, calculation_details,
		       result_intermediate, result_running_total, explanation
		FROM calculation_steps
		WHERE calculation_id = $1
		ORDER BY step_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculation steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.CalculationStep
		if err := rows.Scan(&s.Step, &s.Description, &s.CalculationDetails,
			&s.ResultIntermediate, &s.ResultRunningTotal, &s.Explanation); err != nil {
			return nil, fmt.Errorf("failed to scan calculation step: %w", err)
		}
		c.Steps = append(c.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calculation steps: %w", err)
	}
	return &c, nil
}

// Delete removes one of the user's calculations. Steps cascade.
func (r *CalculationRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM calculations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete calculation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCalculationNotFound
	}
	return nil
}
