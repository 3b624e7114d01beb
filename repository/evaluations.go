package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"cash-buying-power/models"
	"cash-buying-power/observability"
)

// CreateEvaluation records a completed buying power evaluation
func (r *Repository) CreateEvaluation(ctx context.Context, eval *models.Evaluation) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "evaluations")

	inputData, err := json.Marshal(eval.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation input: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO evaluations (id, account_id, operation, symbol, input_data, result, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, eval.ID, eval.AccountID, eval.Operation, eval.Symbol, inputData, eval.Result, eval.Error, eval.DurationMs, eval.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "evaluations")
		return fmt.Errorf("failed to create evaluation: %w", err)
	}

	return nil
}

// GetEvaluations returns the account's most recent evaluations
func (r *Repository) GetEvaluations(ctx context.Context, accountID string, limit int) ([]models.Evaluation, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "evaluations")

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, operation, symbol, input_data, result, error, duration_ms, created_at
		FROM evaluations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		metrics.RecordDBError("select", "evaluations")
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		var e models.Evaluation
		var inputData []byte
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Operation, &e.Symbol, &inputData, &e.Result, &e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			metrics.RecordDBError("select", "evaluations")
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if inputData != nil {
			if err := json.Unmarshal(inputData, &e.InputData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evaluation input: %w", err)
			}
		}
		evals = append(evals, e)
	}

	return evals, rows.Err()
}
