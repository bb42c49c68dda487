package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordOracleCall appends one oracle invocation attempt to the ledger.
func (s *Store) RecordOracleCall(ctx context.Context, call OracleCall) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO oracle_calls (
            run_id, attempt, model, succeeded, input_tokens, output_tokens,
            total_tokens, error_message, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.RunID,
		call.Attempt,
		call.Model,
		boolToInt(call.Succeeded),
		call.InputTokens,
		call.OutputTokens,
		call.TotalTokens,
		nullableString(call.ErrorMessage),
		call.Duration.Milliseconds(),
		formatTime(call.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record oracle call: %w", err)
	}
	return nil
}

// OracleCalls lists the invocation attempts of a run in attempt order.
func (s *Store) OracleCalls(ctx context.Context, runID string) ([]OracleCall, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, attempt, model, succeeded, input_tokens, output_tokens,
            total_tokens, error_message, duration_ms, created_at
        FROM oracle_calls WHERE run_id = ? ORDER BY attempt, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list oracle calls: %w", err)
	}
	defer rows.Close()

	var calls []OracleCall
	for rows.Next() {
		var (
			call       OracleCall
			succeeded  int
			errMessage sql.NullString
			durationMS int64
			created    sql.NullString
		)
		if err := rows.Scan(
			&call.RunID,
			&call.Attempt,
			&call.Model,
			&succeeded,
			&call.InputTokens,
			&call.OutputTokens,
			&call.TotalTokens,
			&errMessage,
			&durationMS,
			&created,
		); err != nil {
			return nil, fmt.Errorf("scan oracle call: %w", err)
		}
		call.Succeeded = succeeded != 0
		call.ErrorMessage = errMessage.String
		call.Duration = time.Duration(durationMS) * time.Millisecond
		call.CreatedAt = parseTime(created)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oracle calls: %w", err)
	}
	return calls, nil
}

// Usage sums oracle token usage for a run. An empty runID sums the whole ledger.
func (s *Store) Usage(ctx context.Context, runID string) (UsageTotals, error) {
	ctx = ensureContext(ctx)
	query := `SELECT COUNT(1), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
        COALESCE(SUM(total_tokens), 0) FROM oracle_calls`
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	var totals UsageTotals
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&totals.Calls, &totals.InputTokens, &totals.OutputTokens, &totals.TotalTokens,
	); err != nil {
		return UsageTotals{}, fmt.Errorf("sum oracle usage: %w", err)
	}
	return totals, nil
}
