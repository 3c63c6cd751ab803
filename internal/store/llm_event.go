package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var llmEventColumns = []string{
	"id", "timestamp", "provider", "model", "purpose", "input_tokens", "output_tokens",
	"latency_ms", "success", "error_message", "request_body", "response_body",
}

// eventRepo implements EventRepo on the llm_request_events table.
type eventRepo struct {
	store *Store
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	ins := builder.Insert(tableLLMEvents).
		Columns(llmEventColumns[1:]...).
		Values(time.Now().UTC(), data.Provider, data.Model, data.Purpose, data.InputTokens, data.OutputTokens,
			data.LatencyMs, data.Success, data.ErrorMessage, data.RequestBody, data.ResponseBody)
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, ins)
		return err
	})
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error) {
	q := builder.Select(llmEventColumns...).
		From(builder.Table(tableLLMEvents)).
		OrderBy(entsql.Desc("id"))
	if opts.Purpose != "" {
		q.Where(entsql.EQ("purpose", opts.Purpose))
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	var out []LLMRequestEvent
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := queryRows(ctx, tx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanLLMEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, *e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error) {
	var e *LLMRequestEvent
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		q := builder.Select(llmEventColumns...).
			From(builder.Table(tableLLMEvents)).
			Where(entsql.EQ("id", id))
		var err error
		e, err = scanLLMEvent(queryRow(ctx, tx, q))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("LLM event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	return e, nil
}

func scanLLMEvent(row rowScanner) (*LLMRequestEvent, error) {
	var e LLMRequestEvent
	err := row.Scan(&e.ID, &e.Timestamp, &e.Provider, &e.Model, &e.Purpose, &e.InputTokens, &e.OutputTokens,
		&e.LatencyMs, &e.Success, &e.ErrorMessage, &e.RequestBody, &e.ResponseBody)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error) {
	return r.usageBy(ctx, "purpose")
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMUsage, error) {
	return r.usageBy(ctx, "model")
}

// usageBy aggregates successful and failed calls grouped by column.
func (r *eventRepo) usageBy(ctx context.Context, column string) ([]LLMUsage, error) {
	q := builder.Select().
		AppendSelect(column).
		AppendSelectExprAs(entsql.Raw("COUNT(*)"), "calls").
		AppendSelectExprAs(entsql.Raw("COALESCE(SUM(input_tokens), 0)"), "input_tokens").
		AppendSelectExprAs(entsql.Raw("COALESCE(SUM(output_tokens), 0)"), "output_tokens").
		AppendSelectExprAs(entsql.Raw("CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER)"), "avg_latency_ms").
		From(builder.Table(tableLLMEvents)).
		GroupBy(column).
		OrderBy(column)

	var out []LLMUsage
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := queryRows(ctx, tx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				u   LLMUsage
				key string
			)
			if err := rows.Scan(&key, &u.Calls, &u.InputTokens, &u.OutputTokens, &u.AvgLatencyMs); err != nil {
				return err
			}
			if column == "model" {
				u.Model = key
			} else {
				u.Purpose = key
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate LLM usage by %s: %w", column, err)
	}
	return out, nil
}
