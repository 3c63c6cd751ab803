package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var historyColumns = []string{"id", "scenario_id", "completed", "summary", "practice_language", "model", "timestamp"}

type conversationRepo struct {
	store *Store
}

func (r *conversationRepo) FindOrCreateActive(ctx context.Context, scenarioID, practiceLanguage, model string) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		conv, err := findActive(ctx, tx, scenarioID)
		if err == nil {
			id = conv.ID
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		// A scenario retired by a concurrent completion cannot start over.
		if _, err := getScenario(ctx, tx, scenarioID); err != nil {
			return fmt.Errorf("scenario %q: %w", scenarioID, err)
		}

		ins := builder.Insert(tableHistory).
			Columns("scenario_id", "completed", "practice_language", "model", "timestamp").
			Values(scenarioID, false, practiceLanguage, model, time.Now().UTC()).
			Returning("id")
		err = queryRow(ctx, tx, ins).Scan(&id)
		if err == nil {
			created = true
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("insert conversation: %w", err)
		}

		// Another writer won the race; attach to its conversation.
		conv, err = findActive(ctx, tx, scenarioID)
		if err != nil {
			return fmt.Errorf("attach after conflict: %w", err)
		}
		id = conv.ID
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("find or create conversation for %q: %w", scenarioID, err)
	}
	return id, created, nil
}

func (r *conversationRepo) FindActive(ctx context.Context, scenarioID string) (*Conversation, error) {
	var conv *Conversation
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		conv, err = findActive(ctx, tx, scenarioID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("active conversation for %q: %w", scenarioID, err)
	}
	return conv, nil
}

func findActive(ctx context.Context, tx *sql.Tx, scenarioID string) (*Conversation, error) {
	q := builder.Select(historyColumns...).
		From(builder.Table(tableHistory)).
		Where(entsql.And(
			entsql.EQ("scenario_id", scenarioID),
			entsql.EQ("completed", false),
		)).
		OrderBy(entsql.Desc("id")).
		Limit(1)
	return scanConversation(queryRow(ctx, tx, q))
}

func getConversation(ctx context.Context, tx *sql.Tx, historyID int64) (*Conversation, error) {
	q := builder.Select(historyColumns...).
		From(builder.Table(tableHistory)).
		Where(entsql.EQ("id", historyID))
	return scanConversation(queryRow(ctx, tx, q))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		c       Conversation
		summary sql.NullString
	)
	err := row.Scan(&c.ID, &c.ScenarioID, &c.Completed, &summary, &c.PracticeLanguage, &c.Model, &c.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if summary.Valid {
		c.Summary = &summary.String
	}
	return &c, nil
}

func (r *conversationRepo) AppendMessage(ctx context.Context, historyID int64, speaker Speaker, content string) (*Message, error) {
	if !speaker.Valid() {
		return nil, fmt.Errorf("append message: unknown speaker %q", speaker)
	}
	msg := &Message{
		HistoryID: historyID,
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getConversation(ctx, tx, historyID); err != nil {
			return err
		}
		ins := builder.Insert(tableMessages).
			Columns("history_id", "speaker", "content", "timestamp").
			Values(historyID, string(speaker), content, msg.Timestamp).
			Returning("id")
		return queryRow(ctx, tx, ins).Scan(&msg.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("append message to conversation %d: %w", historyID, err)
	}
	return msg, nil
}

func (r *conversationRepo) Messages(ctx context.Context, historyID int64) ([]Message, error) {
	out := []Message{}
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		q := builder.Select("id", "history_id", "speaker", "content", "timestamp").
			From(builder.Table(tableMessages)).
			Where(entsql.EQ("history_id", historyID)).
			OrderBy("id")
		rows, err := queryRows(ctx, tx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				m       Message
				speaker string
			)
			if err := rows.Scan(&m.ID, &m.HistoryID, &speaker, &m.Content, &m.Timestamp); err != nil {
				return err
			}
			m.Speaker = Speaker(speaker)
			out = append(out, m)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(out) > 0 {
			return nil
		}
		legacy, err := legacyTranscript(ctx, tx, historyID)
		if err != nil {
			return err
		}
		out = legacy
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read transcript %d: %w", historyID, err)
	}
	return out, nil
}

// legacyEntry is one element of the old transcripts JSON column.
type legacyEntry struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// legacyTranscript decodes the transcripts blob of databases written before
// messages had their own table. Rows without a blob yield no messages.
func legacyTranscript(ctx context.Context, tx *sql.Tx, historyID int64) ([]Message, error) {
	var (
		blob sql.NullString
		ts   time.Time
	)
	q := builder.Select("transcripts", "timestamp").
		From(builder.Table(tableHistory)).
		Where(entsql.EQ("id", historyID))
	err := queryRow(ctx, tx, q).Scan(&blob, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !blob.Valid || blob.String == "" {
		return []Message{}, nil
	}

	var entries []legacyEntry
	if err := json.Unmarshal([]byte(blob.String), &entries); err != nil {
		return nil, fmt.Errorf("decode legacy transcript: %w", err)
	}
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		speaker := Speaker(e.Speaker)
		if !speaker.Valid() {
			speaker = SpeakerBot
		}
		out = append(out, Message{
			HistoryID: historyID,
			Speaker:   speaker,
			Content:   e.Content,
			Timestamp: ts,
		})
	}
	return out, nil
}

func (r *conversationRepo) MarkCompleted(ctx context.Context, historyID int64) (bool, error) {
	var transitioned bool
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		conv, err := getConversation(ctx, tx, historyID)
		if err != nil {
			return err
		}
		if conv.Completed {
			return nil
		}
		u := builder.Update(tableHistory).
			Set("completed", true).
			Where(entsql.And(entsql.EQ("id", historyID), entsql.EQ("completed", false)))
		res, err := execQuery(ctx, tx, u)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		transitioned = true
		if err := addScore(ctx, tx, 1); err != nil {
			return err
		}
		return deleteScenario(ctx, tx, conv.ScenarioID)
	})
	if err != nil {
		return false, fmt.Errorf("complete conversation %d: %w", historyID, err)
	}
	return transitioned, nil
}

func (r *conversationRepo) DeleteActive(ctx context.Context, scenarioID string) (bool, error) {
	var deleted bool
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		conv, err := findActive(ctx, tx, scenarioID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := deleteConversation(ctx, tx, conv.ID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("abandon conversation for %q: %w", scenarioID, err)
	}
	return deleted, nil
}

// deleteConversation removes the messages explicitly as well as relying on
// the cascade, so databases created without foreign keys are cleaned too.
func deleteConversation(ctx context.Context, tx *sql.Tx, historyID int64) error {
	if _, err := execQuery(ctx, tx, builder.Delete(tableMessages).Where(entsql.EQ("history_id", historyID))); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := execQuery(ctx, tx, builder.Delete(tableHistory).Where(entsql.EQ("id", historyID)))
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepo) SetSummary(ctx context.Context, historyID int64, summary string) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := execQuery(ctx, tx, builder.Update(tableHistory).
			Set("summary", summary).
			Where(entsql.EQ("id", historyID)))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set summary for conversation %d: %w", historyID, err)
	}
	return nil
}

func (r *conversationRepo) Get(ctx context.Context, historyID int64) (*Conversation, error) {
	var conv *Conversation
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		conv, err = getConversation(ctx, tx, historyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", historyID, err)
	}
	return conv, nil
}

func (r *conversationRepo) ListCompleted(ctx context.Context) ([]Conversation, error) {
	out := []Conversation{}
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		q := builder.Select(historyColumns...).
			From(builder.Table(tableHistory)).
			Where(entsql.EQ("completed", true)).
			OrderBy(entsql.Desc("timestamp"), entsql.Desc("id"))
		rows, err := queryRows(ctx, tx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanConversation(rows)
			if err != nil {
				return err
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list completed conversations: %w", err)
	}
	return out, nil
}

func (r *conversationRepo) Delete(ctx context.Context, historyID int64) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		return deleteConversation(ctx, tx, historyID)
	})
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", historyID, err)
	}
	return nil
}

func (r *conversationRepo) DeleteCompleted(ctx context.Context) (int, error) {
	var n int
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		completed := builder.Select("id").
			From(builder.Table(tableHistory)).
			Where(entsql.EQ("completed", true))
		if _, err := execQuery(ctx, tx, builder.Delete(tableMessages).
			Where(entsql.In("history_id", completed))); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res, err := execQuery(ctx, tx, builder.Delete(tableHistory).Where(entsql.EQ("completed", true)))
		if err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n = int(affected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete completed conversations: %w", err)
	}
	return n, nil
}
