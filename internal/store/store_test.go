package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.db

	tests := []struct {
		pragma string
		want   string
	}{
		{"foreign_keys", "1"},
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/tmp/x.db")
	assert.True(t, strings.HasPrefix(dsn, "/tmp/x.db?_pragma=foreign_keys(1)"))
	assert.Contains(t, dsn, "&_pragma=busy_timeout(5000)")

	dsn = buildDSN("file:x.db?_pragma=busy_timeout(100)")
	assert.NotContains(t, dsn, "busy_timeout(5000)")
	assert.Contains(t, dsn, "&_pragma=foreign_keys(1)")
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SettingsRepo().Update(ctx, SettingsPatch{Theme: "dark"}, 3))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.SettingsRepo().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", st.Theme)
	assert.Equal(t, 3, st.Score)
}

func TestSettingsDefaults(t *testing.T) {
	s := openTestStore(t)

	st, err := s.SettingsRepo().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{
		Theme:            "system",
		Model:            "gemma3:4b",
		PracticeLanguage: "Japanese",
		UILanguage:       "English",
		Score:            0,
	}, *st)
}

func TestSettingsPartialUpdate(t *testing.T) {
	s := openTestStore(t)
	repo := s.SettingsRepo()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, SettingsPatch{PracticeLanguage: "Spanish"}, 0))
	require.NoError(t, repo.Update(ctx, SettingsPatch{}, 2))
	require.NoError(t, repo.Update(ctx, SettingsPatch{Model: "llama3"}, 1))

	st, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Spanish", st.PracticeLanguage)
	assert.Equal(t, "English", st.UILanguage)
	assert.Equal(t, "system", st.Theme)
	assert.Equal(t, "llama3", st.Model)
	assert.Equal(t, 3, st.Score)
}

func TestSettingsEmptyUpdateIsNoop(t *testing.T) {
	s := openTestStore(t)
	repo := s.SettingsRepo()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, SettingsPatch{Theme: "dark"}, 4))
	before, err := repo.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, SettingsPatch{}, 0))

	after, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, *before, *after)
}

func TestSettingsRejectsNegativeDelta(t *testing.T) {
	s := openTestStore(t)
	repo := s.SettingsRepo()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, SettingsPatch{}, 5))
	require.Error(t, repo.Update(ctx, SettingsPatch{}, -1))

	st, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Score)
}

func cafe() Scenario {
	return Scenario{ID: "s1", Setting: "cafe", Goal: "order coffee", Description: "A small cafe", Clipart: DefaultClipart}
}

// seedScenarios puts minimal scenarios with the given ids in the catalog.
func seedScenarios(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	scenarios := make([]Scenario, len(ids))
	for i, id := range ids {
		scenarios[i] = Scenario{ID: id, Setting: "place " + id, Goal: "goal " + id, Clipart: DefaultClipart}
	}
	_, err := s.ScenarioRepo().AddIfAbsent(context.Background(), scenarios)
	require.NoError(t, err)
}

func TestScenarioAddIfAbsentDoesNotOverwrite(t *testing.T) {
	s := openTestStore(t)
	repo := s.ScenarioRepo()
	ctx := context.Background()

	n, err := repo.AddIfAbsent(ctx, []Scenario{cafe()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	changed := cafe()
	changed.Goal = "order tea"
	changed.Setting = "tea house"
	n, err = repo.AddIfAbsent(ctx, []Scenario{changed, {ID: "s2", Setting: "station", Goal: "buy ticket", Clipart: DefaultClipart}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cafe(), *got)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].ID)
	assert.Equal(t, "s2", all[1].ID)
}

func TestScenarioReplaceAll(t *testing.T) {
	s := openTestStore(t)
	repo := s.ScenarioRepo()
	ctx := context.Background()

	_, err := repo.AddIfAbsent(ctx, []Scenario{cafe()})
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceAll(ctx, []Scenario{
		{ID: "a", Setting: "hotel", Goal: "check in", Clipart: DefaultClipart},
		{ID: "a", Setting: "dup", Goal: "dup", Clipart: DefaultClipart},
		{ID: "b", Setting: "clinic", Goal: "book", Clipart: DefaultClipart},
	}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "hotel", all[0].Setting)

	_, err = repo.Get(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestScenarioDeleteUnknownIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.ScenarioRepo().Delete(context.Background(), "missing"))
}

func TestFindOrCreateActiveAttaches(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	repo := s.ConversationRepo()
	ctx := context.Background()

	id1, created, err := repo.FindOrCreateActive(ctx, "s1", "Japanese", "gemma3:4b")
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := repo.FindOrCreateActive(ctx, "s1", "French", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	conv, err := repo.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Japanese", conv.PracticeLanguage)
	assert.Equal(t, "gemma3:4b", conv.Model)
	assert.False(t, conv.Completed)
	assert.Nil(t, conv.Summary)
}

func TestActiveIndexRejectsSecondIncomplete(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	ctx := context.Background()

	_, _, err := s.ConversationRepo().FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (scenario_id, completed, practice_language, model, timestamp) VALUES ('s1', 0, '', '', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "expected unique violation, got %v", err)

	// Completed rows for the same scenario are allowed.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (scenario_id, completed, practice_language, model, timestamp) VALUES ('s1', 1, '', '', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
}

func TestFindOrCreateActiveConcurrent(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	repo := s.ConversationRepo()
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := repo.FindOrCreateActive(ctx, "s1", "Japanese", "m")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, countIncomplete(t, s, "s1"))
}

func countIncomplete(t *testing.T, s *Store, scenarioID string) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM history WHERE scenario_id = ? AND completed = 0`, scenarioID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	repo := s.ConversationRepo()
	ctx := context.Background()

	id, _, err := repo.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)

	want := []string{"one", "two", "three", "four", "five"}
	for i, content := range want {
		speaker := SpeakerUser
		if i%2 == 1 {
			speaker = SpeakerBot
		}
		_, err := repo.AppendMessage(ctx, id, speaker, content)
		require.NoError(t, err)
	}

	msgs, err := repo.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, len(want))
	for i, m := range msgs {
		assert.Equal(t, want[i], m.Content)
		assert.Equal(t, id, m.HistoryID)
	}
	assert.Equal(t, SpeakerUser, msgs[0].Speaker)
	assert.Equal(t, SpeakerBot, msgs[1].Speaker)
}

func TestMessagesUnknownConversationIsEmpty(t *testing.T) {
	s := openTestStore(t)

	msgs, err := s.ConversationRepo().Messages(context.Background(), 999)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ConversationRepo().AppendMessage(context.Background(), 42, SpeakerUser, "hi")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppendMessageRejectsUnknownSpeaker(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ConversationRepo().AppendMessage(context.Background(), 1, Speaker("System"), "hi")
	assert.Error(t, err)
}

func TestLegacyTranscriptFallback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (scenario_id, completed, practice_language, model, timestamp, transcripts)
		 VALUES ('old', 1, 'Japanese', 'gemma3:4b', CURRENT_TIMESTAMP, ?)`,
		`[{"speaker":"User","content":"konnichiwa"},{"speaker":"Bot","content":"irasshaimase"}]`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	msgs, err := s.ConversationRepo().Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, SpeakerUser, msgs[0].Speaker)
	assert.Equal(t, "irasshaimase", msgs[1].Content)

	// Normalized rows win over the blob once they exist.
	_, err = s.ConversationRepo().AppendMessage(ctx, id, SpeakerBot, "new")
	require.NoError(t, err)
	msgs, err = s.ConversationRepo().Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Content)
}

func TestMarkCompletedIsIdempotentAndRetiresScenario(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := s.ConversationRepo()

	_, err := s.ScenarioRepo().AddIfAbsent(ctx, []Scenario{cafe()})
	require.NoError(t, err)
	id, _, err := conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)

	done, err := conv.MarkCompleted(ctx, id)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = conv.MarkCompleted(ctx, id)
	require.NoError(t, err)
	assert.False(t, done)

	st, err := s.SettingsRepo().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Score, "only the transition scores")

	_, err = s.ScenarioRepo().Get(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = conv.FindActive(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = conv.MarkCompleted(ctx, 12345)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteActiveRemovesMessages(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	ctx := context.Background()
	conv := s.ConversationRepo()

	id, _, err := conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)
	_, err = conv.AppendMessage(ctx, id, SpeakerUser, "hello")
	require.NoError(t, err)

	deleted, err := conv.DeleteActive(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = conv.Get(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, countMessages(t, s, id))

	deleted, err = conv.DeleteActive(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, deleted)

	next, created, err := conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id, next)
}

func countMessages(t *testing.T, s *Store, historyID int64) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE history_id = ?`, historyID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestCascadeDeleteFromHistory(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "s1")
	ctx := context.Background()
	conv := s.ConversationRepo()

	id, _, err := conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)
	_, err = conv.AppendMessage(ctx, id, SpeakerUser, "hello")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	require.NoError(t, err)
	assert.Equal(t, 0, countMessages(t, s, id))
}

func TestListAndDeleteCompleted(t *testing.T) {
	s := openTestStore(t)
	seedScenarios(t, s, "a", "b", "c")
	ctx := context.Background()
	conv := s.ConversationRepo()

	var completed []int64
	for _, sc := range []string{"a", "b", "c"} {
		id, _, err := conv.FindOrCreateActive(ctx, sc, "Japanese", "m")
		require.NoError(t, err)
		_, err = conv.AppendMessage(ctx, id, SpeakerUser, "hi "+sc)
		require.NoError(t, err)
		if sc != "c" {
			_, err = conv.MarkCompleted(ctx, id)
			require.NoError(t, err)
			completed = append(completed, id)
		}
	}
	require.NoError(t, conv.SetSummary(ctx, completed[0], "went well"))

	list, err := conv.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, completed[1], list[0].ID, "most recent first")
	require.NotNil(t, list[1].Summary)
	assert.Equal(t, "went well", *list[1].Summary)

	require.NoError(t, conv.Delete(ctx, completed[1]))
	assert.Equal(t, 0, countMessages(t, s, completed[1]))
	assert.True(t, errors.Is(conv.Delete(ctx, completed[1]), ErrNotFound))

	list, err = conv.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, completed[0], list[0].ID)

	n, err := conv.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, countMessages(t, s, completed[0]))

	// The incomplete conversation survives.
	active, err := conv.FindActive(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, countMessages(t, s, active.ID))
}

func TestFindOrCreateActiveRequiresScenario(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := s.ConversationRepo()

	_, _, err := conv.FindOrCreateActive(ctx, "missing", "Japanese", "m")
	assert.True(t, errors.Is(err, ErrNotFound))

	seedScenarios(t, s, "s1")
	id, _, err := conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	require.NoError(t, err)
	_, err = conv.MarkCompleted(ctx, id)
	require.NoError(t, err)

	// The completion retired s1; a late turn must not reopen it.
	_, _, err = conv.FindOrCreateActive(ctx, "s1", "Japanese", "m")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, countIncomplete(t, s, "s1"))
}

func TestIsUniqueViolationIgnoresOtherConstraints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (scenario_id, completed, practice_language, model, timestamp) VALUES (NULL, 0, '', '', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "NOT NULL failure reported as unique: %v", err)

	_, err = s.db.ExecContext(ctx, `INSERT INTO messages (history_id, speaker, content, timestamp) VALUES (999, 'User', 'x', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "foreign key failure reported as unique: %v", err)
}

func TestSetSummaryUnknown(t *testing.T) {
	s := openTestStore(t)
	err := s.ConversationRepo().SetSummary(context.Background(), 7, "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "ollama", Model: "gemma3:4b", Purpose: "chat-reply", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true},
		{Provider: "ollama", Model: "gemma3:4b", Purpose: "goal-eval", InputTokens: 50, OutputTokens: 2, LatencyMs: 100, Success: true},
		{Provider: "ollama", Model: "gemma3:4b", Purpose: "chat-reply", InputTokens: 120, OutputTokens: 30, LatencyMs: 500, Success: false, ErrorMessage: "boom"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "boom", all[0].ErrorMessage, "newest first")

	replies, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "chat-reply", Limit: 1})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.False(t, replies[0].Success)

	one, err := repo.GetLLMEvent(ctx, all[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "goal-eval", all[1].Purpose)
	assert.Equal(t, 100, one.InputTokens)

	_, err = repo.GetLLMEvent(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, "chat-reply", byPurpose[0].Purpose)
	assert.Equal(t, 2, byPurpose[0].Calls)
	assert.Equal(t, 220, byPurpose[0].InputTokens)
	assert.Equal(t, int64(400), byPurpose[0].AvgLatencyMs)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, 3, byModel[0].Calls)
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("stop")
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO active_scenarios (id, setting, goal, description, clipart) VALUES ('x', 'a', 'b', '', 'c')`); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = s.ScenarioRepo().Get(ctx, "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}
