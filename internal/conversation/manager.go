// Package conversation drives the lifecycle of practice conversations: one
// live conversation per scenario, the turn protocol, completion with
// scoring and summaries, and abandonment.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/lingoflow/internal/store"
)

// Manager binds scenarios to at most one incomplete conversation each.
// All state lives in the store; nothing is cached in memory.
type Manager struct {
	repo  store.ConversationRepo
	group singleflight.Group
	log   *zap.Logger
}

// NewManager creates a Manager over repo.
func NewManager(repo store.ConversationRepo, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{repo: repo, log: log.Named("conversation")}
}

// GetOrCreateActive returns the incomplete conversation for scenarioID,
// creating it with the given language and model snapshot when none exists.
// Concurrent calls for the same scenario share one lookup.
func (m *Manager) GetOrCreateActive(ctx context.Context, scenarioID, practiceLanguage, model string) (int64, error) {
	v, err, _ := m.group.Do(scenarioID, func() (any, error) {
		id, created, err := m.repo.FindOrCreateActive(ctx, scenarioID, practiceLanguage, model)
		if err != nil {
			return int64(0), err
		}
		if created {
			m.log.Info("conversation started", zap.String("scenario", scenarioID), zap.Int64("history_id", id))
		}
		return id, nil
	})
	if err != nil {
		return 0, fmt.Errorf("get or create conversation for %q: %w", scenarioID, err)
	}
	return v.(int64), nil
}

// Active returns the incomplete conversation for scenarioID or
// store.ErrNotFound.
func (m *Manager) Active(ctx context.Context, scenarioID string) (*store.Conversation, error) {
	return m.repo.FindActive(ctx, scenarioID)
}

// RecordTurn appends a message to the transcript.
func (m *Manager) RecordTurn(ctx context.Context, historyID int64, speaker store.Speaker, content string) error {
	if _, err := m.repo.AppendMessage(ctx, historyID, speaker, content); err != nil {
		return fmt.Errorf("record %s turn: %w", speaker, err)
	}
	return nil
}

// ReadTranscript returns the transcript oldest first; unknown or empty
// conversations yield an empty slice.
func (m *Manager) ReadTranscript(ctx context.Context, historyID int64) ([]store.Message, error) {
	msgs, err := m.repo.Messages(ctx, historyID)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return msgs, nil
}

// Complete marks the conversation completed, scores it and retires its
// scenario. It reports whether this call made the transition; completing
// twice is a no-op.
func (m *Manager) Complete(ctx context.Context, historyID int64) (bool, error) {
	done, err := m.repo.MarkCompleted(ctx, historyID)
	if err != nil {
		return false, fmt.Errorf("complete conversation %d: %w", historyID, err)
	}
	if done {
		m.log.Info("conversation completed", zap.Int64("history_id", historyID))
	}
	return done, nil
}

// Abandon discards the scenario's incomplete conversation with its
// transcript. Without one it does nothing.
func (m *Manager) Abandon(ctx context.Context, scenarioID string) error {
	deleted, err := m.repo.DeleteActive(ctx, scenarioID)
	if err != nil {
		return fmt.Errorf("abandon %q: %w", scenarioID, err)
	}
	if deleted {
		m.log.Info("conversation abandoned", zap.String("scenario", scenarioID))
	}
	return nil
}

// AttachSummary stores the summary text.
func (m *Manager) AttachSummary(ctx context.Context, historyID int64, text string) error {
	return m.repo.SetSummary(ctx, historyID, text)
}

// ListCompleted returns completed conversations, most recent first.
func (m *Manager) ListCompleted(ctx context.Context) ([]store.Conversation, error) {
	return m.repo.ListCompleted(ctx)
}

// Get returns one conversation header or store.ErrNotFound.
func (m *Manager) Get(ctx context.Context, historyID int64) (*store.Conversation, error) {
	return m.repo.Get(ctx, historyID)
}

// DeleteOne removes a conversation and its messages.
func (m *Manager) DeleteOne(ctx context.Context, historyID int64) error {
	return m.repo.Delete(ctx, historyID)
}

// DeleteAllCompleted removes every completed conversation.
func (m *Manager) DeleteAllCompleted(ctx context.Context) (int, error) {
	return m.repo.DeleteCompleted(ctx)
}

// IsNotFound reports whether err means an unknown scenario or conversation.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
