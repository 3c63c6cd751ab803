package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/generation"
	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/scenario"
	"github.com/abhisek/lingoflow/internal/store"
)

// Status is the goal state reported after a turn.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusReached Status = "REACHED"
)

var (
	// ErrEmptyMessage is returned for a turn without text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotCompleted is returned when summarizing a live conversation.
	ErrNotCompleted = errors.New("conversation is not completed")
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingoflow_turns_total",
			Help: "Conversation turns by resulting status.",
		},
		[]string{"status"},
	)
	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lingoflow_turn_duration_seconds",
			Help:    "End-to-end turn latency including generation.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 240},
		},
	)
)

// Dispatcher queues background work without blocking.
type Dispatcher interface {
	Dispatch(reason string) bool
}

// TurnResult is the outcome of one learner turn.
type TurnResult struct {
	Reply     string  `json:"bot_message"`
	Status    Status  `json:"status"`
	Summary   *string `json:"summary,omitempty"`
	HistoryID int64   `json:"history_id"`
}

// Detail is a conversation header with its transcript.
type Detail struct {
	store.Conversation
	Messages []store.Message `json:"messages"`
}

// Service runs the turn protocol over the manager, the catalog and the
// generation backend.
type Service struct {
	settings    store.SettingsRepo
	catalog     *scenario.Catalog
	manager     *Manager
	gen         generation.Client
	replenisher Dispatcher
	log         *zap.Logger
}

// NewService wires a Service. replenisher may be nil, in which case
// completed scenarios are not replaced automatically.
func NewService(settings store.SettingsRepo, catalog *scenario.Catalog, manager *Manager, gen generation.Client, replenisher Dispatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		settings:    settings,
		catalog:     catalog,
		manager:     manager,
		gen:         gen,
		replenisher: replenisher,
		log:         log.Named("turn"),
	}
}

// Manager returns the lifecycle manager.
func (s *Service) Manager() *Manager { return s.manager }

// Turn records the learner's message, obtains the partner's reply and
// evaluates the goal. Generation failures never fail the turn; storage
// failures do.
func (s *Service) Turn(ctx context.Context, scenarioID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	start := time.Now()
	requestID := uuid.NewString()
	ctx = llm.WithRequestID(ctx, requestID)
	log := s.log.With(zap.String("request_id", requestID), zap.String("scenario", scenarioID))

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	sc, err := s.catalog.Get(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenarioID, err)
	}

	historyID, err := s.manager.GetOrCreateActive(ctx, scenarioID, settings.PracticeLanguage, settings.Model)
	if err != nil {
		return nil, err
	}
	conv, err := s.manager.Get(ctx, historyID)
	if err != nil {
		return nil, err
	}

	// The learner's message is durable before any generation call.
	if err := s.manager.RecordTurn(ctx, historyID, store.SpeakerUser, message); err != nil {
		return nil, err
	}
	transcript, err := s.manager.ReadTranscript(ctx, historyID)
	if err != nil {
		return nil, err
	}

	reply := s.gen.ChatReply(ctx, conv.Model, conv.PracticeLanguage, settings.UILanguage, sc.Setting, sc.Goal, transcript)
	if err := s.manager.RecordTurn(ctx, historyID, store.SpeakerBot, reply); err != nil {
		return nil, err
	}

	transcript, err = s.manager.ReadTranscript(ctx, historyID)
	if err != nil {
		return nil, err
	}
	result := &TurnResult{Reply: reply, Status: StatusPending, HistoryID: historyID}

	if s.gen.EvaluateGoal(ctx, conv.Model, sc.Goal, transcript) {
		result.Status = StatusReached
		if err := s.finish(ctx, log, conv, settings, sc, transcript, result); err != nil {
			return nil, err
		}
	}

	turnsTotal.WithLabelValues(string(result.Status)).Inc()
	turnDuration.Observe(time.Since(start).Seconds())
	log.Debug("turn processed", zap.Int64("history_id", historyID), zap.String("status", string(result.Status)))
	return result, nil
}

// finish completes the conversation (scoring it with the same write),
// queues a replacement scenario and attaches a summary when one can be
// generated.
func (s *Service) finish(ctx context.Context, log *zap.Logger, conv *store.Conversation, settings *store.Settings, sc *store.Scenario, transcript []store.Message, result *TurnResult) error {
	transitioned, err := s.manager.Complete(ctx, conv.ID)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	if s.replenisher != nil && !s.replenisher.Dispatch("completed "+sc.ID) {
		log.Warn("replacement scenario not queued")
	}

	summary, err := s.gen.GenerateSummary(ctx, conv.Model, conv.PracticeLanguage, settings.UILanguage, sc.Goal, transcript)
	if err != nil {
		log.Warn("summary unavailable", zap.Int64("history_id", conv.ID), zap.Error(err))
		return nil
	}
	if err := s.manager.AttachSummary(ctx, conv.ID, summary); err != nil {
		log.Warn("store summary", zap.Int64("history_id", conv.ID), zap.Error(err))
		return nil
	}
	result.Summary = &summary
	return nil
}

// Hint suggests the learner's next line based on the live transcript.
// Without a live conversation the hint is based on an empty transcript.
func (s *Service) Hint(ctx context.Context, scenarioID string) (string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	sc, err := s.catalog.Get(ctx, scenarioID)
	if err != nil {
		return "", fmt.Errorf("scenario %q: %w", scenarioID, err)
	}

	model, lang := settings.Model, settings.PracticeLanguage
	transcript := []store.Message{}

	conv, err := s.manager.Active(ctx, scenarioID)
	switch {
	case err == nil:
		model, lang = conv.Model, conv.PracticeLanguage
		if transcript, err = s.manager.ReadTranscript(ctx, conv.ID); err != nil {
			return "", err
		}
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	return s.gen.GenerateHint(ctx, model, lang, settings.UILanguage, sc.Setting, sc.Goal, transcript), nil
}

// Abandon discards the scenario's live conversation, if any.
func (s *Service) Abandon(ctx context.Context, scenarioID string) error {
	return s.manager.Abandon(ctx, scenarioID)
}

// Retire drops a scenario from the catalog, discarding its live
// conversation first so no incomplete row outlives it.
func (s *Service) Retire(ctx context.Context, scenarioID string) error {
	if err := s.manager.Abandon(ctx, scenarioID); err != nil {
		return err
	}
	if err := s.catalog.Retire(ctx, scenarioID); err != nil {
		return fmt.Errorf("retire %q: %w", scenarioID, err)
	}
	s.log.Info("scenario retired", zap.String("scenario", scenarioID))
	return nil
}

// Transcript returns the live transcript for a scenario, empty when none.
func (s *Service) Transcript(ctx context.Context, scenarioID string) ([]store.Message, error) {
	conv, err := s.manager.Active(ctx, scenarioID)
	if errors.Is(err, store.ErrNotFound) {
		return []store.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.manager.ReadTranscript(ctx, conv.ID)
}

// History returns a conversation with its transcript.
func (s *Service) History(ctx context.Context, historyID int64) (*Detail, error) {
	conv, err := s.manager.Get(ctx, historyID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.manager.ReadTranscript(ctx, historyID)
	if err != nil {
		return nil, err
	}
	return &Detail{Conversation: *conv, Messages: msgs}, nil
}

// Summary returns the stored summary of a completed conversation,
// generating and storing it first when missing.
func (s *Service) Summary(ctx context.Context, historyID int64) (string, error) {
	conv, err := s.manager.Get(ctx, historyID)
	if err != nil {
		return "", err
	}
	if conv.Summary != nil {
		return *conv.Summary, nil
	}
	if !conv.Completed {
		return "", ErrNotCompleted
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	transcript, err := s.manager.ReadTranscript(ctx, historyID)
	if err != nil {
		return "", err
	}

	// Completed scenarios are usually retired; the goal is then unknown.
	var goal string
	if sc, err := s.catalog.Get(ctx, conv.ScenarioID); err == nil {
		goal = sc.Goal
	}

	summary, err := s.gen.GenerateSummary(ctx, conv.Model, conv.PracticeLanguage, settings.UILanguage, goal, transcript)
	if err != nil {
		return "", err
	}
	if err := s.manager.AttachSummary(ctx, historyID, summary); err != nil {
		return "", err
	}
	return summary, nil
}

// ListCompleted returns completed conversations, newest first.
func (s *Service) ListCompleted(ctx context.Context) ([]store.Conversation, error) {
	return s.manager.ListCompleted(ctx)
}

// Delete removes one conversation with its messages.
func (s *Service) Delete(ctx context.Context, historyID int64) error {
	return s.manager.DeleteOne(ctx, historyID)
}
