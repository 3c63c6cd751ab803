package store

import (
	"context"
	"time"
)

// Defaults written to the settings row on first open.
const (
	DefaultTheme            = "system"
	DefaultModel            = "gemma3:4b"
	DefaultPracticeLanguage = "Japanese"
	DefaultUILanguage       = "English"

	// DefaultClipart is the asset every scenario falls back to.
	DefaultClipart = "default_conversation.png"
)

// Settings is the single user-wide configuration record.
type Settings struct {
	Theme            string `json:"theme"`
	Model            string `json:"model"`
	PracticeLanguage string `json:"practice_language"`
	UILanguage       string `json:"ui_language"`
	Score            int    `json:"score"`
}

// SettingsPatch carries a partial settings update. Empty fields are left
// untouched.
type SettingsPatch struct {
	Theme            string `json:"theme"`
	Model            string `json:"model"`
	PracticeLanguage string `json:"practice_language"`
	UILanguage       string `json:"ui_language"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.Theme == "" && p.Model == "" && p.PracticeLanguage == "" && p.UILanguage == ""
}

// Scenario is one active practice prompt.
type Scenario struct {
	ID          string `json:"id"`
	Setting     string `json:"setting"`
	Goal        string `json:"goal"`
	Description string `json:"description"`
	Clipart     string `json:"clipart"`
}

// Speaker identifies who wrote a message.
type Speaker string

const (
	SpeakerUser Speaker = "User"
	SpeakerBot  Speaker = "Bot"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerBot
}

// Conversation is a history record header. Transcripts are loaded
// separately through ConversationRepo.Messages.
type Conversation struct {
	ID               int64     `json:"id"`
	ScenarioID       string    `json:"scenario_id"`
	Completed        bool      `json:"completed"`
	Summary          *string   `json:"summary"`
	PracticeLanguage string    `json:"practice_language"`
	Model            string    `json:"model"`
	Timestamp        time.Time `json:"timestamp"`
}

// Message is one transcript entry.
type Message struct {
	ID        int64     `json:"id"`
	HistoryID int64     `json:"history_id"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SettingsRepo reads and mutates the settings singleton.
type SettingsRepo interface {
	// Get returns the settings record. It always exists after Open.
	Get(ctx context.Context) (*Settings, error)

	// Update applies the non-empty fields of patch and adds scoreDelta to
	// the score. A negative delta is rejected. Nothing is written when the
	// patch is empty and the delta is zero.
	Update(ctx context.Context, patch SettingsPatch, scoreDelta int) error
}

// ScenarioRepo manages the active scenario catalog.
type ScenarioRepo interface {
	// ReplaceAll clears the catalog and inserts scenarios in one unit.
	ReplaceAll(ctx context.Context, scenarios []Scenario) error

	// AddIfAbsent inserts scenarios whose id is not yet present and
	// returns how many were added. Existing rows are never overwritten.
	AddIfAbsent(ctx context.Context, scenarios []Scenario) (int, error)

	// List returns all active scenarios ordered by id.
	List(ctx context.Context) ([]Scenario, error)

	// Get returns the scenario or ErrNotFound.
	Get(ctx context.Context, id string) (*Scenario, error)

	// Delete removes a scenario. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
}

// ConversationRepo persists conversations and their transcripts.
type ConversationRepo interface {
	// FindOrCreateActive returns the incomplete conversation for
	// scenarioID, creating one with the given snapshot values when none
	// exists. Creation requires the scenario to be in the catalog, else
	// ErrNotFound. created reports whether a new row was inserted.
	FindOrCreateActive(ctx context.Context, scenarioID, practiceLanguage, model string) (id int64, created bool, err error)

	// FindActive returns the incomplete conversation for scenarioID or
	// ErrNotFound.
	FindActive(ctx context.Context, scenarioID string) (*Conversation, error)

	// AppendMessage adds a message at the end of the transcript.
	AppendMessage(ctx context.Context, historyID int64, speaker Speaker, content string) (*Message, error)

	// Messages returns the transcript oldest first. Unknown ids yield an
	// empty slice.
	Messages(ctx context.Context, historyID int64) ([]Message, error)

	// MarkCompleted flips the conversation to completed, adds one point to
	// the score and retires its scenario, all in one transaction. It
	// reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, historyID int64) (bool, error)

	// DeleteActive removes the incomplete conversation for scenarioID
	// together with its messages. It reports whether one existed.
	DeleteActive(ctx context.Context, scenarioID string) (bool, error)

	// SetSummary stores the post-completion summary.
	SetSummary(ctx context.Context, historyID int64, summary string) error

	// Get returns one conversation header or ErrNotFound.
	Get(ctx context.Context, historyID int64) (*Conversation, error)

	// ListCompleted returns completed conversations, most recent first.
	ListCompleted(ctx context.Context) ([]Conversation, error)

	// Delete removes a conversation and its messages, or returns
	// ErrNotFound.
	Delete(ctx context.Context, historyID int64) error

	// DeleteCompleted removes every completed conversation and returns the
	// number removed.
	DeleteCompleted(ctx context.Context) (int, error)
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	Purpose string // exact purpose match when set
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLMRequestEventData.
type LLMRequestEvent struct {
	LLMRequestEventData
	ID        int
	Timestamp time.Time
}

// LLMUsage aggregates events by purpose or model.
type LLMUsage struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo provides access to the LLM request log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event or ErrNotFound.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)

	// LLMUsageByPurpose aggregates token usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsage, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMUsage, error)
}
