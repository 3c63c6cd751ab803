package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	tableSettings  = "settings"
	tableScenarios = "active_scenarios"
	tableHistory   = "history"
	tableMessages  = "messages"
	tableLLMEvents = "llm_request_events"
)

const textSize = 2147483647

var (
	// SettingsColumns holds the columns for the "settings" table.
	SettingsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "theme", Type: field.TypeString, Default: DefaultTheme},
		{Name: "model", Type: field.TypeString, Default: DefaultModel},
		{Name: "practice_language", Type: field.TypeString, Default: DefaultPracticeLanguage},
		{Name: "ui_language", Type: field.TypeString, Default: DefaultUILanguage},
		{Name: "score", Type: field.TypeInt, Default: 0},
	}
	// SettingsTable holds the schema information for the "settings" table.
	SettingsTable = &schema.Table{
		Name:       tableSettings,
		Columns:    SettingsColumns,
		PrimaryKey: []*schema.Column{SettingsColumns[0]},
	}

	// ScenariosColumns holds the columns for the "active_scenarios" table.
	ScenariosColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "setting", Type: field.TypeString, Size: textSize},
		{Name: "goal", Type: field.TypeString, Size: textSize},
		{Name: "description", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "clipart", Type: field.TypeString, Default: DefaultClipart},
	}
	// ScenariosTable holds the schema information for the "active_scenarios" table.
	ScenariosTable = &schema.Table{
		Name:       tableScenarios,
		Columns:    ScenariosColumns,
		PrimaryKey: []*schema.Column{ScenariosColumns[0]},
	}

	// HistoryColumns holds the columns for the "history" table.
	HistoryColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "scenario_id", Type: field.TypeString},
		{Name: "completed", Type: field.TypeBool, Default: false},
		{Name: "summary", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "practice_language", Type: field.TypeString, Default: ""},
		{Name: "model", Type: field.TypeString, Default: ""},
		{Name: "timestamp", Type: field.TypeTime},
		// transcripts is the pre-normalization JSON blob. Read-only.
		{Name: "transcripts", Type: field.TypeString, Nullable: true, Size: textSize},
	}
	// HistoryTable holds the schema information for the "history" table.
	HistoryTable = &schema.Table{
		Name:       tableHistory,
		Columns:    HistoryColumns,
		PrimaryKey: []*schema.Column{HistoryColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "history_completed_timestamp",
				Unique:  false,
				Columns: []*schema.Column{HistoryColumns[2], HistoryColumns[6]},
			},
		},
	}

	// MessagesColumns holds the columns for the "messages" table.
	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "speaker", Type: field.TypeEnum, Enums: []string{string(SpeakerUser), string(SpeakerBot)}},
		{Name: "content", Type: field.TypeString, Size: textSize},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "history_id", Type: field.TypeInt64},
	}
	// MessagesTable holds the schema information for the "messages" table.
	MessagesTable = &schema.Table{
		Name:       tableMessages,
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "messages_history_messages",
				Columns:    []*schema.Column{MessagesColumns[4]},
				RefColumns: []*schema.Column{HistoryColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_history_id",
				Unique:  false,
				Columns: []*schema.Column{MessagesColumns[4]},
			},
		},
	}

	// LLMEventsColumns holds the columns for the "llm_request_events" table.
	LLMEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	// LLMEventsTable holds the schema information for the "llm_request_events" table.
	LLMEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    LLMEventsColumns,
		PrimaryKey: []*schema.Column{LLMEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "llmrequestevent_purpose",
				Unique:  false,
				Columns: []*schema.Column{LLMEventsColumns[4]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		SettingsTable,
		ScenariosTable,
		HistoryTable,
		MessagesTable,
		LLMEventsTable,
	}
)

func init() {
	MessagesTable.ForeignKeys[0].RefTable = HistoryTable
}

// activeConversationIndex backs the one-incomplete-conversation-per-scenario
// rule. ent's index annotations cannot express a partial unique index on
// every dialect, so it is created by hand after the table migration.
const activeConversationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS history_scenario_active
	ON history (scenario_id) WHERE completed = 0`

// migrate creates or upgrades the tables and the hand-written indexes.
func (s *Store) migrate(ctx context.Context) error {
	drv := entsql.OpenDB(dialect.SQLite, s.db)
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, activeConversationIndex); err != nil {
		return fmt.Errorf("create active conversation index: %w", err)
	}
	return nil
}
