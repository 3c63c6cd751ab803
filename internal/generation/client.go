// Package generation turns conversation state into prompts for the
// configured LLM provider and recovers every failure with a fallback value.
package generation

import (
	"context"

	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/store"
)

// Fallback texts returned instead of errors.
const (
	FallbackReply    = "I'm sorry, I'm having trouble thinking."
	FallbackHint     = "Error loading hint."
	EmptyHint        = "Could not generate a hint."
	DefaultBatchSize = 5
)

// Client is the generation backend as seen by the conversation core.
// Only GenerateSummary reports errors; every other call degrades to a
// fallback value.
type Client interface {
	ListModels(ctx context.Context) []llm.ModelInfo
	GenerateScenarios(ctx context.Context, model, practiceLang, uiLang string, count int) []store.Scenario
	ChatReply(ctx context.Context, model, practiceLang, uiLang, setting, goal string, transcript []store.Message) string
	EvaluateGoal(ctx context.Context, model, goal string, transcript []store.Message) bool
	GenerateHint(ctx context.Context, model, practiceLang, uiLang, setting, goal string, transcript []store.Message) string
	GenerateSummary(ctx context.Context, model, practiceLang, uiLang, goal string, transcript []store.Message) (string, error)
}
