package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"github.com/abhisek/lingoflow/internal/llm"
	"github.com/abhisek/lingoflow/internal/store"
)

// LLMClient implements Client on top of an llm.Provider.
type LLMClient struct {
	provider llm.Provider
	cfg      Config
	log      *zap.Logger

	// selectable reports whether the provider serves several local models,
	// in which case the model chosen in settings is passed per request.
	selectable bool
}

// NewLLMClient creates a client. log may be nil.
func NewLLMClient(provider llm.Provider, cfg Config, log *zap.Logger) *LLMClient {
	if log == nil {
		log = zap.NewNop()
	}
	_, selectable := llm.FindModelLister(provider)
	return &LLMClient{
		provider:   provider,
		cfg:        cfg,
		log:        log.Named("generation"),
		selectable: selectable,
	}
}

var _ Client = (*LLMClient)(nil)

// ListModels returns the models the backend can serve. Providers that
// cannot enumerate models report their configured one.
func (c *LLMClient) ListModels(ctx context.Context) []llm.ModelInfo {
	lister, ok := llm.FindModelLister(c.provider)
	if !ok {
		return []llm.ModelInfo{{Name: c.provider.ModelID()}}
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		c.log.Warn("list models failed", zap.Error(err))
		return []llm.ModelInfo{}
	}
	return models
}

type scenarioBatchOutput struct {
	Scenarios []scenarioOutput `json:"scenarios"`
}

type scenarioOutput struct {
	ID          string `json:"id"`
	Setting     string `json:"setting"`
	Goal        string `json:"goal"`
	Description string `json:"description"`
	Clipart     string `json:"clipart"`
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// GenerateScenarios asks for a batch of scenarios. Entries without a goal
// are dropped, missing or duplicate ids are replaced with short uuids. Any
// failure yields an empty slice.
func (c *LLMClient) GenerateScenarios(ctx context.Context, model, practiceLang, uiLang string, count int) []store.Scenario {
	ctx = llm.WithPurpose(ctx, llm.PurposeScenarios)
	if count <= 0 {
		count = DefaultBatchSize
	}

	req := llm.Request{
		Model:  c.modelFor(model),
		System: scenarioSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildScenarioUserMessage(practiceLang, uiLang, count, c.cfg.Cliparts)},
		},
		Schema:      ScenarioBatchSchema,
		MaxTokens:   c.cfg.ScenarioMaxTokens,
		Temperature: c.cfg.ScenarioTemperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.log.Warn("scenario generation failed", zap.Error(err))
		return []store.Scenario{}
	}

	var out scenarioBatchOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		c.log.Warn("parse scenario batch", zap.Error(err))
		return []store.Scenario{}
	}

	seen := make(map[string]bool, len(out.Scenarios))
	scenarios := make([]store.Scenario, 0, len(out.Scenarios))
	for _, s := range out.Scenarios {
		goal := strings.TrimSpace(s.Goal)
		if goal == "" {
			continue
		}
		id := slugUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s.ID)), "_")
		if id == "" || seen[id] {
			id = shortuuid.New()
		}
		seen[id] = true
		scenarios = append(scenarios, store.Scenario{
			ID:          id,
			Setting:     strings.TrimSpace(s.Setting),
			Goal:        goal,
			Description: strings.TrimSpace(s.Description),
			Clipart:     strings.TrimSpace(s.Clipart),
		})
		if len(scenarios) == count {
			break
		}
	}
	return scenarios
}

// ChatReply produces the partner's next line. The transcript already ends
// with the learner's message.
func (c *LLMClient) ChatReply(ctx context.Context, model, practiceLang, uiLang, setting, goal string, transcript []store.Message) string {
	ctx = llm.WithPurpose(ctx, llm.PurposeChatReply)

	req := llm.Request{
		Model:       c.modelFor(model),
		System:      buildChatSystemPrompt(practiceLang, uiLang, setting, goal),
		Messages:    chatMessages(transcript),
		MaxTokens:   c.cfg.ReplyMaxTokens,
		Temperature: c.cfg.ChatTemperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.log.Warn("chat reply failed", zap.Error(err))
		return FallbackReply
	}
	text := resp.Text()
	if text == "" {
		return FallbackReply
	}
	return text
}

// EvaluateGoal reports whether the transcript shows the goal as reached.
// Errors and ambiguous answers count as not reached.
func (c *LLMClient) EvaluateGoal(ctx context.Context, model, goal string, transcript []store.Message) bool {
	ctx = llm.WithPurpose(ctx, llm.PurposeGoalEval)

	req := llm.Request{
		Model:  c.modelFor(model),
		System: evalSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildEvalUserMessage(goal, transcript)},
		},
		MaxTokens: c.cfg.EvalMaxTokens,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.log.Warn("goal evaluation failed", zap.Error(err))
		return false
	}
	return verdictReached(resp.Text())
}

// verdictWord captures the first word of a verdict, skipping leading
// punctuation such as markdown emphasis. Underscores stay part of the word.
var verdictWord = regexp.MustCompile(`^[^\pL\pN_]*([\pL\pN_]+)`)

// verdictReached reports whether the verdict's first word is REACHED,
// ignoring case. Anything else, including NOT_REACHED, UNREACHED or a
// sentence, counts as not reached.
func verdictReached(text string) bool {
	m := verdictWord.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(text)))
	return m != nil && m[1] == "REACHED"
}

// GenerateHint suggests what the learner could say next.
func (c *LLMClient) GenerateHint(ctx context.Context, model, practiceLang, uiLang, setting, goal string, transcript []store.Message) string {
	ctx = llm.WithPurpose(ctx, llm.PurposeHint)

	req := llm.Request{
		Model:  c.modelFor(model),
		System: hintSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildHintUserMessage(practiceLang, uiLang, setting, goal, transcript)},
		},
		MaxTokens:   c.cfg.HintMaxTokens,
		Temperature: c.cfg.ChatTemperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.log.Warn("hint generation failed", zap.Error(err))
		return FallbackHint
	}
	if text := resp.Text(); text != "" {
		return text
	}
	return EmptyHint
}

// GenerateSummary writes feedback for a completed conversation.
func (c *LLMClient) GenerateSummary(ctx context.Context, model, practiceLang, uiLang, goal string, transcript []store.Message) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeSummary)

	req := llm.Request{
		Model:  c.modelFor(model),
		System: summarySystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildSummaryUserMessage(practiceLang, uiLang, goal, transcript)},
		},
		MaxTokens:   c.cfg.SummaryMaxTokens,
		Temperature: c.cfg.ChatTemperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summary generation: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("summary generation: empty response")
	}
	return text, nil
}

func (c *LLMClient) modelFor(model string) string {
	if c.selectable {
		return model
	}
	return ""
}

// chatMessages maps the transcript onto chat roles, the learner as user.
func chatMessages(transcript []store.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		role := llm.RoleUser
		if m.Speaker == store.SpeakerBot {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}
