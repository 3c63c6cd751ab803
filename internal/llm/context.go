package llm

import "context"

type contextKey int

const (
	purposeKey contextKey = iota
	requestIDKey
)

// Purpose labels recorded with every request event.
const (
	PurposeScenarios = "scenario-gen"
	PurposeChatReply = "chat-reply"
	PurposeGoalEval  = "goal-eval"
	PurposeHint      = "hint"
	PurposeSummary   = "summary"
	PurposeUnknown   = "unknown"
)

// WithPurpose tags the calls made with ctx, e.g. PurposeChatReply.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose tag or PurposeUnknown.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok && v != "" {
		return v
	}
	return PurposeUnknown
}

// WithRequestID ties the calls made for one learner turn together in the logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the turn's request id, empty outside a turn.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
