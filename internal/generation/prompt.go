package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/lingoflow/internal/store"
)

const scenarioSystemPrompt = `You design short role-play scenarios for adults practicing a foreign language through conversation.`

func buildScenarioUserMessage(practiceLang, uiLang string, count int, cliparts []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Practice language: %s\n", practiceLang)
	fmt.Fprintf(&b, "Learner's language: %s\n", uiLang)
	fmt.Fprintf(&b, "Number of scenarios: %d\n", count)

	if len(cliparts) > 0 {
		b.WriteString("\nAvailable illustrations:\n")
		for _, c := range cliparts {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	b.WriteString(`
Instructions:
1. Each scenario is an everyday situation in a place where the practice language is spoken.
2. The setting names the place and the role the conversation partner plays.
3. The goal is a single concrete task the learner can finish in a few exchanges, such as buying a ticket or asking for directions.
4. Write setting, goal and description in the learner's language.
5. Pick the clipart from the available illustrations only. Use default_conversation.png when nothing fits.
6. Give every scenario a different id.
Respond with JSON only.`)

	return b.String()
}

func buildChatSystemPrompt(practiceLang, uiLang, setting, goal string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are role-playing with a learner who practices %s.\n", practiceLang)
	fmt.Fprintf(&b, "Setting: %s\n", setting)
	fmt.Fprintf(&b, "The learner's goal: %s\n", goal)
	fmt.Fprintf(&b, `
Rules:
- Stay in character as the other person in the setting and reply only in %s.
- Keep each reply to one to three short sentences at a beginner-friendly level.
- Let the learner do the work of reaching the goal. Do not complete it for them.
- If the learner writes in %s, answer in %s anyway and keep the scene going.
- Never mention that you are an AI or that this is practice.`, practiceLang, uiLang, practiceLang)

	return b.String()
}

const evalSystemPrompt = `You judge whether a learner has achieved a goal in a role-play conversation. Answer with exactly one word: REACHED or PENDING.`

func buildEvalUserMessage(goal string, transcript []store.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n\nConversation:\n", goal)
	b.WriteString(formatTranscript(transcript))
	b.WriteString(`
Answer REACHED only if the conversation shows the goal was clearly accomplished. Otherwise answer PENDING.`)

	return b.String()
}

const hintSystemPrompt = `You coach a language learner who is stuck in a role-play conversation.`

func buildHintUserMessage(practiceLang, uiLang, setting, goal string, transcript []store.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Practice language: %s\n", practiceLang)
	fmt.Fprintf(&b, "Learner's language: %s\n", uiLang)
	fmt.Fprintf(&b, "Setting: %s\n", setting)
	fmt.Fprintf(&b, "Goal: %s\n\nConversation so far:\n", goal)
	b.WriteString(formatTranscript(transcript))

	fmt.Fprintf(&b, `
Suggest what the learner could say next to move toward the goal.
Give one example sentence in %s followed by a short explanation in %s.
Keep it under three lines.`, practiceLang, uiLang)

	return b.String()
}

const summarySystemPrompt = `You review a finished language practice conversation and give the learner brief, encouraging feedback.`

func buildSummaryUserMessage(practiceLang, uiLang, goal string, transcript []store.Message) string {
	var b strings.Builder

	if goal == "" {
		goal = "not recorded"
	}
	fmt.Fprintf(&b, "Practice language: %s\n", practiceLang)
	fmt.Fprintf(&b, "Goal: %s\n\nConversation:\n", goal)
	b.WriteString(formatTranscript(transcript))

	fmt.Fprintf(&b, `
Write the feedback in %s:
1. One sentence on how the goal was accomplished.
2. Up to three corrections of the learner's %s, each showing the original and the improved phrase.
3. One useful expression to remember for similar situations.`, uiLang, practiceLang)

	return b.String()
}

// formatTranscript renders messages one per line as "Speaker: content".
func formatTranscript(transcript []store.Message) string {
	if len(transcript) == 0 {
		return "(no messages yet)\n"
	}
	var b strings.Builder
	for _, m := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", m.Speaker, m.Content)
	}
	return b.String()
}
