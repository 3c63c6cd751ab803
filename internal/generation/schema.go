package generation

import "github.com/abhisek/lingoflow/internal/llm"

// ScenarioBatchSchema defines the structured output for scenario generation.
var ScenarioBatchSchema = &llm.Schema{
	Name:        "scenario-batch",
	Description: "A batch of role-play scenarios for conversation practice",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scenarios": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{
							"type":        "string",
							"description": "Short lowercase slug unique within the batch, e.g. train_ticket",
						},
						"setting": map[string]any{
							"type":        "string",
							"description": "Where the conversation happens and who the partner is",
						},
						"goal": map[string]any{
							"type":        "string",
							"description": "One concrete thing the learner must accomplish",
						},
						"description": map[string]any{
							"type":        "string",
							"description": "One or two sentences introducing the scene, in the UI language",
						},
						"clipart": map[string]any{
							"type":        "string",
							"description": "File name of the illustration that best fits the scene",
						},
					},
					"required":             []any{"id", "setting", "goal", "description", "clipart"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"scenarios"},
		"additionalProperties": false,
	},
}
