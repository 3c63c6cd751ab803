package generation

// Config controls token budgets and sampling per request kind.
type Config struct {
	ScenarioMaxTokens int
	ReplyMaxTokens    int
	EvalMaxTokens     int
	HintMaxTokens     int
	SummaryMaxTokens  int

	// ChatTemperature applies to replies and hints; scenario generation
	// uses ScenarioTemperature and goal evaluation always runs at 0.
	ChatTemperature     float64
	ScenarioTemperature float64

	// Cliparts lists the asset names the model may pick from.
	Cliparts []string
}

// DefaultConfig returns the recommended budgets.
func DefaultConfig() Config {
	return Config{
		ScenarioMaxTokens:   2048,
		ReplyMaxTokens:      512,
		EvalMaxTokens:       32,
		HintMaxTokens:       256,
		SummaryMaxTokens:    512,
		ChatTemperature:     0.7,
		ScenarioTemperature: 0.9,
	}
}
