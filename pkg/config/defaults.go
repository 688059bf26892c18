package config

// Defaults holds system-wide fallbacks consulted when an HTTP trigger or
// bus handler does not override a value explicitly (e.g. agent iteration
// bounds).
type Defaults struct {
	// AgentMaxIterations is the fallback iteration bound for the
	// Task-Extraction and SOP-Abstraction agents (spec §4.G, §4.H: 3).
	AgentMaxIterations int

	// SpaceConstructMaxIterations bounds the Space-Construction agent
	// (spec §4.I: default 16).
	SpaceConstructMaxIterations int

	// SearchMaxIterations is the default bound for agentic experience
	// search (spec §4.J: default 16, clamped to [1,100]). It is not read:
	// the search agent uses its own default of 16.
	SearchMaxIterations int

	// PrecedingTaskContextSize is N, the count of preceding non-planning
	// tasks rendered into the SOP-Abstraction agent's prompt (spec §4.H).
	PrecedingTaskContextSize int

	// MessageTruncateChars is the rendered message length bound for agent
	// prompts (spec §4.G, §4.H: 1024). It is not read: the agents use
	// their own fixed bound of 1024.
	MessageTruncateChars int
}

// DefaultDefaults returns the built-in system defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		AgentMaxIterations:          3,
		SpaceConstructMaxIterations: 16,
		SearchMaxIterations:         16,
		PrecedingTaskContextSize:    5,
		MessageTruncateChars:        1024,
	}
}
