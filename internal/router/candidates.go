package router

import "github.com/autopilot-dev/autopilot/internal/core"

// Candidate is a (provider, model) pair the Router can route a phase
// execution to.
type Candidate struct {
	Agent string
	Model string
}

// tierCandidates enumerates, per complexity tier, the models judged
// capable of operating at that tier. Drawn from internal/core/constants.go's
// AgentModels catalogue, following its own inline capability notes: the
// fastest/cheapest model per provider for simple, the balanced default for
// moderate, the strongest non-flagship model for complex, and the
// flagship extended-thinking-capable model for critical.
var tierCandidates = map[core.ComplexityTier][]Candidate{
	core.TierSimple: {
		{Agent: core.AgentGemini, Model: "gemini-2.5-flash-lite"},
		{Agent: core.AgentClaude, Model: "claude-haiku-4-5-20251001"},
		{Agent: core.AgentCodex, Model: "gpt-5-codex-mini"},
		{Agent: core.AgentCopilot, Model: "claude-haiku-4.5"},
		{Agent: core.AgentOpenCode, Model: "qwen2.5-coder:32b"},
	},
	core.TierModerate: {
		{Agent: core.AgentGemini, Model: "gemini-2.5-flash"},
		{Agent: core.AgentClaude, Model: "claude-sonnet-4-5-20250929"},
		{Agent: core.AgentCodex, Model: "gpt-5.1-codex"},
		{Agent: core.AgentCopilot, Model: "claude-sonnet-4.5"},
		{Agent: core.AgentOpenCode, Model: "qwen3-coder:30b"},
	},
	core.TierComplex: {
		{Agent: core.AgentGemini, Model: "gemini-2.5-pro"},
		{Agent: core.AgentClaude, Model: "claude-opus-4-1-20250805"},
		{Agent: core.AgentCodex, Model: "gpt-5.1-codex-max"},
		{Agent: core.AgentCopilot, Model: "claude-opus-4.6"},
	},
	core.TierCritical: {
		{Agent: core.AgentClaude, Model: "claude-opus-4-6"},
		{Agent: core.AgentCodex, Model: "gpt-5.3-codex"},
		{Agent: core.AgentGemini, Model: "gemini-3-pro-preview"},
		{Agent: core.AgentCopilot, Model: "claude-opus-4.6"},
	},
}

// CandidatesForTier returns the candidate list for a tier, in catalogue
// order. Select further ranks this list by expected cost, then success
// rate, then latency before trying each in turn.
func CandidatesForTier(tier core.ComplexityTier) []Candidate {
	return tierCandidates[tier]
}
