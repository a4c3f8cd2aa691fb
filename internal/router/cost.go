package router

import "github.com/autopilot-dev/autopilot/internal/core"

// Pricing holds a model's per-million-token cost, matching the pricing
// each toolrunner adapter already bakes into its own CostUSD estimate
// (internal/toolrunner/codex.go, gemini.go, claude.go's fallback estimate)
// so the router's ranking reflects what a call will actually be billed.
type Pricing struct {
	InPerMTok  float64
	OutPerMTok float64
}

// modelPricing is the router's own per-model price list, kept consistent
// with the constants tiers below it and with each adapter's estimateCost.
var modelPricing = map[string]map[string]Pricing{
	core.AgentClaude: {
		"claude-haiku-4-5-20251001":  {InPerMTok: 0.80, OutPerMTok: 4.00},
		"haiku":                      {InPerMTok: 0.80, OutPerMTok: 4.00},
		"claude-sonnet-4-5-20250929": {InPerMTok: 3.00, OutPerMTok: 15.00},
		"claude-sonnet-4-20250514":   {InPerMTok: 3.00, OutPerMTok: 15.00},
		"sonnet":                     {InPerMTok: 3.00, OutPerMTok: 15.00},
		"claude-opus-4-20250514":     {InPerMTok: 15.00, OutPerMTok: 75.00},
		"claude-opus-4-1-20250805":   {InPerMTok: 15.00, OutPerMTok: 75.00},
		"claude-opus-4-6":            {InPerMTok: 15.00, OutPerMTok: 75.00},
		"opus":                       {InPerMTok: 15.00, OutPerMTok: 75.00},
	},
	core.AgentCodex: {
		"gpt-5-codex-mini":   {InPerMTok: 0.25, OutPerMTok: 2.00},
		"gpt-5-codex":        {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5":              {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.1":            {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.1-codex":      {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.1-codex-mini": {InPerMTok: 0.25, OutPerMTok: 2.00},
		"gpt-5.1-codex-max":  {InPerMTok: 5.00, OutPerMTok: 20.00},
		"gpt-5.2":            {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.2-codex":      {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.3-codex":      {InPerMTok: 2.50, OutPerMTok: 10.00},
	},
	core.AgentGemini: {
		"gemini-2.5-flash-lite":  {InPerMTok: 0.0375, OutPerMTok: 0.15},
		"gemini-2.0-flash-lite":  {InPerMTok: 0.0375, OutPerMTok: 0.15},
		"gemini-2.0-flash":       {InPerMTok: 0.075, OutPerMTok: 0.30},
		"gemini-2.5-flash":       {InPerMTok: 0.075, OutPerMTok: 0.30},
		"gemini-2.5-pro":         {InPerMTok: 1.25, OutPerMTok: 5.00},
		"gemini-3-flash-preview": {InPerMTok: 0.075, OutPerMTok: 0.30},
		"gemini-3-pro-preview":   {InPerMTok: 1.25, OutPerMTok: 5.00},
	},
	core.AgentCopilot: {
		// Copilot's CLI bills a flat subscription fee rather than reporting
		// per-call cost (internal/toolrunner/copilot.go never sets
		// CostUSD). Priced here at the underlying model's list price so
		// tier ranking still reflects relative capability, not an actual
		// invoice.
		"claude-haiku-4.5":     {InPerMTok: 0.80, OutPerMTok: 4.00},
		"claude-sonnet-4":      {InPerMTok: 3.00, OutPerMTok: 15.00},
		"claude-sonnet-4.5":    {InPerMTok: 3.00, OutPerMTok: 15.00},
		"claude-opus-4.6":      {InPerMTok: 15.00, OutPerMTok: 75.00},
		"gpt-4.1":              {InPerMTok: 2.00, OutPerMTok: 8.00},
		"gpt-5":                {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5-mini":           {InPerMTok: 0.25, OutPerMTok: 2.00},
		"gpt-5.1":              {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.1-codex":        {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.1-codex-mini":   {InPerMTok: 0.25, OutPerMTok: 2.00},
		"gpt-5.1-codex-max":    {InPerMTok: 5.00, OutPerMTok: 20.00},
		"gpt-5.2":              {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gpt-5.2-codex":        {InPerMTok: 2.50, OutPerMTok: 10.00},
		"gemini-3-pro-preview": {InPerMTok: 1.25, OutPerMTok: 5.00},
	},
	core.AgentOpenCode: {
		// Local Ollama inference: no marginal API cost.
		"qwen2.5-coder:32b": {},
		"qwen3-coder:30b":   {},
		"deepseek-r1:32b":   {},
		"codestral:22b":     {},
		"gpt-oss:20b":       {},
	},
}

// assumedInputTokens / assumedOutputTokens approximate one phase
// execution's token usage for relative cost ranking between candidates —
// not a billing estimate. The 4:1 input:output ratio matches the typical
// shape of a coding-agent turn (large context read, smaller diff written).
const (
	assumedInputTokens  = 8000
	assumedOutputTokens = 2000
)

// ExpectedCostUSD estimates what one phase execution on (agent, model)
// would cost, for ranking candidates within a tier. Returns 0 for an
// unpriced model (e.g. a local opencode model, or an unrecognized pair),
// which ranks it first — consistent with it being free or unmetered.
func ExpectedCostUSD(agent, model string) float64 {
	pricing, ok := modelPricing[agent][model]
	if !ok {
		return 0
	}
	return float64(assumedInputTokens)/1_000_000*pricing.InPerMTok +
		float64(assumedOutputTokens)/1_000_000*pricing.OutPerMTok
}
