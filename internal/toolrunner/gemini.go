package toolrunner

import (
	"context"
	"regexp"
	"strconv"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/logging"
)

// GeminiAdapter implements core.Agent for the gemini CLI.
type GeminiAdapter struct {
	*BaseAdapter
	capabilities core.Capabilities
}

// NewGeminiAdapter creates a new gemini adapter.
func NewGeminiAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "gemini"
	}
	base := NewBaseAdapter(cfg, logging.NewNop().With("adapter", "gemini"))
	return &GeminiAdapter{
		BaseAdapter: base,
		capabilities: core.Capabilities{
			SupportsJSON:      true,
			SupportsStreaming: false,
			SupportsImages:    true,
			SupportsTools:     true,
			MaxContextTokens:  1000000,
			MaxOutputTokens:   8192,
			SupportedModels:   core.GetSupportedModels(core.AgentGemini),
			DefaultModel:      core.GetDefaultModel(core.AgentGemini),
		},
	}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Capabilities() core.Capabilities { return g.capabilities }

func (g *GeminiAdapter) Ping(ctx context.Context) error {
	if err := g.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := g.GetVersion(ctx, "--version")
	return err
}

func (g *GeminiAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	args := g.buildArgs(opts)

	// gemini has no --system-prompt flag; fold it into the user prompt.
	prompt := opts.Prompt
	if opts.SystemPrompt != "" && prompt != "" {
		prompt = "[System Instructions]\n" + opts.SystemPrompt + "\n\n[User Message]\n" + prompt
	}

	result, err := g.ExecuteCommand(ctx, args, prompt, opts.WorkDir, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return g.parseOutput(result), nil
}

func (g *GeminiAdapter) buildArgs(opts core.ExecuteOptions) []string {
	var args []string

	model := opts.Model
	if model == "" {
		model = g.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	args = append(args, "--approval-mode", "yolo")
	return args
}

func (g *GeminiAdapter) parseOutput(result *CommandResult) *core.ExecuteResult {
	execResult := &core.ExecuteResult{Output: result.Stdout, Duration: result.Duration}
	g.extractUsage(result, execResult)
	return execResult
}

var (
	geminiInputTokenPattern  = regexp.MustCompile(`input[_\s]?tokens?:?\s*(\d+)`)
	geminiOutputTokenPattern = regexp.MustCompile(`output[_\s]?tokens?:?\s*(\d+)`)
)

func (g *GeminiAdapter) extractUsage(result *CommandResult, execResult *core.ExecuteResult) {
	combined := result.Stdout + result.Stderr

	if matches := geminiInputTokenPattern.FindStringSubmatch(combined); len(matches) == 2 {
		if in, err := strconv.Atoi(matches[1]); err == nil {
			execResult.TokensIn = in
		}
	}
	if matches := geminiOutputTokenPattern.FindStringSubmatch(combined); len(matches) == 2 {
		if out, err := strconv.Atoi(matches[1]); err == nil {
			execResult.TokensOut = out
		}
	}

	if execResult.TokensOut == 0 {
		execResult.TokensOut = g.TokenEstimate(result.Stdout)
	}
	if execResult.TokensIn == 0 && execResult.TokensOut > 0 {
		// Prompts tend to run shorter than responses for this kind of task.
		execResult.TokensIn = execResult.TokensOut / 3
	}

	if execResult.TokensIn > maxPlausibleTokens {
		g.logger.Warn("toolrunner: capped unrealistic TokensIn", "adapter", "gemini", "value", execResult.TokensIn)
		execResult.TokensIn = maxPlausibleTokens
	}
	if execResult.TokensOut > maxPlausibleTokens {
		g.logger.Warn("toolrunner: capped unrealistic TokensOut", "adapter", "gemini", "value", execResult.TokensOut)
		execResult.TokensOut = maxPlausibleTokens
	}

	execResult.CostUSD = g.estimateCost(execResult.TokensIn, execResult.TokensOut)
}

// estimateCost applies Gemini Flash pricing: $0.075/MTok in, $0.30/MTok out.
func (g *GeminiAdapter) estimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1_000_000*0.075 + float64(tokensOut)/1_000_000*0.30
}

var _ core.Agent = (*GeminiAdapter)(nil)
