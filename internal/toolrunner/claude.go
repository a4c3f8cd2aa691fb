package toolrunner

import (
	"context"
	"regexp"
	"strconv"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/logging"
)

// ClaudeAdapter implements core.Agent for the claude CLI.
type ClaudeAdapter struct {
	*BaseAdapter
	capabilities core.Capabilities
}

// NewClaudeAdapter creates a new claude adapter.
func NewClaudeAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "claude"
	}
	base := NewBaseAdapter(cfg, logging.NewNop().With("adapter", "claude"))
	return &ClaudeAdapter{
		BaseAdapter: base,
		capabilities: core.Capabilities{
			SupportsJSON:      true,
			SupportsStreaming: true,
			SupportsImages:    true,
			SupportsTools:     true,
			MaxContextTokens:  200000,
			MaxOutputTokens:   8192,
			SupportedModels: []string{
				"claude-sonnet-4-20250514",
				"claude-opus-4-20250514",
				"claude-3-5-sonnet-20241022",
				"claude-3-5-haiku-20241022",
			},
			DefaultModel: "claude-sonnet-4-20250514",
		},
	}, nil
}

func (c *ClaudeAdapter) Name() string { return "claude" }

func (c *ClaudeAdapter) Capabilities() core.Capabilities { return c.capabilities }

func (c *ClaudeAdapter) Ping(ctx context.Context) error {
	if err := c.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := c.GetVersion(ctx, "--version")
	return err
}

func (c *ClaudeAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	args := c.buildArgs(opts)
	result, err := c.ExecuteCommand(ctx, args, opts.Prompt, opts.WorkDir, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return c.parseOutput(result, opts.Format), nil
}

func (c *ClaudeAdapter) buildArgs(opts core.ExecuteOptions) []string {
	args := []string{"--print"}

	model := opts.Model
	if model == "" {
		model = c.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if opts.MaxTokens > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(opts.MaxTokens))
	}
	if opts.Format == core.OutputFormatJSON {
		args = append(args, "--output-format", "json")
	}
	if effort := c.config.GetReasoningEffort(""); effort != "" {
		args = append(args, "--effort", effort)
	}
	if opts.Sandbox {
		args = append(args, "--permission-mode", "plan")
	} else {
		args = append(args, "--dangerously-skip-permissions")
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", joinComma(opts.AllowedTools))
	}
	if len(opts.DeniedTools) > 0 {
		args = append(args, "--disallowedTools", joinComma(opts.DeniedTools))
	}
	return args
}

func (c *ClaudeAdapter) parseOutput(result *CommandResult, format core.OutputFormat) *core.ExecuteResult {
	execResult := &core.ExecuteResult{Output: result.Stdout, Duration: result.Duration}
	c.extractUsage(result, execResult)
	if format == core.OutputFormatJSON {
		var parsed map[string]interface{}
		if err := c.ParseJSON(result.Stdout, &parsed); err == nil {
			execResult.Parsed = parsed
		}
	}
	return execResult
}

var (
	claudeTokenPattern = regexp.MustCompile(`tokens?:?\s*(\d+)\s*in\D*(\d+)\s*out`)
	claudeCostPattern  = regexp.MustCompile(`cost:?\s*\$?([\d.]+)`)
)

func (c *ClaudeAdapter) extractUsage(result *CommandResult, execResult *core.ExecuteResult) {
	combined := result.Stdout + result.Stderr

	if matches := claudeTokenPattern.FindStringSubmatch(combined); len(matches) == 3 {
		if in, err := strconv.Atoi(matches[1]); err == nil {
			execResult.TokensIn = in
		}
		if out, err := strconv.Atoi(matches[2]); err == nil {
			execResult.TokensOut = out
		}
	}
	if matches := claudeCostPattern.FindStringSubmatch(combined); len(matches) == 2 {
		if cost, err := strconv.ParseFloat(matches[1], 64); err == nil {
			execResult.CostUSD = cost
		}
	}
	if execResult.TokensIn == 0 {
		execResult.TokensIn = c.TokenEstimate(result.Stdout)
	}
	if execResult.TokensOut == 0 {
		execResult.TokensOut = c.TokenEstimate(result.Stdout)
	}
	if execResult.CostUSD == 0 {
		// Sonnet pricing approximation: $3/MTok in, $15/MTok out.
		execResult.CostUSD = float64(execResult.TokensIn)/1_000_000*3 + float64(execResult.TokensOut)/1_000_000*15
	}
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

var _ core.Agent = (*ClaudeAdapter)(nil)
