package toolrunner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/logging"
)

// CodexAdapter implements core.Agent for the codex CLI.
type CodexAdapter struct {
	*BaseAdapter
	capabilities core.Capabilities
}

// NewCodexAdapter creates a new codex adapter.
func NewCodexAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "codex"
	}
	base := NewBaseAdapter(cfg, logging.NewNop().With("adapter", "codex"))
	return &CodexAdapter{
		BaseAdapter: base,
		capabilities: core.Capabilities{
			SupportsJSON:      true,
			SupportsStreaming: false,
			SupportsImages:    false,
			SupportsTools:     true,
			MaxContextTokens:  128000,
			MaxOutputTokens:   16384,
			SupportedModels:   core.GetSupportedModels(core.AgentCodex),
			DefaultModel:      core.GetDefaultModel(core.AgentCodex),
		},
	}, nil
}

func (c *CodexAdapter) Name() string { return "codex" }

func (c *CodexAdapter) Capabilities() core.Capabilities { return c.capabilities }

func (c *CodexAdapter) Ping(ctx context.Context) error {
	if err := c.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := c.GetVersion(ctx, "--version")
	return err
}

func (c *CodexAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	prompt := opts.Prompt
	if opts.SystemPrompt != "" {
		prompt = fmt.Sprintf("[System Instructions]\n%s\n\n[User Message]\n%s", opts.SystemPrompt, opts.Prompt)
	}

	args := c.buildArgs(opts)
	result, err := c.ExecuteCommand(ctx, args, prompt, opts.WorkDir, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return c.parseOutput(result, opts.Format), nil
}

func (c *CodexAdapter) buildArgs(opts core.ExecuteOptions) []string {
	args := []string{"exec", "--skip-git-repo-check"}

	model := opts.Model
	if model == "" {
		model = c.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	effort := c.config.GetReasoningEffort("")
	args = append(args,
		`-c`, `approval_policy="never"`,
		`-c`, `sandbox_mode="workspace-write"`,
		`-c`, `skip_git_repo_check=true`,
	)
	if effort != "" {
		args = append(args, "-c", fmt.Sprintf(`model_reasoning_effort="%s"`, effort))
		if effort == "minimal" {
			args = append(args, "-c", `tools.web_search=false`)
		}
	}
	return args
}

func (c *CodexAdapter) parseOutput(result *CommandResult, format core.OutputFormat) *core.ExecuteResult {
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
	codexPromptTokenPattern     = regexp.MustCompile(`prompt_tokens["\s:=]+(\d+)`)
	codexCompletionTokenPattern = regexp.MustCompile(`completion_tokens["\s:=]+(\d+)`)
)

// maxPlausibleTokens guards against corrupted or runaway token counts
// reported by the CLI.
const maxPlausibleTokens = 500_000

func (c *CodexAdapter) extractUsage(result *CommandResult, execResult *core.ExecuteResult) {
	combined := result.Stdout + result.Stderr

	reportedIn, haveIn := extractCodexTokenCount(codexPromptTokenPattern, combined)
	reportedOut, haveOut := extractCodexTokenCount(codexCompletionTokenPattern, combined)

	estimatedIn := c.TokenEstimate(result.Stdout)
	estimatedOut := c.TokenEstimate(result.Stdout)

	execResult.TokensIn = estimatedIn
	execResult.TokensOut = estimatedOut

	threshold := c.config.TokenDiscrepancyThreshold
	if threshold == 0 {
		threshold = DefaultTokenDiscrepancyThreshold
	}

	if haveIn {
		if tokenDiscrepancyExceeds(reportedIn, estimatedIn, threshold) {
			c.logger.Warn("toolrunner: reported prompt token count diverges from estimate",
				"adapter", "codex", "reported", reportedIn, "estimated", estimatedIn)
		} else {
			execResult.TokensIn = reportedIn
		}
	}
	if haveOut {
		if tokenDiscrepancyExceeds(reportedOut, estimatedOut, threshold) {
			c.logger.Warn("toolrunner: reported completion token count diverges from estimate",
				"adapter", "codex", "reported", reportedOut, "estimated", estimatedOut)
		} else {
			execResult.TokensOut = reportedOut
		}
	}

	if execResult.TokensIn > maxPlausibleTokens {
		execResult.TokensIn = maxPlausibleTokens
	}
	if execResult.TokensOut > maxPlausibleTokens {
		execResult.TokensOut = maxPlausibleTokens
	}

	execResult.CostUSD = c.estimateCost(execResult.TokensIn, execResult.TokensOut)
}

func extractCodexTokenCount(pattern *regexp.Regexp, text string) (int, bool) {
	matches := pattern.FindStringSubmatch(text)
	if len(matches) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func tokenDiscrepancyExceeds(reported, estimated int, threshold float64) bool {
	if threshold <= 0 || estimated == 0 {
		return false
	}
	ratio := float64(reported) / float64(estimated)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio > threshold
}

// estimateCost applies GPT-4o-class pricing: $2.50/MTok in, $10.00/MTok out.
func (c *CodexAdapter) estimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1_000_000*2.50 + float64(tokensOut)/1_000_000*10.00
}

var _ core.Agent = (*CodexAdapter)(nil)
