package toolrunner

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/logging"
)

// CopilotAdapter implements core.Agent for the standalone GitHub Copilot CLI
// (npm install -g @github/copilot), not the deprecated `gh copilot` extension.
type CopilotAdapter struct {
	*BaseAdapter
	capabilities core.Capabilities
}

// NewCopilotAdapter creates a new copilot adapter.
func NewCopilotAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "copilot"
	}
	base := NewBaseAdapter(cfg, logging.NewNop().With("adapter", "copilot"))
	return &CopilotAdapter{
		BaseAdapter: base,
		capabilities: core.Capabilities{
			SupportsJSON:      false,
			SupportsStreaming: false,
			SupportsImages:    false,
			SupportsTools:     true,
			MaxContextTokens:  200000,
			MaxOutputTokens:   16384,
			SupportedModels:   core.GetSupportedModels(core.AgentCopilot),
			DefaultModel:      core.GetDefaultModel(core.AgentCopilot),
		},
	}, nil
}

func (c *CopilotAdapter) Name() string { return "copilot" }

func (c *CopilotAdapter) Capabilities() core.Capabilities { return c.capabilities }

func (c *CopilotAdapter) Ping(ctx context.Context) error {
	if err := c.CheckAvailability(ctx); err != nil {
		return err
	}
	if _, err := c.GetVersion(ctx, "--version"); err == nil {
		return nil
	}
	// Fall back to "help" since some copilot builds don't support --version.
	_, err := c.ExecuteCommand(ctx, []string{"help"}, "", "", 0)
	return err
}

func (c *CopilotAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	args := c.buildArgs(opts)

	// copilot has no --system-prompt flag; fold it into the user prompt.
	prompt := opts.Prompt
	if opts.SystemPrompt != "" && prompt != "" {
		prompt = "[System Instructions]\n" + opts.SystemPrompt + "\n\n[User Message]\n" + prompt
	}

	result, err := c.ExecuteCommand(ctx, args, prompt, opts.WorkDir, opts.Timeout)
	if err != nil {
		return nil, err
	}
	execResult := c.parseOutput(result)
	c.extractUsage(result, execResult)
	return execResult, nil
}

func (c *CopilotAdapter) buildArgs(_ core.ExecuteOptions) []string {
	// Model selection happens via slash command/config file, not a CLI flag.
	return []string{"--allow-all-tools", "--allow-all-paths", "--allow-all-urls", "--silent"}
}

func (c *CopilotAdapter) parseOutput(result *CommandResult) *core.ExecuteResult {
	return &core.ExecuteResult{
		Output:   strings.TrimSpace(c.cleanANSI(result.Stdout)),
		Duration: result.Duration,
	}
}

var copilotTokenPatterns = []struct {
	pattern string
	isInput bool
}{
	{`(?i)input[_\s]?tokens?:?\s*(\d+)`, true},
	{`(?i)output[_\s]?tokens?:?\s*(\d+)`, false},
	{`(?i)prompt[_\s]?tokens?:?\s*(\d+)`, true},
	{`(?i)completion[_\s]?tokens?:?\s*(\d+)`, false},
}

func (c *CopilotAdapter) extractUsage(result *CommandResult, execResult *core.ExecuteResult) {
	combined := result.Stdout + result.Stderr

	for _, tp := range copilotTokenPatterns {
		re := regexp.MustCompile(tp.pattern)
		matches := re.FindStringSubmatch(combined)
		if len(matches) < 2 {
			continue
		}
		val, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if tp.isInput {
			execResult.TokensIn = val
		} else {
			execResult.TokensOut = val
		}
	}

	estimatedOut := c.TokenEstimate(execResult.Output)
	threshold := c.config.TokenDiscrepancyThreshold
	if threshold <= 0 {
		threshold = DefaultTokenDiscrepancyThreshold
	}
	if execResult.TokensOut > 0 && estimatedOut > 100 && threshold > 0 {
		if tokenDiscrepancyExceeds(execResult.TokensOut, estimatedOut, threshold) {
			c.logger.Warn("toolrunner: reported completion token count diverges from estimate",
				"adapter", "copilot", "reported", execResult.TokensOut, "estimated", estimatedOut)
			execResult.TokensOut = estimatedOut
		}
	}

	if execResult.TokensIn == 0 && execResult.TokensOut == 0 {
		execResult.TokensOut = estimatedOut
		execResult.TokensIn = execResult.TokensOut / 3
		if execResult.TokensIn < 10 {
			execResult.TokensIn = 10
		}
	}

	if execResult.TokensIn > maxPlausibleTokens {
		execResult.TokensIn = maxPlausibleTokens
	}
	if execResult.TokensOut > maxPlausibleTokens {
		execResult.TokensOut = maxPlausibleTokens
	}
}

func (c *CopilotAdapter) cleanANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

var _ core.Agent = (*CopilotAdapter)(nil)
