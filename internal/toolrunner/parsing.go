package toolrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// ExtractJSON finds the first balanced JSON object or array in output,
// tolerating surrounding prose some CLIs emit around their JSON payload.
func (b *BaseAdapter) ExtractJSON(output string) string {
	start := strings.IndexAny(output, "{[")
	if start == -1 {
		return ""
	}
	openChar := output[start]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return output[start : i+1]
			}
		}
	}
	return ""
}

// ParseJSON unmarshals output into v, falling back to extracting an
// embedded JSON object if output isn't pure JSON.
func (b *BaseAdapter) ParseJSON(output string, v interface{}) error {
	if err := json.Unmarshal([]byte(output), v); err == nil {
		return nil
	}
	if extracted := b.ExtractJSON(output); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no valid JSON found in output")
}

// ExtractByPattern returns all substrings of output matching pattern.
func (b *BaseAdapter) ExtractByPattern(output, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re.FindAllString(output, -1), nil
}

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?(-[a-zA-Z0-9]+)?`)

// GetVersion retrieves the CLI version via versionArg (e.g. "--version").
func (b *BaseAdapter) GetVersion(ctx context.Context, versionArg string) (string, error) {
	result, err := b.ExecuteCommand(ctx, []string{versionArg}, "", "", 0)
	if err != nil {
		return "", err
	}
	output := result.Stdout + result.Stderr
	if match := versionPattern.FindString(output); match != "" {
		return match, nil
	}
	return strings.TrimSpace(output), nil
}

// CheckAvailability reports whether the configured CLI binary is on PATH.
func (b *BaseAdapter) CheckAvailability(_ context.Context) error {
	cmdPath := b.config.Path
	if cmdPath == "" {
		return core.ErrValidation("NO_PATH", "adapter path not configured")
	}
	cmdPath = strings.Fields(cmdPath)[0]
	if _, err := exec.LookPath(cmdPath); err != nil {
		return core.ErrNotFound("CLI", cmdPath)
	}
	return nil
}

// TokenEstimate roughly approximates token count at ~4 characters/token.
func (b *BaseAdapter) TokenEstimate(text string) int {
	return len(text) / 4
}

// TruncateToTokenLimit truncates text to approximately fit maxTokens.
func (b *BaseAdapter) TruncateToTokenLimit(text string, maxTokens int) string {
	charLimit := maxTokens * 4
	if len(text) <= charLimit {
		return text
	}
	return text[:charLimit]
}
