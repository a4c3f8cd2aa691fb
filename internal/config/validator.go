package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a loaded Config against SPEC_FULL's ambient
// configuration contract: valid log levels/formats, positive worker and
// WIP caps, sane safety thresholds, and a recognized state backend.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// ValidateConfig validates cfg in one shot, for callers (like
// `autopilot validate`) that don't need a persistent Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateState(&cfg.State)
	v.validateWorkers(&cfg.Workers)
	v.validateSafety(&cfg.Safety)
	v.validateAgents(&cfg.Agents)
	v.validateGate(&cfg.Gate)
	v.validateOps(&cfg.Ops)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
var validStateBackends = map[string]bool{"file": true, "sqlite": true}

func (v *Validator) validateLog(cfg *LogConfig) {
	if cfg.Level != "" && !validLogLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of debug, info, warn, error")
	}
	if cfg.Format != "" && !validLogFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of auto, text, json")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	if cfg.Root == "" {
		v.addError("state.root", cfg.Root, "must not be empty")
	}
	if cfg.Backend != "" && !validStateBackends[cfg.Backend] {
		v.addError("state.backend", cfg.Backend, "must be one of file, sqlite")
	}
}

func (v *Validator) validateWorkers(cfg *WorkersConfig) {
	if cfg.MaxConcurrent <= 0 {
		v.addError("workers.max_concurrent", cfg.MaxConcurrent, "must be positive")
	}
	if cfg.WIPGlobal <= 0 {
		v.addError("workers.wip_global", cfg.WIPGlobal, "must be positive")
	}
	if cfg.WIPPerWorker < 0 {
		v.addError("workers.wip_per_worker", cfg.WIPPerWorker, "must not be negative")
	}
}

func (v *Validator) validateSafety(cfg *SafetyConfig) {
	if cfg.MinDiskFreePercent < 0 || cfg.MinDiskFreePercent > 100 {
		v.addError("safety.min_disk_free_percent", cfg.MinDiskFreePercent, "must be between 0 and 100")
	}
	if cfg.MaxMemoryPercent < 0 || cfg.MaxMemoryPercent > 100 {
		v.addError("safety.max_memory_percent", cfg.MaxMemoryPercent, "must be between 0 and 100")
	}
	if cfg.MaxGoroutines < 0 {
		v.addError("safety.max_goroutines", cfg.MaxGoroutines, "must not be negative")
	}
}

func (v *Validator) validateAgents(cfg *AgentsConfig) {
	if cfg.Default == "" {
		v.addError("agents.default", cfg.Default, "must not be empty")
	}
	for name, agent := range map[string]AgentConfig{
		"claude": cfg.Claude, "gemini": cfg.Gemini, "codex": cfg.Codex, "copilot": cfg.Copilot,
	} {
		if agent.Enabled && agent.Path == "" {
			v.addError(fmt.Sprintf("agents.%s.path", name), agent.Path, "must not be empty when enabled")
		}
		if agent.Temperature < 0 || agent.Temperature > 2 {
			v.addError(fmt.Sprintf("agents.%s.temperature", name), agent.Temperature, "must be between 0 and 2")
		}
	}
}

func (v *Validator) validateGate(cfg *GateConfig) {
	if cfg.SampleN <= 0 {
		v.addError("gate.sample_n", cfg.SampleN, "must be positive")
	}
	if cfg.HistoricalDivergence < 0 || cfg.HistoricalDivergence > 1 {
		v.addError("gate.historical_divergence", cfg.HistoricalDivergence, "must be between 0 and 1")
	}
}

func (v *Validator) validateOps(cfg *OpsConfig) {
	if cfg.WindowSize <= 0 {
		v.addError("ops.window_size", cfg.WindowSize, "must be positive")
	}
}
