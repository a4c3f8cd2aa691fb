package toolrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autopilot-dev/autopilot/internal/core"
	"github.com/autopilot-dev/autopilot/internal/diagnostics"
)

// AgentFactory creates an agent from configuration.
type AgentFactory func(cfg AgentConfig) (core.Agent, error)

// Registry manages the configured set of AI coding CLI agents.
type Registry struct {
	factories       map[string]AgentFactory
	agents          map[string]core.Agent
	configs         map[string]AgentConfig
	logCallback     LogCallback
	safeExec        *diagnostics.SafeExecutor
	crashDumpWriter *diagnostics.CrashDumpWriter
	mu              sync.RWMutex
}

// NewRegistry creates a registry preloaded with the four supported adapters.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]AgentFactory),
		agents:    make(map[string]core.Agent),
		configs:   make(map[string]AgentConfig),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.RegisterFactory(core.AgentClaude, NewClaudeAdapter)
	r.RegisterFactory(core.AgentGemini, NewGeminiAdapter)
	r.RegisterFactory(core.AgentCodex, NewCodexAdapter)
	r.RegisterFactory(core.AgentCopilot, NewCopilotAdapter)
}

// RegisterFactory registers a factory for an agent type.
func (r *Registry) RegisterFactory(name string, factory AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Register adds an already-constructed agent directly to the registry.
func (r *Registry) Register(name string, agent core.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
	return nil
}

// Configure sets the configuration an agent will be built with. Any
// previously-cached instance is dropped so the next Get rebuilds it.
func (r *Registry) Configure(name string, cfg AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	delete(r.agents, name)
}

// Get returns an agent by name, constructing and caching it on first use.
func (r *Registry) Get(name string) (core.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent, ok := r.agents[name]; ok {
		return agent, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, core.ErrNotFound("agent", name)
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = defaultConfig(name)
	}

	agent, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", name, err)
	}

	if setter, ok := agent.(LogCallbackSetter); ok && r.logCallback != nil {
		setter.SetLogCallback(r.logCallback)
	}
	if dc, ok := agent.(DiagnosticsCapable); ok && (r.safeExec != nil || r.crashDumpWriter != nil) {
		dc.WithDiagnostics(r.safeExec, r.crashDumpWriter)
	}

	r.agents[name] = agent
	return agent, nil
}

// List returns the names of all registered agent factories.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// ListEnabled returns names of agents with explicit configuration.
func (r *Registry) ListEnabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

// ListEnabledForPhase returns configured agents enabled for phase, without
// pinging them.
func (r *Registry) ListEnabledForPhase(phase string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for name, cfg := range r.configs {
		if cfg.IsEnabledForPhase(phase) {
			names = append(names, name)
		}
	}
	return names
}

// Has reports whether a factory is registered for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// GetCapabilities returns the capabilities of a named agent.
func (r *Registry) GetCapabilities(name string) (core.Capabilities, error) {
	agent, err := r.Get(name)
	if err != nil {
		return core.Capabilities{}, err
	}
	return agent.Capabilities(), nil
}

// Ping checks whether a named agent's CLI is available.
func (r *Registry) Ping(ctx context.Context, name string) error {
	agent, err := r.Get(name)
	if err != nil {
		return err
	}
	return agent.Ping(ctx)
}

// PingAll checks availability of every configured agent concurrently.
func (r *Registry) PingAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	results := make(map[string]error)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Ping(ctx, name)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// Available returns agents that pass Ping.
func (r *Registry) Available(ctx context.Context) []string {
	results := r.PingAll(ctx)
	available := make([]string, 0)
	for name, err := range results {
		if err == nil {
			available = append(available, name)
		}
	}
	return available
}

// AvailableForPhase returns agents that pass Ping and are enabled for phase.
func (r *Registry) AvailableForPhase(ctx context.Context, phase string) []string {
	results := r.PingAll(ctx)
	available := make([]string, 0)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, err := range results {
		if err != nil {
			slog.Debug("agent ping failed", slog.String("agent", name), slog.String("phase", phase), slog.String("error", err.Error()))
			continue
		}
		if cfg, ok := r.configs[name]; ok && !cfg.IsEnabledForPhase(phase) {
			slog.Debug("agent not enabled for phase", slog.String("agent", name), slog.String("phase", phase))
			continue
		}
		available = append(available, name)
	}
	return available
}

// IsEnabledForPhase reports whether name is enabled for phase. An agent with
// no explicit configuration is treated as enabled everywhere.
func (r *Registry) IsEnabledForPhase(name, phase string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	if !ok {
		return true
	}
	return cfg.IsEnabledForPhase(phase)
}

// Clear drops every cached agent instance, forcing rebuild on next Get.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]core.Agent)
}

// LogCallbackSetter is implemented by adapters that support real-time stderr
// streaming.
type LogCallbackSetter interface {
	SetLogCallback(cb LogCallback)
}

// SetLogCallback applies cb to every cached agent and stores it for agents
// constructed afterward.
func (r *Registry) SetLogCallback(cb LogCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logCallback = cb
	for _, agent := range r.agents {
		if setter, ok := agent.(LogCallbackSetter); ok {
			setter.SetLogCallback(cb)
		}
	}
}

// DiagnosticsCapable is implemented by adapters that accept preflight checks
// and crash-dump capture.
type DiagnosticsCapable interface {
	WithDiagnostics(safeExec *diagnostics.SafeExecutor, dumpWriter *diagnostics.CrashDumpWriter)
}

// SetDiagnostics wires preflight/crash-dump support into every cached agent
// and stores it for agents constructed afterward.
func (r *Registry) SetDiagnostics(safeExec *diagnostics.SafeExecutor, dumpWriter *diagnostics.CrashDumpWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.safeExec = safeExec
	r.crashDumpWriter = dumpWriter
	for _, agent := range r.agents {
		if dc, ok := agent.(DiagnosticsCapable); ok {
			dc.WithDiagnostics(safeExec, dumpWriter)
		}
	}
}

// defaultConfig returns baseline configuration for a known agent name. Model
// is intentionally left blank so the CLI's own default applies unless the
// caller configures one explicitly.
func defaultConfig(name string) AgentConfig {
	defaults := map[string]AgentConfig{
		core.AgentClaude:  {Name: core.AgentClaude, Path: "claude", Timeout: 5 * time.Minute},
		core.AgentGemini:  {Name: core.AgentGemini, Path: "gemini", Timeout: 5 * time.Minute},
		core.AgentCodex:   {Name: core.AgentCodex, Path: "codex", Timeout: 5 * time.Minute},
		core.AgentCopilot: {Name: core.AgentCopilot, Path: "copilot", Timeout: 5 * time.Minute},
	}
	if cfg, ok := defaults[name]; ok {
		return cfg
	}
	return AgentConfig{Name: name, Timeout: 5 * time.Minute}
}

// GetTokenDiscrepancyThreshold returns configured if positive, otherwise the
// package default.
func GetTokenDiscrepancyThreshold(configured float64) float64 {
	if configured > 0 {
		return configured
	}
	return DefaultTokenDiscrepancyThreshold
}

var _ core.AgentRegistry = (*Registry)(nil)
