// Package config loads and validates autopilot's configuration, adapted
// from the teacher's viper-backed Loader/Validator pair and narrowed to the
// sections a roadmap run actually needs: logging, state storage, worker
// concurrency, host safety thresholds, model routing, agent credentials,
// the quality gate, and the operations manager.
package config

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	State   StateConfig   `mapstructure:"state"`
	Workers WorkersConfig `mapstructure:"workers"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Router  RouterConfig  `mapstructure:"router"`
	Agents  AgentsConfig  `mapstructure:"agents"`
	Gate    GateConfig    `mapstructure:"gate"`
	Ops     OpsConfig     `mapstructure:"ops"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// StateConfig configures roadmap state persistence.
type StateConfig struct {
	Root       string `mapstructure:"root"`
	BackupPath string `mapstructure:"backup_path"`
	LockTTL    string `mapstructure:"lock_ttl"`
	Backend    string `mapstructure:"backend"` // file | sqlite
}

// WorkersConfig configures dispatch concurrency.
type WorkersConfig struct {
	MaxConcurrent int   `mapstructure:"max_concurrent"`
	WIPGlobal     int64 `mapstructure:"wip_global"`
	WIPPerWorker  int64 `mapstructure:"wip_per_worker"`
}

// SafetyConfig configures the supervisor's startup and periodic host checks.
type SafetyConfig struct {
	MinDiskFreePercent float64 `mapstructure:"min_disk_free_percent"`
	MaxMemoryPercent   float64 `mapstructure:"max_memory_percent"`
	MaxGoroutines      int     `mapstructure:"max_goroutines"`
}

// RouterConfig configures the model router's complexity scoring and tier
// cost tables.
type RouterConfig struct {
	ComplexityWeights map[string]float64          `mapstructure:"complexity_weights"`
	TierCosts         map[string]map[string]float64 `mapstructure:"tier_costs"`
}

// AgentsConfig configures the available agent CLIs.
type AgentsConfig struct {
	Default string      `mapstructure:"default"`
	Claude  AgentConfig `mapstructure:"claude"`
	Gemini  AgentConfig `mapstructure:"gemini"`
	Codex   AgentConfig `mapstructure:"codex"`
	Copilot AgentConfig `mapstructure:"copilot"`
}

// AgentConfig configures a single agent CLI, matching the teacher's
// opt-in-per-phase model: an agent only runs phases explicitly marked true.
type AgentConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	Path        string          `mapstructure:"path"`
	Model       string          `mapstructure:"model"`
	PhaseModels map[string]string `mapstructure:"phase_models"`
	MaxTokens   int             `mapstructure:"max_tokens"`
	Temperature float64         `mapstructure:"temperature"`
	Phases      map[string]bool `mapstructure:"phases"`
}

// GateConfig configures the quality gate's bypass detection and peer review.
type GateConfig struct {
	SampleN              int     `mapstructure:"sample_n"`
	PeerReview           bool    `mapstructure:"peer_review"`
	HistoricalDivergence float64 `mapstructure:"historical_divergence"`
}

// OpsConfig configures the operations manager's mode-selection window.
type OpsConfig struct {
	WindowSize int `mapstructure:"window_size"`
}
