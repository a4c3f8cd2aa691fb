package config

// DefaultConfigYAML contains the default configuration YAML content, the
// same shape `autopilot validate` checks and a new `.autopilot/config.yaml`
// can be seeded from.
const DefaultConfigYAML = `# Autopilot configuration
# Values not specified here use the defaults below.

log:
  level: info
  format: auto

state:
  root: .autopilot/state
  backup_path: .autopilot/state/backups
  lock_ttl: 1h
  backend: file

workers:
  max_concurrent: 4
  wip_global: 8
  wip_per_worker: 2

safety:
  min_disk_free_percent: 5.0
  max_memory_percent: 90.0
  max_goroutines: 5000

router:
  complexity_weights:
    files_touched: 0.3
    loc_estimate: 0.3
    dependency_fanout: 0.2
    historical_retries: 0.2

agents:
  default: claude

  claude:
    enabled: true
    path: claude
    model: claude-opus-4-6
    phases:
      strategize: true
      spec: true
      plan: true
      think: true
      gate: true
      implement: true
      verify: true
      review: true
      monitor: true

  gemini:
    enabled: true
    path: gemini
    model: gemini-3-pro-preview
    phases:
      implement: true
      verify: true

  codex:
    enabled: true
    path: codex
    model: gpt-5.3-codex
    phases:
      plan: true
      implement: true
      verify: true

  copilot:
    enabled: true
    path: copilot
    model: claude-sonnet-4-5
    phases:
      review: true

gate:
  sample_n: 50
  peer_review: false
  historical_divergence: 0.3

ops:
  window_size: 20
`
