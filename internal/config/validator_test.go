package config

import "testing"

func validConfig() *Config {
	cfg := &Config{}
	loader := NewLoader()
	defaults, err := loader.Load()
	if err != nil {
		panic(err)
	}
	*cfg = *defaults
	return cfg
}

func TestValidatorAcceptsDefaults(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidatorRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !verrs.HasErrors() {
		t.Fatal("expected HasErrors to report true")
	}
}

func TestValidatorRejectsNonPositiveWorkerCaps(t *testing.T) {
	cfg := validConfig()
	cfg.Workers.MaxConcurrent = 0
	cfg.Workers.WIPGlobal = -1

	err := ValidateConfig(cfg)
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d: %v", len(verrs), verrs)
	}
}

func TestValidatorRejectsUnknownStateBackend(t *testing.T) {
	cfg := validConfig()
	cfg.State.Backend = "postgres"

	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected an error for an unrecognized state backend")
	}
}

func TestValidatorRejectsEnabledAgentWithoutPath(t *testing.T) {
	cfg := validConfig()
	cfg.Agents.Claude.Path = ""

	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected an error when an enabled agent has no executable path")
	}
}
