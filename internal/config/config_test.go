package config

import (
	"os"
	"testing"
)

func clearConfigEnvVars() {
	os.Unsetenv(envInstructionBudget)
	os.Unsetenv(envMemoryBudget)
	os.Unsetenv(envBacktraceDepth)
	os.Unsetenv(envDiagnosticsDSN)
}

func TestLoad_DefaultValues(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	cfg := Load()

	if cfg.InstructionBudget != 0 {
		t.Errorf("Expected InstructionBudget 0, got %d", cfg.InstructionBudget)
	}
	if cfg.MemoryBudget != 0 {
		t.Errorf("Expected MemoryBudget 0, got %d", cfg.MemoryBudget)
	}
	if cfg.BacktraceDepth != defaultBacktraceDepth {
		t.Errorf("Expected BacktraceDepth %d, got %d", defaultBacktraceDepth, cfg.BacktraceDepth)
	}
	if cfg.DiagnosticsDSN != "" {
		t.Errorf("Expected empty DiagnosticsDSN, got %q", cfg.DiagnosticsDSN)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv(envInstructionBudget, "1000000")
	os.Setenv(envMemoryBudget, "67108864")
	os.Setenv(envBacktraceDepth, "5")
	os.Setenv(envDiagnosticsDSN, "file:run.db?cache=shared")

	cfg := Load()

	if cfg.InstructionBudget != 1000000 {
		t.Errorf("Expected InstructionBudget 1000000, got %d", cfg.InstructionBudget)
	}
	if cfg.MemoryBudget != 67108864 {
		t.Errorf("Expected MemoryBudget 67108864, got %d", cfg.MemoryBudget)
	}
	if cfg.BacktraceDepth != 5 {
		t.Errorf("Expected BacktraceDepth 5, got %d", cfg.BacktraceDepth)
	}
	if cfg.DiagnosticsDSN != "file:run.db?cache=shared" {
		t.Errorf("Expected DiagnosticsDSN to match, got %q", cfg.DiagnosticsDSN)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	os.Setenv(envInstructionBudget, "not-a-number")
	os.Setenv(envBacktraceDepth, "-1")

	cfg := Load()

	if cfg.InstructionBudget != 0 {
		t.Errorf("Expected InstructionBudget to fall back to 0, got %d", cfg.InstructionBudget)
	}
	if cfg.BacktraceDepth != defaultBacktraceDepth {
		t.Errorf("Expected BacktraceDepth to fall back to default, got %d", cfg.BacktraceDepth)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BacktraceDepth != defaultBacktraceDepth {
		t.Errorf("Expected BacktraceDepth %d, got %d", defaultBacktraceDepth, cfg.BacktraceDepth)
	}
	if cfg.InstructionBudget != 0 || cfg.MemoryBudget != 0 || cfg.DiagnosticsDSN != "" {
		t.Errorf("Expected Default() to be the zero-limits config, got %+v", cfg)
	}
}
