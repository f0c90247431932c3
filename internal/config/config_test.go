package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestResolveDefaultsWhenNoFileOrOverrides(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")
	withEnv(t, "OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Resolve(dir, Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want default %d", cfg.MaxDepth, DefaultMaxDepth)
	}
	if cfg.Renderer != DefaultRenderer {
		t.Errorf("Renderer = %q, want %q", cfg.Renderer, DefaultRenderer)
	}
	if cfg.AnthropicAPIKey != "sk-ant-test" {
		t.Errorf("AnthropicAPIKey = %q, want sk-ant-test", cfg.AnthropicAPIKey)
	}
	if cfg.Sources["anthropicApiKey"] != SourceEnv {
		t.Errorf("anthropicApiKey source = %q, want env", cfg.Sources["anthropicApiKey"])
	}
	if cfg.Sources["maxDepth"] != SourceDefault {
		t.Errorf("maxDepth source = %q, want default", cfg.Sources["maxDepth"])
	}
	if cfg.PersistencePath != filepath.Join(dir, ".babylon") {
		t.Errorf("PersistencePath = %q", cfg.PersistencePath)
	}
}

func TestResolveFilePrecedesEnvForNonAPIKeyFields(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")
	writeFile(t, dir, `{"maxDepth": 5, "renderer": "log", "defaultProvider": "anthropic"}`)

	cfg, err := Resolve(dir, Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d, want 5", cfg.MaxDepth)
	}
	if cfg.Renderer != "log" {
		t.Errorf("Renderer = %q, want log", cfg.Renderer)
	}
	if cfg.Sources["maxDepth"] != SourceFile {
		t.Errorf("maxDepth source = %q, want file", cfg.Sources["maxDepth"])
	}
}

func TestResolveCLIOverridesWinOverFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")
	writeFile(t, dir, `{"maxDepth": 5, "renderer": "log"}`)

	depth := 9
	renderer := "none"
	cfg, err := Resolve(dir, Overrides{MaxDepth: &depth, Renderer: &renderer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDepth != 9 {
		t.Errorf("MaxDepth = %d, want 9 (cli override)", cfg.MaxDepth)
	}
	if cfg.Renderer != "none" {
		t.Errorf("Renderer = %q, want none (cli override)", cfg.Renderer)
	}
	if cfg.Sources["maxDepth"] != SourceOverride {
		t.Errorf("maxDepth source = %q, want cli", cfg.Sources["maxDepth"])
	}
}

func TestResolveMetricsAddrDefaultsEmptyAndHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Resolve(dir, Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty by default", cfg.MetricsAddr)
	}

	addr := ":9090"
	cfg, err = Resolve(dir, Overrides{MetricsAddr: &addr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.Sources["metricsAddr"] != SourceOverride {
		t.Errorf("metricsAddr source = %q, want cli", cfg.Sources["metricsAddr"])
	}
}

func TestResolveNoCLIFlagInvertsUseCLI(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")

	noCLI := true
	cfg, err := Resolve(dir, Overrides{NoCLI: &noCLI})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.UseCLI {
		t.Errorf("UseCLI = true, want false when --no-cli is set")
	}
}

func TestResolveMissingAPIKeyFailsFast(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")

	_, err := Resolve(dir, Overrides{})
	if err == nil {
		t.Fatalf("expected an error when no API key is configured")
	}
}

func TestResolveBadJSONFailsFast(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")
	writeFile(t, dir, `{not valid json`)

	_, err := Resolve(dir, Overrides{})
	if err == nil {
		t.Fatalf("expected an error for malformed .babylonrc.json")
	}
}

func TestResolveUnknownRendererFailsFast(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")
	writeFile(t, dir, `{"renderer": "carrier-pigeon"}`)

	_, err := Resolve(dir, Overrides{})
	if err == nil {
		t.Fatalf("expected an error for an unknown renderer")
	}
}

func TestResolveUnknownProviderFailsFast(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")

	provider := "azure"
	_, err := Resolve(dir, Overrides{Provider: &provider})
	if err == nil {
		t.Fatalf("expected an error for an unknown provider")
	}
}

func TestResolveRunNameCreatesGenerationDir(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")

	name := "fix-login-bug"
	cfg, err := Resolve(dir, Overrides{RunName: &name})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantDir := filepath.Join(dir, "generations", "00-fix-login-bug", "output")
	if cfg.WorkingDirectory != wantDir {
		t.Errorf("WorkingDirectory = %q, want %q", cfg.WorkingDirectory, wantDir)
	}
	if _, err := os.Stat(cfg.WorkingDirectory); err != nil {
		t.Errorf("expected generation output dir to exist: %v", err)
	}
	if cfg.RunLogPath == "" {
		t.Errorf("expected RunLogPath to be set for a named run")
	}
}

func TestNextGenerationDirIncrementsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	first, err := nextGenerationDir(dir, "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := nextGenerationDir(dir, "beta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(first) != "00-alpha" {
		t.Errorf("first generation dir = %q, want 00-alpha", filepath.Base(first))
	}
	if filepath.Base(second) != "01-beta" {
		t.Errorf("second generation dir = %q, want 01-beta", filepath.Base(second))
	}
}

func TestResolveEnvOnlyAppliesToAPIKeys(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Resolve(dir, Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sources["maxRetries"] != SourceDefault {
		t.Errorf("maxRetries source = %q, want default (no env override path exists)", cfg.Sources["maxRetries"])
	}
}

func writeFile(t *testing.T, dir, contents string) {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
