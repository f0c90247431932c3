// Package config resolves babylon's run configuration from three layers —
// .babylonrc.json, environment variables (with a .env file loaded into the
// process environment first), and CLI flags — merged under CLI > env > file
// precedence, and records which layer won for each field.
//
// Grounded on the teacher's internal/config/{layered,file_config}.go
// (nullable-pointer file-config fields so "absent" is distinguishable from
// "explicitly zero", and the core/project/advanced layered-merge idiom),
// simplified to babylon's flat field set and fixed precedence order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ValueSource records which configuration layer produced a field's final
// value, for --verbose diagnostics and `config show`-style introspection.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "cli"
)

// Defaults mirror the spec's .babylonrc.json default column.
const (
	DefaultMaxDepth                  = 2
	DefaultMaxRetries                = 2
	DefaultMaxCompositeCycles        = 2
	DefaultUseCLI                    = true
	DefaultComplexityDirectThreshold = 0.35
	DefaultOversightProbability      = 0.25
	DefaultMaxOversightPerComposite  = 2
	DefaultRenderer                  = "terminal"
	DefaultRepeatedToolCount         = 3
	DefaultLongStepSeconds           = 90
	configFileName                   = ".babylonrc.json"
	envFileName                      = ".env"
)

// OversightThresholds mirrors the file config's oversightThresholds object.
type OversightThresholds struct {
	RepeatedToolCount int
	LongStepSeconds   int
}

// Config is babylon's fully-resolved run configuration.
type Config struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string

	WorkingDirectory string
	PersistencePath  string

	DefaultProvider string
	DefaultModel    string
	ReviewerModel   string
	Renderer        string

	MaxDepth                  int
	MaxRetries                int
	MaxCompositeCycles        int
	BudgetDollars             float64 // 0 means unlimited
	UseCLI                    bool
	SimplePathMaxTurns        int
	Verbose                   bool
	RunLogPath                string
	EconomyMode               bool
	ComplexityDirectThreshold float64
	MaxContextTurns           int
	OversightProbability      float64
	MaxOversightPerComposite  int
	OversightThresholds       OversightThresholds

	// MetricsAddr, if non-empty, is the listen address for a /metrics
	// endpoint serving the run's Prometheus counters. Empty disables it.
	MetricsAddr string

	// Sources records, per field name, which layer set the final value.
	Sources map[string]ValueSource
}

// Overrides carries the CLI flags the `run` subcommand parsed; nil/zero
// pointer fields mean "flag not set" and are skipped during merge.
type Overrides struct {
	Provider            *string
	Model               *string
	Renderer            *string
	BudgetDollars       *float64
	MaxDepth            *int
	NoCLI               *bool
	WorkingDirectory    *string
	Verbose             *bool
	ReviewerModel       *string
	Economy             *bool
	ComplexityThreshold *float64
	MaxContextTurns     *int
	RunName             *string
	MetricsAddr         *string
}

// fileConfig mirrors .babylonrc.json. Pointer/nullable fields distinguish
// "absent from the file" from "explicitly set to the zero value".
type fileConfig struct {
	OpenAIAPIKey    string `json:"openaiApiKey"`
	AnthropicAPIKey string `json:"anthropicApiKey"`

	WorkingDirectory string `json:"workingDirectory"`
	PersistencePath  string `json:"persistencePath"`

	DefaultProvider string `json:"defaultProvider"`
	DefaultModel    string `json:"defaultModel"`
	Renderer        string `json:"renderer"`

	MaxDepth           *int     `json:"maxDepth"`
	MaxRetries         *int     `json:"maxRetries"`
	MaxCompositeCycles *int     `json:"maxCompositeCycles"`
	BudgetDollars      *float64 `json:"budgetDollars"`
	UseCLI             *bool    `json:"useCli"`
	SimplePathMaxTurns *int     `json:"simplePathMaxTurns"`
	Verbose            *bool    `json:"verbose"`
	RunLogPath         string   `json:"runLogPath"`
	ReviewerModel      string   `json:"reviewerModel"`
	EconomyMode        *bool    `json:"economyMode"`

	ComplexityDirectThreshold *float64 `json:"complexityDirectThreshold"`
	MaxContextTurns           *int     `json:"maxContextTurns"`
	OversightProbability      *float64 `json:"oversightProbability"`
	MaxOversightPerComposite  *int     `json:"maxOversightPerComposite"`
	OversightThresholds       *struct {
		RepeatedToolCount *int `json:"repeatedToolCount"`
		LongStepSeconds   *int `json:"longStepSeconds"`
	} `json:"oversightThresholds"`
	MetricsAddr string `json:"metricsAddr"`
}

// Resolve builds the final Config for a run rooted at workingDir: it loads
// workingDir/.env into the process environment (without overriding
// already-set variables), reads workingDir/.babylonrc.json if present,
// applies the two recognized environment variables, then applies CLI
// overrides last, and validates the result.
func Resolve(workingDir string, overrides Overrides) (*Config, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: resolve working directory: %w", err)
		}
		workingDir = wd
	}

	_ = godotenv.Load(filepath.Join(workingDir, envFileName))

	cfg := &Config{
		WorkingDirectory:          workingDir,
		PersistencePath:           filepath.Join(workingDir, ".babylon"),
		Renderer:                  DefaultRenderer,
		MaxDepth:                  DefaultMaxDepth,
		MaxRetries:                DefaultMaxRetries,
		MaxCompositeCycles:        DefaultMaxCompositeCycles,
		UseCLI:                    DefaultUseCLI,
		ComplexityDirectThreshold: DefaultComplexityDirectThreshold,
		OversightProbability:     DefaultOversightProbability,
		MaxOversightPerComposite: DefaultMaxOversightPerComposite,
		OversightThresholds: OversightThresholds{
			RepeatedToolCount: DefaultRepeatedToolCount,
			LongStepSeconds:   DefaultLongStepSeconds,
		},
		Sources: make(map[string]ValueSource),
	}
	for _, field := range []string{
		"workingDirectory", "persistencePath", "renderer", "maxDepth", "maxRetries",
		"maxCompositeCycles", "useCli", "complexityDirectThreshold", "oversightProbability",
		"maxOversightPerComposite", "oversightThresholds",
	} {
		cfg.Sources[field] = SourceDefault
	}

	fc, err := loadFileConfig(filepath.Join(workingDir, configFileName))
	if err != nil {
		return nil, err
	}
	if fc != nil {
		applyFileConfig(cfg, fc)
	}

	applyEnv(cfg)
	applyOverrides(cfg, overrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &fc, nil
}

func applyFileConfig(cfg *Config, fc *fileConfig) {
	setString(cfg, "openaiApiKey", &cfg.OpenAIAPIKey, fc.OpenAIAPIKey, SourceFile)
	setString(cfg, "anthropicApiKey", &cfg.AnthropicAPIKey, fc.AnthropicAPIKey, SourceFile)
	setString(cfg, "workingDirectory", &cfg.WorkingDirectory, fc.WorkingDirectory, SourceFile)
	setString(cfg, "persistencePath", &cfg.PersistencePath, fc.PersistencePath, SourceFile)
	setString(cfg, "defaultProvider", &cfg.DefaultProvider, fc.DefaultProvider, SourceFile)
	setString(cfg, "defaultModel", &cfg.DefaultModel, fc.DefaultModel, SourceFile)
	setString(cfg, "renderer", &cfg.Renderer, fc.Renderer, SourceFile)
	setString(cfg, "runLogPath", &cfg.RunLogPath, fc.RunLogPath, SourceFile)
	setString(cfg, "reviewerModel", &cfg.ReviewerModel, fc.ReviewerModel, SourceFile)
	setString(cfg, "metricsAddr", &cfg.MetricsAddr, fc.MetricsAddr, SourceFile)

	if fc.MaxDepth != nil {
		cfg.MaxDepth, cfg.Sources["maxDepth"] = *fc.MaxDepth, SourceFile
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries, cfg.Sources["maxRetries"] = *fc.MaxRetries, SourceFile
	}
	if fc.MaxCompositeCycles != nil {
		cfg.MaxCompositeCycles, cfg.Sources["maxCompositeCycles"] = *fc.MaxCompositeCycles, SourceFile
	}
	if fc.BudgetDollars != nil {
		cfg.BudgetDollars, cfg.Sources["budgetDollars"] = *fc.BudgetDollars, SourceFile
	}
	if fc.UseCLI != nil {
		cfg.UseCLI, cfg.Sources["useCli"] = *fc.UseCLI, SourceFile
	}
	if fc.SimplePathMaxTurns != nil {
		cfg.SimplePathMaxTurns, cfg.Sources["simplePathMaxTurns"] = *fc.SimplePathMaxTurns, SourceFile
	}
	if fc.Verbose != nil {
		cfg.Verbose, cfg.Sources["verbose"] = *fc.Verbose, SourceFile
	}
	if fc.EconomyMode != nil {
		cfg.EconomyMode, cfg.Sources["economyMode"] = *fc.EconomyMode, SourceFile
	}
	if fc.ComplexityDirectThreshold != nil {
		cfg.ComplexityDirectThreshold, cfg.Sources["complexityDirectThreshold"] = *fc.ComplexityDirectThreshold, SourceFile
	}
	if fc.MaxContextTurns != nil {
		cfg.MaxContextTurns, cfg.Sources["maxContextTurns"] = *fc.MaxContextTurns, SourceFile
	}
	if fc.OversightProbability != nil {
		cfg.OversightProbability, cfg.Sources["oversightProbability"] = *fc.OversightProbability, SourceFile
	}
	if fc.MaxOversightPerComposite != nil {
		cfg.MaxOversightPerComposite, cfg.Sources["maxOversightPerComposite"] = *fc.MaxOversightPerComposite, SourceFile
	}
	if fc.OversightThresholds != nil {
		if fc.OversightThresholds.RepeatedToolCount != nil {
			cfg.OversightThresholds.RepeatedToolCount = *fc.OversightThresholds.RepeatedToolCount
		}
		if fc.OversightThresholds.LongStepSeconds != nil {
			cfg.OversightThresholds.LongStepSeconds = *fc.OversightThresholds.LongStepSeconds
		}
		cfg.Sources["oversightThresholds"] = SourceFile
	}
}

func setString(cfg *Config, field string, dst *string, value string, source ValueSource) {
	if value == "" {
		return
	}
	*dst = value
	cfg.Sources[field] = source
}

// applyEnv applies the two recognized environment variables. These are the
// only fields the spec resolves from the environment; everything else is
// file/CLI only.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey, cfg.Sources["openaiApiKey"] = v, SourceEnv
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey, cfg.Sources["anthropicApiKey"] = v, SourceEnv
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Provider != nil {
		cfg.DefaultProvider, cfg.Sources["defaultProvider"] = *o.Provider, SourceOverride
	}
	if o.Model != nil {
		cfg.DefaultModel, cfg.Sources["defaultModel"] = *o.Model, SourceOverride
	}
	if o.Renderer != nil {
		cfg.Renderer, cfg.Sources["renderer"] = *o.Renderer, SourceOverride
	}
	if o.BudgetDollars != nil {
		cfg.BudgetDollars, cfg.Sources["budgetDollars"] = *o.BudgetDollars, SourceOverride
	}
	if o.MaxDepth != nil {
		cfg.MaxDepth, cfg.Sources["maxDepth"] = *o.MaxDepth, SourceOverride
	}
	if o.NoCLI != nil {
		cfg.UseCLI, cfg.Sources["useCli"] = !*o.NoCLI, SourceOverride
	}
	if o.WorkingDirectory != nil {
		cfg.WorkingDirectory, cfg.Sources["workingDirectory"] = *o.WorkingDirectory, SourceOverride
	}
	if o.Verbose != nil {
		cfg.Verbose, cfg.Sources["verbose"] = *o.Verbose, SourceOverride
	}
	if o.ReviewerModel != nil {
		cfg.ReviewerModel, cfg.Sources["reviewerModel"] = *o.ReviewerModel, SourceOverride
	}
	if o.Economy != nil {
		cfg.EconomyMode, cfg.Sources["economyMode"] = *o.Economy, SourceOverride
	}
	if o.ComplexityThreshold != nil {
		cfg.ComplexityDirectThreshold, cfg.Sources["complexityDirectThreshold"] = *o.ComplexityThreshold, SourceOverride
	}
	if o.MaxContextTurns != nil {
		cfg.MaxContextTurns, cfg.Sources["maxContextTurns"] = *o.MaxContextTurns, SourceOverride
	}
	if o.MetricsAddr != nil {
		cfg.MetricsAddr, cfg.Sources["metricsAddr"] = *o.MetricsAddr, SourceOverride
	}
	if o.RunName != nil && *o.RunName != "" {
		genDir, err := nextGenerationDir(cfg.WorkingDirectory, *o.RunName)
		if err == nil {
			cfg.WorkingDirectory = filepath.Join(genDir, "output")
			cfg.RunLogPath = filepath.Join(genDir, "run.txt")
			cfg.Sources["workingDirectory"] = SourceOverride
			cfg.Sources["runLogPath"] = SourceOverride
		}
	}
}

var renderers = map[string]bool{"terminal": true, "log": true, "none": true}
var providers = map[string]bool{"openai": true, "anthropic": true}

func validate(cfg *Config) error {
	if cfg.Renderer != "" && !renderers[cfg.Renderer] {
		return fmt.Errorf("config: unknown renderer %q (want terminal, log, or none)", cfg.Renderer)
	}
	if cfg.DefaultProvider != "" && !providers[cfg.DefaultProvider] {
		return fmt.Errorf("config: unknown provider %q (want openai or anthropic)", cfg.DefaultProvider)
	}

	provider := cfg.DefaultProvider
	if provider == "" {
		provider = "anthropic"
	}
	switch provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("config: missing openaiApiKey (set via .babylonrc.json, OPENAI_API_KEY, or a .env file)")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("config: missing anthropicApiKey (set via .babylonrc.json, ANTHROPIC_API_KEY, or a .env file)")
		}
	}
	return nil
}
