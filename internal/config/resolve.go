package config

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the testmend.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came
// from.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "llm.model"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// Nil values mean "not set" (do not override). A *string that is nil means
// "not overridden"; a *string pointing to "" means "override to empty string."
type CLIOverrides struct {
	MaxRetries           *int
	InitialTemperature   *float64
	TemperatureIncrement *float64
	ForceSuccess         *bool
	Model                *string
	BaseURL              *string
	Python               *string
	TimeoutSeconds       *int
	BaseBranch           *string
	CreatePR             *bool
}

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
//
// Parameters:
//   - defaults: built-in default config (from NewDefaults())
//   - fileConfig: parsed config from testmend.toml (nil if no file found)
//   - envFn: function to look up environment variables
//   - overrides: CLI flag values (nil fields mean "not set")
//
// Returns the fully-resolved config with source annotations.
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	// Layer 1: defaults as the base.
	resolveFromDefaults(rc, defaults)

	// Layer 2: file config on top. Zero values mean "not set in file".
	if fileConfig != nil {
		resolveFromFile(rc, fileConfig)
	}

	// Layer 3: environment variables.
	resolveFromEnv(rc, envFn)

	// Layer 4: CLI overrides.
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveFromDefaults(rc *ResolvedConfig, defaults *Config) {
	*rc.Config = *defaults
	for _, path := range []string{
		"fix.max_retries",
		"fix.initial_temperature",
		"fix.temperature_increment",
		"fix.force_success",
		"llm.model",
		"llm.base_url",
		"llm.api_key_env",
		"pytest.python",
		"pytest.timeout_seconds",
		"git.branch_template",
		"git.base_branch",
		"git.create_pr",
	} {
		rc.Sources[path] = SourceDefault
	}
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, file *Config) {
	c := rc.Config

	mergeInt(&c.Fix.MaxRetries, file.Fix.MaxRetries, "fix.max_retries", rc.Sources)
	mergeFloat(&c.Fix.InitialTemperature, file.Fix.InitialTemperature, "fix.initial_temperature", rc.Sources)
	mergeFloat(&c.Fix.TemperatureIncrement, file.Fix.TemperatureIncrement, "fix.temperature_increment", rc.Sources)
	if file.Fix.ForceSuccess {
		c.Fix.ForceSuccess = true
		rc.Sources["fix.force_success"] = SourceFile
	}

	mergeString(&c.LLM.Model, file.LLM.Model, "llm.model", SourceFile, rc.Sources)
	mergeString(&c.LLM.BaseURL, file.LLM.BaseURL, "llm.base_url", SourceFile, rc.Sources)
	mergeString(&c.LLM.APIKeyEnv, file.LLM.APIKeyEnv, "llm.api_key_env", SourceFile, rc.Sources)

	mergeString(&c.Pytest.Python, file.Pytest.Python, "pytest.python", SourceFile, rc.Sources)
	mergeInt(&c.Pytest.TimeoutSeconds, file.Pytest.TimeoutSeconds, "pytest.timeout_seconds", rc.Sources)

	mergeString(&c.Git.BranchTemplate, file.Git.BranchTemplate, "git.branch_template", SourceFile, rc.Sources)
	mergeString(&c.Git.BaseBranch, file.Git.BaseBranch, "git.base_branch", SourceFile, rc.Sources)
	if file.Git.CreatePR {
		c.Git.CreatePR = true
		rc.Sources["git.create_pr"] = SourceFile
	}
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	TESTMEND_MODEL           -> llm.model
//	TESTMEND_BASE_URL        -> llm.base_url
//	TESTMEND_API_KEY_ENV     -> llm.api_key_env
//	TESTMEND_PYTHON          -> pytest.python
//	TESTMEND_BASE_BRANCH     -> git.base_branch
//	TESTMEND_BRANCH_TEMPLATE -> git.branch_template
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	c := rc.Config

	if val, ok := envFn("TESTMEND_MODEL"); ok {
		c.LLM.Model = val
		rc.Sources["llm.model"] = SourceEnv
	}
	if val, ok := envFn("TESTMEND_BASE_URL"); ok {
		c.LLM.BaseURL = val
		rc.Sources["llm.base_url"] = SourceEnv
	}
	if val, ok := envFn("TESTMEND_API_KEY_ENV"); ok {
		c.LLM.APIKeyEnv = val
		rc.Sources["llm.api_key_env"] = SourceEnv
	}
	if val, ok := envFn("TESTMEND_PYTHON"); ok {
		c.Pytest.Python = val
		rc.Sources["pytest.python"] = SourceEnv
	}
	if val, ok := envFn("TESTMEND_BASE_BRANCH"); ok {
		c.Git.BaseBranch = val
		rc.Sources["git.base_branch"] = SourceEnv
	}
	if val, ok := envFn("TESTMEND_BRANCH_TEMPLATE"); ok {
		c.Git.BranchTemplate = val
		rc.Sources["git.branch_template"] = SourceEnv
	}
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, overrides *CLIOverrides) {
	c := rc.Config

	if overrides.MaxRetries != nil {
		c.Fix.MaxRetries = *overrides.MaxRetries
		rc.Sources["fix.max_retries"] = SourceCLI
	}
	if overrides.InitialTemperature != nil {
		c.Fix.InitialTemperature = *overrides.InitialTemperature
		rc.Sources["fix.initial_temperature"] = SourceCLI
	}
	if overrides.TemperatureIncrement != nil {
		c.Fix.TemperatureIncrement = *overrides.TemperatureIncrement
		rc.Sources["fix.temperature_increment"] = SourceCLI
	}
	if overrides.ForceSuccess != nil {
		c.Fix.ForceSuccess = *overrides.ForceSuccess
		rc.Sources["fix.force_success"] = SourceCLI
	}
	if overrides.Model != nil {
		c.LLM.Model = *overrides.Model
		rc.Sources["llm.model"] = SourceCLI
	}
	if overrides.BaseURL != nil {
		c.LLM.BaseURL = *overrides.BaseURL
		rc.Sources["llm.base_url"] = SourceCLI
	}
	if overrides.Python != nil {
		c.Pytest.Python = *overrides.Python
		rc.Sources["pytest.python"] = SourceCLI
	}
	if overrides.TimeoutSeconds != nil {
		c.Pytest.TimeoutSeconds = *overrides.TimeoutSeconds
		rc.Sources["pytest.timeout_seconds"] = SourceCLI
	}
	if overrides.BaseBranch != nil {
		c.Git.BaseBranch = *overrides.BaseBranch
		rc.Sources["git.base_branch"] = SourceCLI
	}
	if overrides.CreatePR != nil {
		c.Git.CreatePR = *overrides.CreatePR
		rc.Sources["git.create_pr"] = SourceCLI
	}
}

// --- Helpers ---

// mergeString overwrites the target only if value is non-empty. An empty
// string in the file means "not set in file", so it does not override the
// default.
func mergeString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != "" {
		*target = value
		sources[path] = source
	}
}

// mergeInt overwrites the target only if value is non-zero.
func mergeInt(target *int, value int, path string, sources map[string]ConfigSource) {
	if value != 0 {
		*target = value
		sources[path] = SourceFile
	}
}

// mergeFloat overwrites the target only if value is non-zero.
func mergeFloat(target *float64, value float64, path string, sources map[string]ConfigSource) {
	if value != 0 {
		*target = value
		sources[path] = SourceFile
	}
}
