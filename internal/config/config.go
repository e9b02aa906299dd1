package config

// Config is the top-level configuration structure mapping to testmend.toml.
type Config struct {
	Fix    FixConfig    `toml:"fix"`
	LLM    LLMConfig    `toml:"llm"`
	Pytest PytestConfig `toml:"pytest"`
	Git    GitConfig    `toml:"git"`
}

// FixConfig maps to the [fix] section in testmend.toml.
type FixConfig struct {
	// MaxRetries is the number of fix attempts per failing test.
	MaxRetries int `toml:"max_retries"`

	// InitialTemperature is the sampling temperature of the first attempt.
	InitialTemperature float64 `toml:"initial_temperature"`

	// TemperatureIncrement is added to the temperature after each failed
	// attempt.
	TemperatureIncrement float64 `toml:"temperature_increment"`

	// ForceSuccess short-circuits attempts as successful without invoking
	// the model. Used for pipeline dry runs.
	ForceSuccess bool `toml:"force_success"`
}

// LLMConfig maps to the [llm] section in testmend.toml.
type LLMConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key. The key
	// itself never lives in the config file.
	APIKeyEnv string `toml:"api_key_env"`
}

// PytestConfig maps to the [pytest] section in testmend.toml.
type PytestConfig struct {
	// Python is the interpreter binary used for pytest and syntax checks.
	Python string `toml:"python"`

	// TimeoutSeconds bounds a single pytest invocation.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// GitConfig maps to the [git] section in testmend.toml.
type GitConfig struct {
	// BranchTemplate names the working branch; {date} expands to the
	// current date.
	BranchTemplate string `toml:"branch_template"`

	// BaseBranch is the ref the working branch is created from.
	BaseBranch string `toml:"base_branch"`

	// CreatePR opens a pull request after a completed session.
	CreatePR bool `toml:"create_pr"`
}
