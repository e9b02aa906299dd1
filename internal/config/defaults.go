package config

// NewDefaults returns a Config populated with all default values.
func NewDefaults() *Config {
	return &Config{
		Fix: FixConfig{
			MaxRetries:           3,
			InitialTemperature:   0.4,
			TemperatureIncrement: 0.1,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Pytest: PytestConfig{
			Python:         "python",
			TimeoutSeconds: 300,
		},
		Git: GitConfig{
			BranchTemplate: "testmend/fix-{date}",
			BaseBranch:     "main",
		},
	}
}
