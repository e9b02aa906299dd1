package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/testmend/testmend/internal/config"
)

// loadAndResolveConfig loads testmend.toml (explicit --config path or
// walk-up auto-detection) and resolves it against defaults, environment
// variables, and the given CLI overrides.
func loadAndResolveConfig(overrides *config.CLIOverrides) (*config.ResolvedConfig, *toml.MetaData, error) {
	var (
		fileCfg *config.Config
		meta    *toml.MetaData
		cfgPath string
	)

	if flagConfig != "" {
		// Explicit --config path provided.
		cfgPath = flagConfig
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		fileCfg = fc
		meta = &md
	} else {
		// Auto-detect testmend.toml by walking up from cwd.
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, nil, fmt.Errorf("finding config file: %w", err)
		}
		if found != "" {
			cfgPath = found
			fc, md, err := config.LoadFromFile(cfgPath)
			if err != nil {
				return nil, nil, fmt.Errorf("loading config: %w", err)
			}
			fileCfg = fc
			meta = &md
		}
	}

	resolved := config.Resolve(config.NewDefaults(), fileCfg, os.LookupEnv, overrides)
	resolved.Path = cfgPath

	return resolved, meta, nil
}

// reportValidation logs warnings and returns an error when the validation
// result contains any error-severity issue.
func reportValidation(vr *config.ValidationResult, logger *log.Logger) error {
	for _, issue := range vr.Warnings() {
		logger.Warn("config: "+issue.Message, "field", issue.Field)
	}
	if !vr.HasErrors() {
		return nil
	}
	for _, issue := range vr.Errors() {
		logger.Error("config: "+issue.Message, "field", issue.Field)
	}
	return fmt.Errorf("configuration has %d error(s); fix testmend.toml or the offending flags", len(vr.Errors()))
}
