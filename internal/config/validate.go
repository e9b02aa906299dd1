package config

import (
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/BurntSushi/toml"
)

// ValidationSeverity indicates whether a validation issue is an error or
// warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration
	// is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the
	// configuration works but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "fix.max_retries"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown key
// detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was
//     loaded)
//
// Returns validation results. Check HasErrors() to determine if the config
// is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateFix(vr, &cfg.Fix)
	validateLLM(vr, &cfg.LLM)
	validatePytest(vr, &cfg.Pytest)
	validateGit(vr, &cfg.Git)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateFix checks the [fix] section for errors and warnings.
func validateFix(vr *ValidationResult, f *FixConfig) {
	if f.MaxRetries <= 0 {
		addError(vr, "fix.max_retries", "must be a positive integer")
	}
	if f.InitialTemperature < 0 || f.InitialTemperature > 1 {
		addError(vr, "fix.initial_temperature", "must be between 0 and 1")
	}
	if f.TemperatureIncrement <= 0 {
		addError(vr, "fix.temperature_increment", "must be positive")
	}

	// The last retry's temperature may climb past what the API accepts.
	if f.MaxRetries > 0 && f.TemperatureIncrement > 0 {
		ceiling := f.InitialTemperature + f.TemperatureIncrement*float64(f.MaxRetries-1)
		if ceiling > 1 {
			addWarning(vr, "fix.temperature_increment",
				fmt.Sprintf("final retry temperature %.2f exceeds 1.0 and will be rejected", ceiling))
		}
	}

	if f.ForceSuccess {
		addWarning(vr, "fix.force_success", "attempts are short-circuited; no fixes will be generated")
	}
}

// validateLLM checks the [llm] section.
func validateLLM(vr *ValidationResult, l *LLMConfig) {
	if l.Model == "" {
		addError(vr, "llm.model", "must not be empty")
	}
	if l.APIKeyEnv == "" {
		addError(vr, "llm.api_key_env", "must not be empty")
	}
	if l.BaseURL != "" {
		u, err := url.Parse(l.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			addError(vr, "llm.base_url",
				fmt.Sprintf("invalid URL %q; must include scheme and host", l.BaseURL))
		}
	}
}

// validatePytest checks the [pytest] section.
func validatePytest(vr *ValidationResult, p *PytestConfig) {
	if p.TimeoutSeconds < 0 {
		addError(vr, "pytest.timeout_seconds", "must not be negative")
	}
	if p.Python != "" {
		if _, err := exec.LookPath(p.Python); err != nil {
			addWarning(vr, "pytest.python",
				fmt.Sprintf("binary %q not found on PATH", p.Python))
		}
	}
}

// validateGit checks the [git] section.
func validateGit(vr *ValidationResult, g *GitConfig) {
	if g.CreatePR && g.BaseBranch == "" {
		addError(vr, "git.base_branch", "must not be empty when create_pr is enabled")
	}
	if g.BranchTemplate != "" && !strings.Contains(g.BranchTemplate, "{date}") {
		addWarning(vr, "git.branch_template",
			"template has no {date} placeholder; repeated runs will collide on the same branch name")
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config
// struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
