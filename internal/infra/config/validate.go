package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateLLM(cfg, ve)
	validateAsana(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.Timeout <= 0 {
		ve.Add("agent.timeout must be > 0")
	}
	if cfg.Agent.SystemPrompt == "" {
		ve.Add("agent.system_prompt must not be empty")
	}
}

func validateLLM(cfg *Config, ve *ValidationError) {
	p := cfg.LLM.Provider
	if p.APIKey == "" {
		ve.Add("llm.provider.api_key is empty (set OPENAI_API_KEY)")
	}
	if p.Model == "" {
		ve.Add("llm.provider.model must not be empty")
	}
	if p.BaseURL == "" {
		ve.Add("llm.provider.base_url must not be empty")
	} else if !validURL(p.BaseURL) {
		ve.Add("llm.provider.base_url %q is not a valid http(s) URL", p.BaseURL)
	}
	if p.RespTimeout <= 0 {
		ve.Add("llm.provider.resp_timeout must be > 0")
	}

	cb := cfg.LLM.CircuitBreaker
	if cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cb.Timeout <= 0 {
			ve.Add("llm.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
}

func validateAsana(cfg *Config, ve *ValidationError) {
	if cfg.Asana.AccessToken == "" {
		ve.Add("asana.access_token is empty (set ASANA_ACCESS_TOKEN)")
	}
	if cfg.Asana.BaseURL == "" {
		ve.Add("asana.base_url must not be empty")
	} else if !validURL(cfg.Asana.BaseURL) {
		ve.Add("asana.base_url %q is not a valid http(s) URL", cfg.Asana.BaseURL)
	}
	if cfg.Asana.Timeout <= 0 {
		ve.Add("asana.timeout must be > 0")
	}
	if cfg.Asana.MaxRequestsPerMinute <= 0 {
		ve.Add("asana.max_requests_per_minute must be > 0")
	}
	// ProjectID is deliberately not required here: the task tool re-checks
	// it on every call and reports a usable error to the model.
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "json", "text", "":
	default:
		ve.Add("logger.format %q is invalid (want: json or text)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout or noop)", cfg.Tracer.Exporter)
	}
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
