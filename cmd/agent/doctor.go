package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"taskpilot/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Try to load config, some checks work without it.
	cfg, cfgErr := config.Load(cfgPath)
	if cfg == nil {
		// Validation failed; probe with defaults plus env so the
		// individual checks can still point at what is missing.
		cfg = config.Defaults()
		config.ApplyEnvOverrides(cfg)
	}

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "OpenAI API key", Fn: checkOpenAIKey},
		{Name: "OpenAI connectivity", Fn: checkOpenAIConnectivity},
		{Name: "Asana access token", Fn: checkAsanaToken},
		{Name: "Asana project", Fn: checkAsanaProject},
		{Name: "Network", Fn: checkNetwork},
	}

	fmt.Println("taskpilot doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above to ensure taskpilot runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\ntaskpilot should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! taskpilot is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file exists and parses correctly.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using environment only", cfgPath),
			}
		}

		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and file permissions",
			}
		}

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func checkOpenAIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if cfg.LLM.Provider.APIKey == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: "no OpenAI API key configured",
			Fix:     "Set OPENAI_API_KEY or llm.provider.api_key in config.yaml",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API key configured for model %s", cfg.LLM.Provider.Model),
	}
}

func checkOpenAIConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if cfg.LLM.Provider.APIKey == "" {
		return CheckResult{Status: StatusWarn, Message: "skipped, no API key configured"}
	}

	endpoint := strings.TrimRight(cfg.LLM.Provider.BaseURL, "/") + "/models"
	status, latency, err := probeEndpoint(endpoint, cfg.LLM.Provider.APIKey)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and llm.provider.base_url",
		}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("endpoint rejected the API key (HTTP %d)", status),
			Fix:     "Verify OPENAI_API_KEY is valid",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("endpoint reachable (latency: %dms)", latency.Milliseconds()),
	}
}

func checkAsanaToken(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if cfg.Asana.AccessToken == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: "no Asana access token configured",
			Fix:     "Set ASANA_ACCESS_TOKEN or asana.access_token in config.yaml",
		}
	}

	endpoint := strings.TrimRight(cfg.Asana.BaseURL, "/") + "/users/me"
	status, latency, err := probeEndpoint(endpoint, cfg.Asana.AccessToken)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and asana.base_url",
		}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("Asana rejected the token (HTTP %d)", status),
			Fix:     "Verify ASANA_ACCESS_TOKEN is a valid personal access token",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("token accepted (latency: %dms)", latency.Milliseconds()),
	}
}

func checkAsanaProject(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}

	id := os.Getenv("ASANA_PROJECT_ID")
	if id == "" {
		id = cfg.Asana.ProjectID
	}
	if id == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no project configured; task creation will fail until one is set",
			Fix:     "Set ASANA_PROJECT_ID or asana.project_id in config.yaml",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("tasks will be created in project %s", id),
	}
}

func checkNetwork(_ *config.Config) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resolver net.Resolver
	if _, err := resolver.LookupHost(ctx, "api.openai.com"); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("DNS resolution failed: %v", err),
			Fix:     "Check your network connection and DNS settings",
		}
	}
	return CheckResult{Status: StatusPass, Message: "DNS resolution working"}
}

// probeEndpoint issues an authenticated GET and reports status and latency.
func probeEndpoint(url, token string) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, latency, nil
}
