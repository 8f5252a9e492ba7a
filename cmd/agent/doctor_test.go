package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"taskpilot/internal/infra/config"
)

func TestCheckConfigFile_NotFound(t *testing.T) {
	fn := checkConfigFile("/nonexistent/path/config.yaml", nil)
	result := fn(nil)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN for missing config, got %s", result.Status)
	}
}

func TestCheckConfigFile_LoadError(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := tmpDir + "/config.yaml"
	if err := writeTestFile(t, cfgPath, "invalid: {{yaml"); err != nil {
		t.Fatal(err)
	}

	fn := checkConfigFile(cfgPath, &config.ValidationError{Errors: []string{"bad yaml"}})
	result := fn(nil)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for load error, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for load error")
	}
}

func TestCheckConfigFile_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := tmpDir + "/config.yaml"
	if err := writeTestFile(t, cfgPath, "agent:\n  system_prompt: test"); err != nil {
		t.Fatal(err)
	}

	fn := checkConfigFile(cfgPath, nil)
	result := fn(nil)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for valid config, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckOpenAIKey_NilConfig(t *testing.T) {
	result := checkOpenAIKey(nil)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for nil config, got %s", result.Status)
	}
}

func TestCheckOpenAIKey_Missing(t *testing.T) {
	cfg := config.Defaults()
	result := checkOpenAIKey(cfg)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for missing API key, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for missing API key")
	}
}

func TestCheckOpenAIKey_Present(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.Provider.APIKey = "sk-test"
	result := checkOpenAIKey(cfg)
	if result.Status != StatusPass {
		t.Errorf("expected PASS, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckOpenAIConnectivity_NoKeySkips(t *testing.T) {
	cfg := config.Defaults()
	result := checkOpenAIConnectivity(cfg)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN when no key configured, got %s", result.Status)
	}
}

func TestCheckOpenAIConnectivity_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.Provider.APIKey = "sk-test"
	cfg.LLM.Provider.BaseURL = srv.URL

	result := checkOpenAIConnectivity(cfg)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for reachable endpoint, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckOpenAIConnectivity_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.Provider.APIKey = "sk-bad"
	cfg.LLM.Provider.BaseURL = srv.URL

	result := checkOpenAIConnectivity(cfg)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for rejected key, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckAsanaToken_Missing(t *testing.T) {
	cfg := config.Defaults()
	result := checkAsanaToken(cfg)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for missing token, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for missing token")
	}
}

func TestCheckAsanaToken_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Asana.AccessToken = "pat-test"
	cfg.Asana.BaseURL = srv.URL

	result := checkAsanaToken(cfg)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for accepted token, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckAsanaProject_Unset(t *testing.T) {
	t.Setenv("ASANA_PROJECT_ID", "")
	cfg := config.Defaults()
	result := checkAsanaProject(cfg)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN for unset project, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for unset project")
	}
}

func TestCheckAsanaProject_FromEnv(t *testing.T) {
	t.Setenv("ASANA_PROJECT_ID", "1205")
	cfg := config.Defaults()
	result := checkAsanaProject(cfg)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for env project, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckAsanaProject_FromConfig(t *testing.T) {
	t.Setenv("ASANA_PROJECT_ID", "")
	cfg := config.Defaults()
	cfg.Asana.ProjectID = "4711"
	result := checkAsanaProject(cfg)
	if result.Status != StatusPass {
		t.Errorf("expected PASS for configured project, got %s: %s", result.Status, result.Message)
	}
}

// writeTestFile is a test helper that creates a file with the given content.
func writeTestFile(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0644)
}
