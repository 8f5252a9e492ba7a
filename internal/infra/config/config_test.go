package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearCredEnv blanks the credential env vars so host settings cannot
// leak into Load/ApplyEnvOverrides assertions.
func clearCredEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"ASANA_ACCESS_TOKEN", "ASANA_PROJECT_ID", "ASANA_BASE_URL",
		"TASKPILOT_CONFIG_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.LLM.Provider.Model != "gpt-4" {
		t.Errorf("Model = %q, want %q", cfg.LLM.Provider.Model, "gpt-4")
	}
	if cfg.Asana.BaseURL != "https://app.asana.com/api/1.0" {
		t.Errorf("Asana.BaseURL = %q", cfg.Asana.BaseURL)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if !cfg.Agent.ProbeEnabled {
		t.Error("ProbeEnabled should default to true")
	}
}

func TestLoadNonExistentUsesEnv(t *testing.T) {
	clearCredEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ASANA_ACCESS_TOKEN", "asana-test")

	cfg, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", cfg.LLM.Provider.APIKey)
	}
	if cfg.Asana.AccessToken != "asana-test" {
		t.Errorf("AccessToken = %q, want asana-test", cfg.Asana.AccessToken)
	}
}

func TestLoadNonExistentMissingCreds(t *testing.T) {
	clearCredEnv(t)

	_, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err == nil {
		t.Fatal("expected validation error without credentials")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key: %v", err)
	}
	if !strings.Contains(err.Error(), "access_token") {
		t.Errorf("error should mention access_token: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	clearCredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
agent:
  timeout: 90s
  system_prompt: "test bot"
llm:
  provider:
    base_url: "https://api.openai.com/v1"
    api_key: "test-key"
    model: "gpt-4o"
asana:
  access_token: "asana-token"
  project_id: "1205"
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Agent.Timeout)
	}
	if cfg.LLM.Provider.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", cfg.LLM.Provider.Model)
	}
	if cfg.Asana.ProjectID != "1205" {
		t.Errorf("ProjectID = %q, want 1205", cfg.Asana.ProjectID)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	clearCredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider:
    api_key: "file-key"
    model: "gpt-4o"
asana:
  access_token: "file-token"
  project_id: "1205"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENAI_MODEL", "gpt-4-turbo")
	t.Setenv("ASANA_PROJECT_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider.Model != "gpt-4-turbo" {
		t.Errorf("Model = %q, want env value gpt-4-turbo", cfg.LLM.Provider.Model)
	}
	if cfg.Asana.ProjectID != "42" {
		t.Errorf("ProjectID = %q, want env value 42", cfg.Asana.ProjectID)
	}
	// Values with no override keep what the file said.
	if cfg.LLM.Provider.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cfg.LLM.Provider.APIKey)
	}
	if cfg.Asana.AccessToken != "file-token" {
		t.Errorf("AccessToken = %q, want file-token", cfg.Asana.AccessToken)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	clearCredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0666); err != nil {
		t.Fatal(err)
	}
	// WriteFile's mode is subject to the umask; force 0666 regardless.
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "insecure permissions") {
		t.Errorf("expected permissions error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearCredEnv(t)
	t.Setenv("OPENAI_MODEL", "gpt-4-turbo")
	t.Setenv("ASANA_PROJECT_ID", "42")
	t.Setenv("TASKPILOT_LOGGER_LEVEL", "debug")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.LLM.Provider.Model != "gpt-4-turbo" {
		t.Errorf("Model = %q, want gpt-4-turbo", cfg.LLM.Provider.Model)
	}
	if cfg.Asana.ProjectID != "42" {
		t.Errorf("ProjectID = %q, want 42", cfg.Asana.ProjectID)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "sk-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptValue(encrypted, "wrong-pass")
	if err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	clearCredEnv(t)
	passphrase := "test-config-key"

	encKey, err := EncryptValue("sk-secret123456", passphrase)
	if err != nil {
		t.Fatal(err)
	}
	encToken, err := EncryptValue("asana-secret", passphrase)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "llm:\n  provider:\n    api_key: \"enc:" + encKey + "\"\nasana:\n  access_token: \"enc:" + encToken + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKPILOT_CONFIG_KEY", passphrase)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider.APIKey != "sk-secret123456" {
		t.Errorf("APIKey not decrypted: %q", cfg.LLM.Provider.APIKey)
	}
	if cfg.Asana.AccessToken != "asana-secret" {
		t.Errorf("AccessToken not decrypted: %q", cfg.Asana.AccessToken)
	}
}
