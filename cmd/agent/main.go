package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"taskpilot/internal/adapter/asana"
	"taskpilot/internal/adapter/llm"
	"taskpilot/internal/adapter/tool"
	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/infra/logger"
	"taskpilot/internal/infra/tracer"
	"taskpilot/internal/usecase"
)

func main() {
	// Handle help flag first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'taskpilot --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`taskpilot - Conversational assistant for creating Asana tasks

USAGE:
    taskpilot [COMMAND] [FLAGS]

COMMANDS:
    doctor      Run health checks on your setup

    (no command) - Start an interactive chat session

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml (optional)
    Environment: OPENAI_API_KEY, ASANA_ACCESS_TOKEN, ASANA_PROJECT_ID
                 TASKPILOT_* variables override config

EXAMPLES:
    taskpilot                    # Chat with config.yaml or environment
    taskpilot --config /path/to/config.yaml
    taskpilot doctor             # Check credentials and connectivity`)
}

func run() error {
	// 1. Config
	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. LLM provider
	var provider domain.LLMProvider = llm.NewOpenAIProvider(cfg.LLM.Provider, log)
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}

	// 4. Asana client and tools
	client := asana.NewClient(cfg.Asana, log)
	registry := tool.NewRegistry(log)
	taskTool := tool.NewAsanaTaskTool(client, projectIDSource(cfg), log)
	if err := registry.Register(taskTool); err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	// 5. Startup probe
	if cfg.Agent.ProbeEnabled {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Agent.Timeout)
		err := usecase.ProbeProvider(probeCtx, provider, log)
		cancel()
		if err != nil {
			return fmt.Errorf("provider probe: %w", err)
		}
	}

	// 6. Orchestrator and session
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		LLM:    provider,
		Tools:  registry,
		Logger: log,
	})

	session := usecase.NewSession()
	session.AddMessage(domain.Message{
		Role:    domain.RoleSystem,
		Content: usecase.SystemPrompt(cfg.Agent.SystemPrompt, time.Now()),
	})

	var names []string
	for _, tl := range registry.List() {
		names = append(names, tl.Name())
	}
	log.Info("starting chat session",
		"session_id", session.ID,
		"model", cfg.LLM.Provider.Model,
		"tools", names)

	return runChat(ctx, chatDeps{
		Orchestrator: orch,
		Session:      session,
		Timeout:      cfg.Agent.Timeout,
		In:           os.Stdin,
		Out:          os.Stdout,
	})
}

// projectIDSource resolves the Asana project on every call so the
// environment can change without a restart.
func projectIDSource(cfg *config.Config) func() string {
	return func() string {
		if id := os.Getenv("ASANA_PROJECT_ID"); id != "" {
			return id
		}
		return cfg.Asana.ProjectID
	}
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("TASKPILOT_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}
