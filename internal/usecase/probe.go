package usecase

import (
	"context"
	"log/slog"

	"taskpilot/internal/domain"
)

// probeMaxTokens keeps the startup probe cheap; we only care whether the
// provider answers at all.
const probeMaxTokens = 5

// ProbeProvider sends a minimal completion request to verify the provider
// is reachable and the credentials work. Called once at startup so a bad
// API key fails fast instead of on the first real user message.
func ProbeProvider(ctx context.Context, provider domain.LLMProvider, logger *slog.Logger) error {
	resp, err := provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "test"},
		},
		MaxTokens: probeMaxTokens,
	})
	if err != nil {
		return domain.WrapOp("provider probe", err)
	}

	logger.Debug("provider probe ok",
		"provider", provider.Name(),
		"model", resp.Model,
	)
	return nil
}
