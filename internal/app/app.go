// Package app wires the pieces shared by the relay and the worker.
package app

import (
	"context"
	"fmt"

	"github.com/suPer8Hu/healthchat/internal/ai"
	"github.com/suPer8Hu/healthchat/internal/config"
	"github.com/suPer8Hu/healthchat/internal/docstore"
	"github.com/suPer8Hu/healthchat/internal/gateway"
	"go.uber.org/zap"
)

// NewRegistry registers every provider the relay knows about, defaulting to
// cfg.AIProvider.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry(cfg.AIProvider)
	reg.Register("openai", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, model)
	})
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	return reg
}

// NewGateway builds the gateway for the configured provider. It refuses to
// start when that provider needs an API key and none is set. The returned
// cleanup closes the document store, if one was opened.
func NewGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (*gateway.Gateway, func(), error) {
	logger.Info("ai provider",
		zap.String("provider", cfg.AIProvider),
		zap.Bool("api_key_present", cfg.APIKeyPresent()),
	)
	if !cfg.APIKeyPresent() {
		return nil, nil, fmt.Errorf("no API key configured for AI_PROVIDER=%q", cfg.AIProvider)
	}

	provider, err := NewRegistry(cfg).Get(ctx, "", "")
	if err != nil {
		return nil, nil, err
	}

	opts := []gateway.Option{
		gateway.WithAdviceLanguage(cfg.AdviceLanguage),
		gateway.WithLogger(logger),
	}
	cleanup := func() {}
	if cfg.FirestoreProjectID != "" {
		fs, err := docstore.NewFirestore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore: %w", err)
		}
		opts = append(opts, gateway.WithDocuments(fs))
		cleanup = func() { _ = fs.Close() }
	}
	return gateway.New(provider, opts...), cleanup, nil
}
