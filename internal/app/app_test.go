package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/healthchat/internal/ai"
	"github.com/suPer8Hu/healthchat/internal/config"
	"go.uber.org/zap"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(config.Config{AIProvider: "ollama", OllamaModel: "llama3:latest"})
	assert.Equal(t, []string{"gemini", "ollama", "openai"}, reg.Names())

	p, err := reg.Get(context.Background(), "", "")
	require.NoError(t, err)
	ollama, ok := p.(*ai.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "llama3:latest", ollama.Model)

	_, err = reg.Get(context.Background(), "gemini", "")
	assert.Error(t, err, "gemini without a key")
}

func TestNewGateway_RefusesMissingKey(t *testing.T) {
	_, _, err := NewGateway(context.Background(), config.Config{AIProvider: "openai"}, zap.NewNop())
	assert.Error(t, err)

	gw, cleanup, err := NewGateway(context.Background(), config.Config{AIProvider: "openai", OpenAIAPIKey: "sk-test"}, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, gw)
}
