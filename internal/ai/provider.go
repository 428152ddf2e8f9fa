package ai

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion. Zero values leave the provider default.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Provider produces one reply for an ordered message list.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// StatusError is a non-2xx answer from a provider's HTTP API.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}
