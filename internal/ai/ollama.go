package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	client  *resty.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(90 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	reqBody := ollamaChatReq{
		Model:    p.Model,
		Messages: messages,
		Stream:   false,
	}
	if opts.Temperature != 0 || opts.MaxTokens != 0 {
		reqBody.Options = map[string]any{}
		if opts.Temperature != 0 {
			reqBody.Options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens != 0 {
			reqBody.Options["num_predict"] = opts.MaxTokens
		}
	}

	var decoded ollamaChatResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&decoded).
		Post("/api/chat")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &StatusError{Provider: "ollama", Status: resp.StatusCode(), Body: truncate(resp.String(), 4*1024)}
	}
	if decoded.Error != "" {
		return "", errors.New("ollama: " + decoded.Error)
	}
	return decoded.Message.Content, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
