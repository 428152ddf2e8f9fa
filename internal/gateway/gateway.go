// Package gateway turns a conversation or a health-metrics record into one
// call to the remote model and one reply.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/suPer8Hu/healthchat/internal/ai"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/docstore"
	"go.uber.org/zap"
)

const chatSystemPrompt = `You are a professional doctor providing medical advice. Use the provided user data for context to give personalized responses.

- For medical questions, provide detailed, accurate advice.
- For data requests (e.g. "my data", "show my information"), provide the user's data in a structured format.
- Politely decline non-medical questions, stating that you can only provide medical advice. Do not treat them as errors.
- Reply in the language the user writes in.

Keep every response professional, friendly, and formatted in Markdown.`

var (
	chatOptions    = ai.Options{Temperature: 0.5, MaxTokens: 500}
	predictOptions = ai.Options{Temperature: 0.7}
)

type Gateway struct {
	provider       ai.Provider
	docs           docstore.Fetcher
	adviceLanguage string
	logger         *zap.Logger
}

type Option func(*Gateway)

// WithDocuments enables user-context enrichment for chat replies.
func WithDocuments(f docstore.Fetcher) Option {
	return func(g *Gateway) { g.docs = f }
}

func WithAdviceLanguage(lang string) Option {
	return func(g *Gateway) {
		if lang != "" {
			g.adviceLanguage = lang
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func New(provider ai.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		provider:       provider,
		adviceLanguage: "Arabic",
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Reply generates the assistant's next message for log. The user's context
// documents are fetched fresh when a fetcher is configured and userID is set.
func (g *Gateway) Reply(ctx context.Context, userID string, log chatlog.Log) (string, error) {
	var uc *docstore.UserContext
	if g.docs != nil && userID != "" {
		loaded, err := docstore.LoadUserContext(ctx, g.docs, userID)
		if err != nil {
			return "", &GatewayError{Op: "load user context", Err: err}
		}
		uc = &loaded
	}

	msgs := BuildChatMessages(log, uc)
	reply, err := g.provider.Chat(ctx, msgs, chatOptions)
	if err != nil {
		g.logger.Warn("chat completion failed", zap.String("user_id", userID), zap.Int("turns", len(log)), zap.Error(err))
		return "", &GatewayError{Op: "chat", Err: err}
	}
	return strings.TrimSpace(reply), nil
}

// PredictRisk asks for a structured diabetes / hypertension risk estimate.
func (g *Gateway) PredictRisk(ctx context.Context, m HealthMetrics) (RiskAssessment, error) {
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: predictSystemPrompt},
		{Role: ai.RoleUser, Content: predictPrompt(m, g.adviceLanguage)},
	}
	raw, err := g.provider.Chat(ctx, msgs, predictOptions)
	if err != nil {
		g.logger.Warn("prediction failed", zap.Error(err))
		return RiskAssessment{}, &GatewayError{Op: "predict", Err: err}
	}
	ra, err := ParseRiskAssessment(raw)
	if err != nil {
		g.logger.Warn("prediction reply unparseable", zap.String("raw", raw), zap.Error(err))
		return RiskAssessment{}, err
	}
	return ra, nil
}

// BuildChatMessages prepends the system instruction (with the rendered user
// context, if any document exists) and maps each log entry to a provider role.
func BuildChatMessages(log chatlog.Log, uc *docstore.UserContext) []ai.Message {
	system := chatSystemPrompt
	if uc != nil && !uc.Empty() {
		system += "\n\nUser Data Context:\n" + RenderUserContext(*uc)
	}
	out := make([]ai.Message, 0, len(log)+1)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	for _, m := range log {
		role := ai.RoleUser
		if m.Sender == chatlog.SenderAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: m.Text})
	}
	return out
}

// RenderUserContext formats the documents as Markdown sections with JSON
// code blocks.
func RenderUserContext(uc docstore.UserContext) string {
	var b strings.Builder
	section := func(title string, doc map[string]any, missing string) {
		b.WriteString("### " + title + ":\n")
		if doc == nil {
			b.WriteString(missing + "\n\n")
			return
		}
		enc, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			b.WriteString(missing + "\n\n")
			return
		}
		b.WriteString("```json\n")
		b.Write(enc)
		b.WriteString("\n```\n\n")
	}
	section("User Profile", uc.Profile, "No user data available")
	section("Lifestyle Data", uc.Lifestyle, "No lifestyle data available")
	section("Medical History", uc.MedicalHistory, "No medical history available")
	return strings.TrimRight(b.String(), "\n")
}
