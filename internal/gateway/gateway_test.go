package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/healthchat/internal/ai"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/docstore"
)

type recordingProvider struct {
	reply string
	err   error
	calls int
	last  []ai.Message
	opts  ai.Options
}

func (p *recordingProvider) Chat(_ context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	p.opts = opts
	return p.reply, p.err
}

func TestPredictRisk_StripsFence(t *testing.T) {
	prov := &recordingProvider{reply: "```json\n{\"diabetes_risk\":\"40%\",\"hypertension_risk\":\"20%\",\"advice\":\"x\"}\n```"}
	g := New(prov)

	got, err := g.PredictRisk(context.Background(), HealthMetrics{Age: "45", Weight: "90", BloodPressure: "140/90", HeartRate: "80"})
	require.NoError(t, err)

	assert.Equal(t, RiskAssessment{DiabetesRisk: "40%", HypertensionRisk: "20%", Advice: "x"}, got)
	require.Len(t, prov.last, 2)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Contains(t, prov.last[1].Content, "Blood Pressure: 140/90")
	assert.Contains(t, prov.last[1].Content, "in Arabic")
	assert.Equal(t, float32(0.7), prov.opts.Temperature)
}

func TestPredictRisk_AdviceLanguage(t *testing.T) {
	prov := &recordingProvider{reply: `{"diabetes_risk":"1%","hypertension_risk":"2%","advice":"walk"}`}
	_, err := New(prov, WithAdviceLanguage("English")).PredictRisk(context.Background(), HealthMetrics{})
	require.NoError(t, err)
	assert.Contains(t, prov.last[1].Content, "in English")
}

func TestPredictRisk_Malformed(t *testing.T) {
	for name, reply := range map[string]string{
		"prose":         "I cannot predict that.",
		"missing field": "```json\n{\"diabetes_risk\":\"40%\",\"advice\":\"x\"}\n```",
		"non-string":    `{"diabetes_risk":40,"hypertension_risk":"20%","advice":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(&recordingProvider{reply: reply}).PredictRisk(context.Background(), HealthMetrics{})
			var mre *MalformedReplyError
			require.True(t, errors.As(err, &mre), "got %v", err)
			assert.Equal(t, reply, mre.Raw)
		})
	}
}

func TestPredictRisk_ProviderFailure(t *testing.T) {
	cause := &ai.StatusError{Provider: "openai", Status: 503}
	prov := &recordingProvider{err: cause}

	_, err := New(prov).PredictRisk(context.Background(), HealthMetrics{})

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, prov.calls, "no retries")
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":  `{"a":1}`,
		"```\n{\"a\":1}\n```":      `{"a":1}`,
		"```json{\"a\":1}```":      `{"a":1}`,
		"  {\"a\":1}  ":            `{"a":1}`,
		"```JSON \r\n{\"a\":1}\r\n```": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripCodeFence(in), "input %q", in)
	}
}

func TestHealthMetrics_Decode(t *testing.T) {
	var m HealthMetrics
	require.NoError(t, json.Unmarshal([]byte(`{"age":45,"weight":"82.5","bp":"120/80","heartRate":null}`), &m))

	assert.Equal(t, Reading("45"), m.Age)
	assert.Equal(t, Reading("82.5"), m.Weight)
	assert.Equal(t, []string{"heartRate"}, m.Missing())

	assert.Error(t, json.Unmarshal([]byte(`{"age":[1]}`), &m))
}

func TestReply_MapsRolesAndContext(t *testing.T) {
	docs := docstore.NewStatic()
	docs.Put(docstore.CollectionUsers, "u1", map[string]any{"name": "Sara"})
	prov := &recordingProvider{reply: "  **Drink water**  \n"}
	g := New(prov, WithDocuments(docs))

	log := chatlog.Log{
		{ID: "1", Sender: chatlog.SenderUser, Text: "I have a headache"},
		{ID: "2", Sender: chatlog.SenderAssistant, Text: "Since when?"},
		{ID: "3", Sender: chatlog.SenderUser, Text: "Two days"},
	}
	reply, err := g.Reply(context.Background(), "u1", log)
	require.NoError(t, err)

	assert.Equal(t, "**Drink water**", reply)
	require.Len(t, prov.last, 4)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Contains(t, prov.last[0].Content, "\"name\": \"Sara\"")
	assert.Contains(t, prov.last[0].Content, "No lifestyle data available")
	assert.Equal(t, []string{ai.RoleUser, ai.RoleAssistant, ai.RoleUser},
		[]string{prov.last[1].Role, prov.last[2].Role, prov.last[3].Role})
	assert.Equal(t, "Two days", prov.last[3].Content)
	assert.Equal(t, ai.Options{Temperature: 0.5, MaxTokens: 500}, prov.opts)
}

func TestReply_WithoutDocuments(t *testing.T) {
	prov := &recordingProvider{reply: "hi"}
	_, err := New(prov).Reply(context.Background(), "u1", chatlog.Log{{Sender: chatlog.SenderUser, Text: "hello"}})
	require.NoError(t, err)
	assert.False(t, strings.Contains(prov.last[0].Content, "User Data Context"))
}

func TestReply_NoDocumentsForUser(t *testing.T) {
	prov := &recordingProvider{reply: "hi"}
	g := New(prov, WithDocuments(docstore.NewStatic()))
	_, err := g.Reply(context.Background(), "stranger", chatlog.Log{{Sender: chatlog.SenderUser, Text: "hello"}})
	require.NoError(t, err)
	assert.NotContains(t, prov.last[0].Content, "User Data Context")
	assert.Equal(t, chatSystemPrompt, prov.last[0].Content)
}

type brokenDocs struct{}

func (brokenDocs) FetchDocumentByID(context.Context, string, string) (map[string]any, error) {
	return nil, errors.New("permission denied")
}

func TestReply_Failures(t *testing.T) {
	log := chatlog.Log{{Sender: chatlog.SenderUser, Text: "hello"}}

	prov := &recordingProvider{err: errors.New("dial tcp: timeout")}
	_, err := New(prov).Reply(context.Background(), "u1", log)
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "chat", ge.Op)

	prov = &recordingProvider{reply: "unused"}
	_, err = New(prov, WithDocuments(brokenDocs{})).Reply(context.Background(), "u1", log)
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "load user context", ge.Op)
	assert.Zero(t, prov.calls)
}
