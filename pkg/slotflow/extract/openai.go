package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// ModelExtractor asks a chat model to pull one field out of the
// conversation. It is the fallback tier behind the deterministic
// patterns: slower and costlier, but far more tolerant of phrasing.
type ModelExtractor struct {
	client       oai.Client
	model        string
	field        string
	description  string
	historyDepth int
}

// ModelOption is a functional option for ModelExtractor.
type ModelOption func(*ModelExtractor)

// WithHistoryDepth sets how many recent turns are shown to the model.
func WithHistoryDepth(n int) ModelOption {
	return func(m *ModelExtractor) {
		m.historyDepth = n
	}
}

// NewModelExtractor constructs a model-backed strategy for one field.
// The description tells the model what to look for ("the caller's full
// name", "a ten digit Indian mobile number").
func NewModelExtractor(apiKey, model, field, description string, opts ...ModelOption) (*ModelExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extract: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("extract: model must not be empty")
	}
	client := oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	m := &ModelExtractor{
		client:       client,
		model:        model,
		field:        field,
		description:  description,
		historyDepth: 6,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

const extractSystemPrompt = `You extract one structured field from a customer conversation.
Reply with a single JSON object and nothing else:
  {"value": <extracted value or null>, "confidence": <0.0 to 1.0>}
Return {"value": null, "confidence": 0} when the field is not present.
Never invent a value that the customer did not state.`

// Extract implements Strategy. Transport and API failures are returned
// as errors for the caller's retry policy; an unparseable or null
// reply is just "no match".
func (m *ModelExtractor) Extract(ctx context.Context, history []state.Turn, utterance string) (Result, error) {
	var sb strings.Builder
	start := len(history) - m.historyDepth
	if start < 0 {
		start = 0
	}
	for _, t := range history[start:] {
		fmt.Fprintf(&sb, "%s: %s\n", t.Speaker, t.Text)
	}
	fmt.Fprintf(&sb, "user: %s\n\nField to extract: %s (%s)", utterance, m.field, m.description)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(extractSystemPrompt),
			oai.UserMessage(sb.String()),
		},
		Temperature:         param.NewOpt(0.0),
		MaxCompletionTokens: param.NewOpt(int64(200)),
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", m.field, err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, nil
	}
	return parseModelReply(completion.Choices[0].Message.Content), nil
}

// parseModelReply tolerates code fences and leading prose around the
// JSON object the prompt asks for.
func parseModelReply(text string) Result {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "{"); i >= 0 {
		if j := strings.LastIndex(text, "}"); j > i {
			text = text[i : j+1]
		}
	}
	var reply struct {
		Value      any     `json:"value"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return Result{}
	}
	if state.IsEmptyValue(reply.Value) {
		return Result{}
	}
	if reply.Confidence < 0 {
		reply.Confidence = 0
	}
	if reply.Confidence > 1 {
		reply.Confidence = 1
	}
	return Result{Value: reply.Value, Confidence: reply.Confidence}
}
