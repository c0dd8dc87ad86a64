package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
)

func TestExtractJSONPlain(t *testing.T) {
	v, err := ExtractJSON(`{"question": "What is a heap?"}`)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "What is a heap?", m["question"])
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here is the quiz item:\n```json\n{\"correct\": \"B\"}\n```\nHope this helps!"

	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"correct": "B"}, v)
}

func TestExtractJSONSurroundedByProse(t *testing.T) {
	raw := `Sure! The answer is {"score": 0.8, "feedback": "close"} as requested.`

	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, 0.8, m["score"])
}

func TestExtractJSONArray(t *testing.T) {
	v, err := ExtractJSON(`Results: ["a", "b"]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestExtractJSONFixesTrailingCommas(t *testing.T) {
	raw := `{"options": {"A": "one", "B": "two",}, "correct": "A",}`

	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, "A", m["correct"])
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := ExtractJSON("I cannot produce a quiz from this material.")
	assert.ErrorIs(t, err, domain.ErrParseFailed)
}

func TestExtractJSONUnfixable(t *testing.T) {
	_, err := ExtractJSON(`{"question": "unterminated`)
	assert.ErrorIs(t, err, domain.ErrParseFailed)
}

type scriptedClient struct {
	text string
	err  error
}

func (c scriptedClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.text, c.err
}

func (c scriptedClient) GenerateJSON(ctx context.Context, prompt string) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	return ExtractJSON(c.text)
}

func TestCompleteText(t *testing.T) {
	out, err := Complete(context.Background(), scriptedClient{text: "a plain answer"}, "p", false)
	require.NoError(t, err)
	assert.Equal(t, OutputText, out.Kind)
	assert.Equal(t, "a plain answer", out.Text)
}

func TestCompleteDecodesFencedJSON(t *testing.T) {
	raw := "```json\n{\"classification\": \"correct\", \"similarity_score\": 0.95}\n```"
	out, err := Complete(context.Background(), scriptedClient{text: raw}, "p", true)
	require.NoError(t, err)
	require.Equal(t, OutputJSON, out.Kind)

	var graded struct {
		Classification string  `json:"classification"`
		Score          float64 `json:"similarity_score"`
	}
	require.NoError(t, out.Decode(&graded))
	assert.Equal(t, "correct", graded.Classification)
	assert.Equal(t, 0.95, graded.Score)
}

func TestCompleteDegradesToRaw(t *testing.T) {
	out, err := Complete(context.Background(), scriptedClient{text: "no json here at all"}, "p", true)
	require.NoError(t, err, "an unparsable completion is not a generation failure")
	assert.Equal(t, OutputRaw, out.Kind)
	assert.Equal(t, "no json here at all", out.Raw)

	var v map[string]any
	assert.ErrorIs(t, out.Decode(&v), domain.ErrParseFailed)
}

func TestCompletePropagatesGenerationError(t *testing.T) {
	boom := fmt.Errorf("%w: overloaded", domain.ErrTransient)
	_, err := Complete(context.Background(), scriptedClient{err: boom}, "p", true)
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("boom")))
	assert.False(t, Retryable(fmt.Errorf("%w: bad json", domain.ErrParseFailed)))
	assert.False(t, Retryable(fmt.Errorf("%w: missing field", domain.ErrBadInput)))
	assert.True(t, Retryable(fmt.Errorf("%w: overloaded", domain.ErrTransient)))

	assert.True(t, Retryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, Retryable(&openai.APIError{HTTPStatusCode: 503}))
	assert.True(t, Retryable(&openai.APIError{HTTPStatusCode: 408}))
	assert.False(t, Retryable(&openai.APIError{HTTPStatusCode: 400}))
	assert.False(t, Retryable(&openai.APIError{HTTPStatusCode: 401}))
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	cfg := config.RetryConfig{MaxAttempts: 5, InitialInterval: time.Millisecond}

	calls := 0
	_, err := WithRetry(context.Background(), cfg, func() (string, error) {
		calls++
		return "", fmt.Errorf("%w: malformed", domain.ErrParseFailed)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestWithRetryRetriesTransient(t *testing.T) {
	cfg := config.RetryConfig{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	calls := 0
	v, err := WithRetry(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("%w: flaky", domain.ErrTransient)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	calls := 0
	_, err := WithRetry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, fmt.Errorf("%w: still down", domain.ErrTransient)
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, 3, calls)
}
