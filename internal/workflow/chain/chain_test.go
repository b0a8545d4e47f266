package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/domain/entity"
	wfmodel "natal-book-ai/internal/workflow/model"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	apperrors "natal-book-ai/pkg/errors"
)

func TestCompletionChain_Complete(t *testing.T) {
	fm := &fakeChatModel{generate: reply("  Your nature is quiet.  ")}
	factory := &fakeFactory{model: fm}
	limiter := &countingLimiter{}
	c := NewCompletionChain(factory, limiter)

	out, err := c.Complete(context.Background(), &wfmodel.CompletionInput{
		Workflow:    "section_write",
		Prompt:      "write",
		Provider:    "openai",
		Temperature: wfmodel.Float32Ptr(0.75),
		MaxTokens:   wfmodel.IntPtr(200),
	})
	require.NoError(t, err)
	assert.Equal(t, "Your nature is quiet.", out)
	assert.Equal(t, []string{"write"}, fm.prompts)
	assert.Equal(t, []string{"openai"}, factory.names)
	assert.Equal(t, 1, limiter.waits)
	assert.Equal(t, []int{2}, fm.optCount)
}

func TestCompletionChain_ResponseFormatFallback(t *testing.T) {
	fm := &fakeChatModel{generate: func(call int, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
		if call == 0 {
			return nil, errors.New("Invalid parameter: 'response_format' is not supported with this model")
		}
		return schema.AssistantMessage(`{"day": 1}`, nil), nil
	}}
	c := NewCompletionChain(&fakeFactory{model: fm}, nil)

	out, err := c.Complete(context.Background(), &wfmodel.CompletionInput{
		Workflow:       "data_extraction",
		Prompt:         "extract",
		ResponseFormat: wfmodel.ResponseFormatJSONObject,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"day": 1}`, out)
	require.Len(t, fm.optCount, 2)
	assert.Equal(t, fm.optCount[0]-1, fm.optCount[1])
}

func TestCompletionChain_Failures(t *testing.T) {
	in := &wfmodel.CompletionInput{Workflow: "summary", Prompt: "p"}

	t.Run("rate limited", func(t *testing.T) {
		fm := &fakeChatModel{generate: func(int, []*schema.Message, ...model.Option) (*schema.Message, error) {
			return nil, errors.New("status code: 429, rate limit exceeded")
		}}
		limiter := &countingLimiter{}
		_, err := NewCompletionChain(&fakeFactory{model: fm}, limiter).Complete(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMCallFailed))
		assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMRateLimited))
		assert.Equal(t, 1, limiter.pauses)
	})

	t.Run("empty content", func(t *testing.T) {
		fm := &fakeChatModel{generate: reply("   ")}
		_, err := NewCompletionChain(&fakeFactory{model: fm}, nil).Complete(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMMalformedResponse))
	})

	t.Run("factory error", func(t *testing.T) {
		_, err := NewCompletionChain(&fakeFactory{err: errors.New("llm provider not configured: x")}, nil).Complete(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMCallFailed))
	})

	t.Run("limiter cancelled", func(t *testing.T) {
		fm := &fakeChatModel{generate: reply("x")}
		limiter := &countingLimiter{err: context.Canceled}
		_, err := NewCompletionChain(&fakeFactory{model: fm}, limiter).Complete(context.Background(), in)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, fm.prompts)
	})

	t.Run("empty prompt", func(t *testing.T) {
		_, err := NewCompletionChain(&fakeFactory{}, nil).Complete(context.Background(), &wfmodel.CompletionInput{})
		assert.Error(t, err)
	})
}

func TestParseStructure(t *testing.T) {
	sections, err := ParseStructure("```json\n" + `{"chapters": [
		{"theme_title": " The Quiet Engine ", "summary": "Drive.", "keywords": ["focus", " ", "grit"]},
		{"theme_title": "", "summary": "dropped"},
		{"theme_title": "Bonds and Mirrors"}
	]}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, []entity.SectionSpec{
		{Title: "The Quiet Engine", Summary: "Drive.", Keywords: []string{"focus", "grit"}},
		{Title: "Bonds and Mirrors", Keywords: []string{}},
	}, sections)

	for _, raw := range []string{`{"chapters": []}`, `{"other": 1}`, `not json`} {
		_, err := ParseStructure(raw)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeStructureGenerationFailed), raw)
	}
}

func TestStructureChain_Invoke(t *testing.T) {
	payload, err := entity.ParseChartPayload([]byte(`{"sun": "Vir"}`))
	require.NoError(t, err)
	compiler, err := workflowprompt.NewCompiler()
	require.NoError(t, err)

	fm := &fakeChatModel{generate: reply(`{"chapters":[{"theme_title":"One","summary":"s","keywords":["k"]},{"theme_title":"Two","summary":"s","keywords":[]}]}`)}
	c := NewStructureChain(compiler, NewCompletionChain(&fakeFactory{model: fm}, nil))

	out, err := c.Invoke(context.Background(), &wfmodel.StructureGenerateInput{
		Payload:     payload,
		TierLabel:   "Core Dynamics (~15k words)",
		Temperature: wfmodel.Float32Ptr(0.2),
	})
	require.NoError(t, err)
	require.Len(t, out.Sections, 2)
	assert.Equal(t, "One", out.Sections[0].Title)
	require.Len(t, fm.prompts, 1)
	assert.Contains(t, fm.prompts[0], "BOOK SCOPE: Core Dynamics (~15k words)")
	assert.Contains(t, fm.prompts[0], `"sun": "Vir"`)
}

func TestStructureChain_EmptyResultFails(t *testing.T) {
	payload := entity.NewChartPayload()
	compiler, err := workflowprompt.NewCompiler()
	require.NoError(t, err)

	fm := &fakeChatModel{generate: reply(`{"chapters":[]}`)}
	c := NewStructureChain(compiler, NewCompletionChain(&fakeFactory{model: fm}, nil))

	_, err = c.Invoke(context.Background(), &wfmodel.StructureGenerateInput{Payload: payload, TierLabel: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStructureGenerationFailed))
}
