package book

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/domain/entity"
	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	apperrors "natal-book-ai/pkg/errors"
)

func newTestPipeline(t *testing.T, completer *fakeCompleter, images *fakeImages, sleeper *recordingSleeper) *SectionPipeline {
	t.Helper()
	p := NewSectionPipeline(testCompiler(t), completer, nil, testPipelineOptions())
	if images != nil {
		p = NewSectionPipeline(testCompiler(t), completer, images, testPipelineOptions())
	}
	return p.WithSleeper(sleeper.Sleep)
}

func TestPartCount(t *testing.T) {
	tests := []struct {
		target, chunk, want int
	}{
		{2200, 750, 3},
		{1600, 750, 2},
		{1874, 750, 2},
		{1876, 750, 3},
		{3900, 750, 5},
		{100, 750, 1},
		{900, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PartCount(tt.target, tt.chunk), "%d/%d", tt.target, tt.chunk)
	}
}

func TestSectionPipeline_BelowThresholdMakesNoCalls(t *testing.T) {
	completer := &fakeCompleter{}
	images := &fakeImages{}
	p := newTestPipeline(t, completer, images, &recordingSleeper{})

	out, err := p.Run(context.Background(), entity.SectionSpec{Title: "Tiny"}, testChart(t), 99)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", out.Result.Heading)
	assert.Empty(t, out.Result.Content)
	assert.True(t, out.Image.Skipped())
	assert.Empty(t, completer.calls)
	assert.Empty(t, images.prompts)
}

func TestSectionPipeline_SingleShot(t *testing.T) {
	completer := &fakeCompleter{}
	images := &fakeImages{}
	sleeper := &recordingSleeper{}
	p := newTestPipeline(t, completer, images, sleeper)

	out, err := p.Run(context.Background(), entity.SectionSpec{Title: "Your Core Identity"}, testChart(t), 1500)
	require.NoError(t, err)

	assert.Equal(t, []string{
		llmctx.WorkflowSectionWrite,
		llmctx.WorkflowSummary,
		llmctx.WorkflowImagePrompt,
	}, completer.workflows())
	assert.Equal(t, "You carry a steady flame.", out.Result.Content)
	assert.Equal(t, 1, out.SubCalls)
	assert.Equal(t, "A steady, patient builder.", out.Summary)
	assert.Equal(t, "generated_images/img.png", out.Result.ImagePath)
	assert.True(t, out.Image.OK())
	assert.Empty(t, sleeper.delays)

	write := completer.callsFor(llmctx.WorkflowSectionWrite)[0]
	assert.Contains(t, write.Prompt, "approximately 1500 words")
	assert.Equal(t, "openai", write.Provider)

	summary := completer.callsFor(llmctx.WorkflowSummary)[0]
	assert.Equal(t, float32(0.2), *summary.Temperature)
	assert.Equal(t, 200, *summary.MaxTokens)
	assert.Contains(t, summary.Prompt, "You carry a steady flame.")

	sanitize := completer.callsFor(llmctx.WorkflowImagePrompt)[0]
	assert.Equal(t, float32(0.7), *sanitize.Temperature)
	assert.Equal(t, 300, *sanitize.MaxTokens)
	assert.Contains(t, sanitize.Prompt, "A steady, patient builder.")

	assert.Equal(t, []string{"a lantern glowing on a stone path"}, images.prompts)
}

func TestSectionPipeline_ChunkedIsSequentialWithSeparators(t *testing.T) {
	completer := &fakeCompleter{respond: func(in *wfmodel.CompletionInput, n int) string {
		if in.Workflow == llmctx.WorkflowSectionPart {
			return fmt.Sprintf("part text %d", n)
		}
		return defaultReply(in)
	}}
	sleeper := &recordingSleeper{}
	p := newTestPipeline(t, completer, nil, sleeper)

	out, err := p.Run(context.Background(), entity.SectionSpec{Title: "Bonds"}, testChart(t), 2200)
	require.NoError(t, err)

	parts := completer.callsFor(llmctx.WorkflowSectionPart)
	require.Len(t, parts, 3)
	for i, c := range parts {
		assert.Contains(t, c.Prompt, fmt.Sprintf(`part %d of 3 of the chapter "Bonds"`, i+1))
		assert.Contains(t, c.Prompt, "approximately 733 words")
		assert.Contains(t, c.Prompt, "Focus on one key aspect")
	}
	assert.Equal(t, 3, out.SubCalls)
	assert.Equal(t, "part text 1\n\npart text 2\n\npart text 3", out.Result.Content)
	assert.Equal(t, 2, strings.Count(out.Result.Content, "\n\n"))
	assert.Equal(t, 2, sleeper.count(testChunkDelay))
	assert.Empty(t, completer.callsFor(llmctx.WorkflowSectionWrite))
}

func TestSectionPipeline_ImageFailureIsRecovered(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		images := &fakeImages{err: apperrors.New(apperrors.CodeImageProviderError, "content policy")}
		p := newTestPipeline(t, &fakeCompleter{}, images, &recordingSleeper{})

		out, err := p.Run(context.Background(), entity.SectionSpec{Title: "Shadow"}, testChart(t), 800)
		require.NoError(t, err)
		assert.Equal(t, "Shadow", out.Result.Heading)
		assert.NotEmpty(t, out.Result.Content)
		assert.Empty(t, out.Result.ImagePath)
		assert.False(t, out.Result.HasImage())
		assert.True(t, apperrors.IsCode(out.Image.Reason, apperrors.CodeImageGenerationFailed))
		assert.True(t, apperrors.IsCode(out.Image.Reason, apperrors.CodeImageProviderError))
	})

	t.Run("sanitize call fails", func(t *testing.T) {
		completer := &fakeCompleter{failOn: map[string]error{llmctx.WorkflowImagePrompt: errBoom}}
		images := &fakeImages{}
		p := newTestPipeline(t, completer, images, &recordingSleeper{})

		out, err := p.Run(context.Background(), entity.SectionSpec{Title: "Shadow"}, testChart(t), 800)
		require.NoError(t, err)
		assert.NotEmpty(t, out.Result.Content)
		assert.ErrorIs(t, out.Image.Reason, errBoom)
		assert.Empty(t, images.prompts)
	})
}

func TestSectionPipeline_TextFailuresAreFatal(t *testing.T) {
	for _, wf := range []string{llmctx.WorkflowSectionWrite, llmctx.WorkflowSummary} {
		t.Run(wf, func(t *testing.T) {
			completer := &fakeCompleter{failOn: map[string]error{wf: errBoom}}
			images := &fakeImages{}
			p := newTestPipeline(t, completer, images, &recordingSleeper{})

			out, err := p.Run(context.Background(), entity.SectionSpec{Title: "T"}, testChart(t), 800)
			assert.ErrorIs(t, err, errBoom)
			assert.Nil(t, out)
			assert.Empty(t, images.prompts)
		})
	}

	t.Run("second part fails", func(t *testing.T) {
		p := newTestPipeline(t, &fakeCompleter{}, nil, &recordingSleeper{})
		p.completer = &failAfter{inner: &fakeCompleter{}, okCalls: 1}

		_, err := p.Run(context.Background(), entity.SectionSpec{Title: "T"}, testChart(t), 2200)
		assert.ErrorIs(t, err, errBoom)
	})
}

type failAfter struct {
	inner   *fakeCompleter
	okCalls int
	n       int
}

func (f *failAfter) Complete(ctx context.Context, in *wfmodel.CompletionInput) (string, error) {
	f.n++
	if f.n > f.okCalls {
		return "", errBoom
	}
	return f.inner.Complete(ctx, in)
}

func TestSectionPipeline_ImagesDisabledSkipsSummary(t *testing.T) {
	completer := &fakeCompleter{}
	p := newTestPipeline(t, completer, nil, &recordingSleeper{})

	out, err := p.Run(context.Background(), entity.SectionSpec{Title: "T"}, testChart(t), 800)
	require.NoError(t, err)
	assert.Equal(t, []string{llmctx.WorkflowSectionWrite}, completer.workflows())
	assert.True(t, out.Image.Skipped())
}

func TestSectionPipeline_CancelledDuringChunkDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := &fakeCompleter{respond: func(in *wfmodel.CompletionInput, n int) string {
		cancel()
		return "x"
	}}
	p := newTestPipeline(t, completer, nil, &recordingSleeper{})

	_, err := p.Run(ctx, entity.SectionSpec{Title: "T"}, testChart(t), 2200)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, completer.calls, 1)
}
