package book

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/application/budget"
	"natal-book-ai/internal/domain/entity"
	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   []wfmodel.CompletionInput
	failOn  map[string]error
	respond func(in *wfmodel.CompletionInput, n int) string
}

func (f *fakeCompleter) Complete(_ context.Context, in *wfmodel.CompletionInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *in)
	if err, ok := f.failOn[in.Workflow]; ok {
		return "", err
	}
	if f.respond != nil {
		return f.respond(in, len(f.calls)), nil
	}
	return defaultReply(in), nil
}

func defaultReply(in *wfmodel.CompletionInput) string {
	switch in.Workflow {
	case llmctx.WorkflowSectionWrite:
		return "You carry a steady flame."
	case llmctx.WorkflowSectionPart:
		return "A facet of who you are."
	case llmctx.WorkflowSummary:
		return "A steady, patient builder."
	case llmctx.WorkflowImagePrompt:
		return `"a lantern glowing on a stone path"`
	case llmctx.WorkflowFraming:
		if strings.Contains(in.Prompt, "Write the introduction") {
			return "Generated introduction."
		}
		return "Generated conclusion."
	}
	return "ok"
}

func (f *fakeCompleter) workflows() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Workflow)
	}
	return out
}

func (f *fakeCompleter) callsFor(workflow string) []wfmodel.CompletionInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wfmodel.CompletionInput
	for _, c := range f.calls {
		if c.Workflow == workflow {
			out = append(out, c)
		}
	}
	return out
}

type fakeImages struct {
	prompts []string
	err     error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return "generated_images/img.png", nil
}

type fakeRenderer struct {
	docs []*entity.BookDocument
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, doc *entity.BookDocument, basename string) (string, error) {
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return "", f.err
	}
	return "generated_books/" + basename + ".html", nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.delays {
		if x == d {
			n++
		}
	}
	return n
}

type fakeProposer struct {
	sections []entity.SectionSpec
	err      error
	inputs   []*wfmodel.StructureGenerateInput
}

func (f *fakeProposer) Invoke(_ context.Context, in *wfmodel.StructureGenerateInput) (*wfmodel.StructureGenerateOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &wfmodel.StructureGenerateOutput{Sections: f.sections}, nil
}

var errBoom = errors.New("boom")

const (
	testChunkDelay   = 2 * time.Second
	testSectionDelay = 5 * time.Second
)

func testChart(t *testing.T) *entity.ChartPayload {
	t.Helper()
	p, err := entity.ParseChartPayload([]byte(`{"sun": {"sign": "Vir", "house": 10}, "moon": {"sign": "Cap"}}`))
	require.NoError(t, err)
	return p
}

func testCompiler(t *testing.T) *workflowprompt.Compiler {
	t.Helper()
	c, err := workflowprompt.NewCompiler()
	require.NoError(t, err)
	return c
}

func testAllocator() *budget.Allocator {
	return budget.NewAllocator(budget.Overhead{
		FrontMatterPages: 12,
		PerSectionPages:  3,
		FramingPages:     3,
		PrefacePages:     1,
		IntroPages:       1,
		OutroPages:       1,
	}, 300, 500)
}

func testPipelineOptions() PipelineOptions {
	return PipelineOptions{
		MinGenerateWords:  100,
		SingleShotCeiling: 1500,
		ChunkSize:         750,
		ChunkDelay:        testChunkDelay,
		ImageSize:         "1024x1792",
		Provider:          "openai",
	}
}
