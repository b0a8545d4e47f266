package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/domain/entity"
)

var forbiddenTerms = []string{`"Sun sign,"`, `"ascendant,"`, `"houses,"`, `"trine,"`, `"zodiac,"`, `"astrology,"`}

func testPayload(t *testing.T) *entity.ChartPayload {
	t.Helper()
	p, err := entity.ParseChartPayload([]byte(`{"sun": {"sign": "Vir", "house": 10}, "moon": {"sign": "Cap"}}`))
	require.NoError(t, err)
	return p
}

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler()
	require.NoError(t, err)
	return c
}

func TestSummarization_Golden(t *testing.T) {
	c := newCompiler(t)

	got, err := c.Summarization(context.Background(), "You build quietly.")
	require.NoError(t, err)

	want := "Summarize the following block of text in 2-3 sentences. Focus on the core themes, archetypes, and emotional tone. This summary will be used to generate a symbolic piece of artwork.\n" +
		"\n" +
		"TEXT TO SUMMARIZE:\n" +
		"---\n" +
		"You build quietly.\n" +
		"---"
	assert.Equal(t, want, got)
}

func TestDataExtraction_EscapedExample(t *testing.T) {
	c := newCompiler(t)

	got, err := c.DataExtraction(context.Background(), "  June 2, 1988 at 3:40 PM in Lyon, France ")
	require.NoError(t, err)

	assert.Contains(t, got, `USER PROMPT: "June 2, 1988 at 3:40 PM in Lyon, France"`)
	assert.Contains(t, got, "{\n  \"day\": 31,")
	assert.Contains(t, got, "\"timezone_offset\": -6.0\n}")
	assert.NotContains(t, got, "{{")
}

func TestSection_StaticTheme(t *testing.T) {
	c := newCompiler(t)

	got, err := c.Section(context.Background(), SectionInput{
		Section:    entity.SectionSpec{Title: "Your Core Identity"},
		Payload:    testPayload(t),
		WordTarget: 1200,
	})
	require.NoError(t, err)

	assert.Contains(t, got, `THEME OF THIS SECTION: "Your Core Identity"`)
	assert.Contains(t, got, "approximately 1200 words")
	assert.Contains(t, got, "{\n  \"sun\": {\n    \"sign\": \"Vir\",\n    \"house\": 10\n  },\n  \"moon\"")
	for _, term := range forbiddenTerms {
		assert.Contains(t, got, term)
	}
	assert.Contains(t, got, "second-person voice")
}

func TestSection_DynamicTheme(t *testing.T) {
	c := newCompiler(t)

	got, err := c.Section(context.Background(), SectionInput{
		Section: entity.SectionSpec{
			Title:    "The Architect of Order",
			Summary:  "Precision as a way of caring.",
			Keywords: []string{"discipline", "service"},
		},
		Payload:    testPayload(t),
		WordTarget: 900,
	})
	require.NoError(t, err)

	assert.Contains(t, got, `CHAPTER THEME: "The Architect of Order"`)
	assert.Contains(t, got, "CHAPTER FOCUS: Precision as a way of caring.")
	assert.Contains(t, got, "KEY TRAITS TO EXPLORE: discipline, service")
	assert.Contains(t, got, "approximately 900 words")
	assert.NotContains(t, got, "{voice_rules}")
}

func TestSectionPart(t *testing.T) {
	c := newCompiler(t)
	in := SectionInput{Section: entity.SectionSpec{Title: "Bonds"}, Payload: testPayload(t), WordTarget: 733}

	got, err := c.SectionPart(context.Background(), PartInput{SectionInput: in, Part: 2, Parts: 3})
	require.NoError(t, err)
	assert.Contains(t, got, `part 2 of 3 of the chapter "Bonds"`)
	assert.Contains(t, got, "Focus on one key aspect")
	assert.Contains(t, got, "KEY TRAITS TO EXPLORE: (none specified)")

	_, err = c.SectionPart(context.Background(), PartInput{SectionInput: in, Part: 4, Parts: 3})
	assert.Error(t, err)
}

func TestFraming(t *testing.T) {
	c := newCompiler(t)
	secs := []entity.SectionSpec{{Title: "One"}, {Title: "Two"}}

	intro, err := c.Framing(context.Background(), FramingInput{Kind: FramingIntro, Sections: secs, Payload: testPayload(t), WordTarget: 300})
	require.NoError(t, err)
	assert.Contains(t, intro, "Write the introduction of the book.")
	assert.Contains(t, intro, "1. One\n2. Two")

	outro, err := c.Framing(context.Background(), FramingInput{Kind: FramingOutro, Sections: secs, Payload: testPayload(t), WordTarget: 300})
	require.NoError(t, err)
	assert.Contains(t, outro, "Write the conclusion of the book.")

	_, err = c.Framing(context.Background(), FramingInput{Kind: "appendix"})
	assert.Error(t, err)
}

func TestBookStructure(t *testing.T) {
	c := newCompiler(t)

	got, err := c.BookStructure(context.Background(), testPayload(t), "Core Dynamics (~15k words)")
	require.NoError(t, err)
	assert.Contains(t, got, "BOOK SCOPE: Core Dynamics (~15k words)")
	assert.Contains(t, got, `"theme_title": "The Architect of Order"`)
	assert.Contains(t, got, "{\n  \"chapters\": [")
}

func TestSafeImagePrompt(t *testing.T) {
	c := newCompiler(t)

	got, err := c.SafeImagePrompt(context.Background(), "A quiet builder of worlds.", "1024x1792")
	require.NoError(t, err)
	assert.Contains(t, got, `**Interpretation Summary:** "A quiet builder of worlds."`)
	assert.Contains(t, got, "in a vertical 1024x1792 aspect ratio.")
	assert.Contains(t, got, "Do NOT depict specific, recognizable human figures.")
}

func TestBuilders_Pure(t *testing.T) {
	c := newCompiler(t)
	ctx := context.Background()
	payload := testPayload(t)
	in := SectionInput{Section: entity.SectionSpec{Title: "T", Keywords: []string{"a"}}, Payload: payload, WordTarget: 750}

	builders := map[string]func() (string, error){
		"extraction": func() (string, error) { return c.DataExtraction(ctx, "May 1, 2000") },
		"structure":  func() (string, error) { return c.BookStructure(ctx, payload, "Full Arc (~50k+ words)") },
		"section":    func() (string, error) { return c.Section(ctx, in) },
		"part":       func() (string, error) { return c.SectionPart(ctx, PartInput{SectionInput: in, Part: 1, Parts: 2}) },
		"summary":    func() (string, error) { return c.Summarization(ctx, "text") },
		"image":      func() (string, error) { return c.SafeImagePrompt(ctx, "summary", "1024x1024") },
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			first, err := build()
			require.NoError(t, err)
			second, err := build()
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, strings.TrimSpace(first))
		})
	}

	// 独立实例也一致
	other := newCompiler(t)
	a, err := c.Section(ctx, in)
	require.NoError(t, err)
	b, err := other.Section(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRegistry_UnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate("nope")
	assert.Error(t, err)
}
