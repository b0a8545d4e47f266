package dto

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	apperrors "natal-book-ai/pkg/errors"
)

func TestCreateBookRequest_ToEntity(t *testing.T) {
	req := CreateBookRequest{
		Title:           "  For June ",
		Pages:           50,
		StructureSource: " tiered",
		Chart:           json.RawMessage(`{"sun": "Vir", "moon": "Cap", "asc": "Lib"}`),
	}
	got, err := req.ToEntity()
	require.NoError(t, err)
	assert.Equal(t, "For June", got.Title)
	assert.Equal(t, "tiered", got.StructureSource)
	assert.Equal(t, []string{"sun", "moon", "asc"}, got.Chart.Keys())

	req.Chart = json.RawMessage(`[1, 2]`)
	_, err = req.ToEntity()
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestToBookJobResponse(t *testing.T) {
	assert.Nil(t, ToBookJobResponse(nil))

	job := entity.NewBookJob("job-1", &entity.BookRequest{Title: "T", Pages: 50, Chart: entity.NewChartPayload()})
	job.Start()
	job.UpdateProgress("generating_sections", 35)

	resp := ToBookJobResponse(job)
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 35, resp.Progress)
	assert.Equal(t, 50, resp.Pages)
	assert.NotNil(t, resp.StartedAt)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "chart")
}

func TestToPlanResponse(t *testing.T) {
	plan := &entity.BookPlan{
		Sections:        []entity.SectionSpec{{Title: "One"}, {Title: "Two"}},
		WordsPerSection: []int{3900, 3900},
		IntroWords:      300,
		OutroWords:      300,
		PrefaceWords:    300,
		RequestedPages:  50,
		OverheadPages:   21,
		ContentPages:    29,
	}
	resp := ToPlanResponse("Core Dynamics (~15k words)", plan)
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, "Two", resp.Sections[1].Title)
	assert.Equal(t, 3900, resp.Sections[1].Words)
	assert.Equal(t, 8700, resp.TotalWords)
}

func TestCreateBookRequest_CapsMatchConfig(t *testing.T) {
	chart := json.RawMessage(`{"sun": "Vir"}`)

	ok := CreateBookRequest{Pages: config.MaxBookPages, Words: config.MaxBookWords, Chart: chart}
	assert.NoError(t, binding.Validator.ValidateStruct(&ok))

	tooManyPages := CreateBookRequest{Pages: config.MaxBookPages + 1, Chart: chart}
	assert.Error(t, binding.Validator.ValidateStruct(&tooManyPages))

	tooManyWords := CreateBookRequest{Words: config.MaxBookWords + 1, Chart: chart}
	assert.Error(t, binding.Validator.ValidateStruct(&tooManyWords))
}
