package book

import (
	"context"
	"fmt"
	"strings"

	"natal-book-ai/internal/domain/entity"
	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	wfnode "natal-book-ai/internal/workflow/node"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	apperrors "natal-book-ai/pkg/errors"
)

// Extractor 从自然语言描述中抽取出生信息
type Extractor struct {
	compiler  *workflowprompt.Compiler
	completer workflowport.TextCompleter
	provider  string
}

func NewExtractor(compiler *workflowprompt.Compiler, completer workflowport.TextCompleter, provider string) *Extractor {
	return &Extractor{compiler: compiler, completer: completer, provider: provider}
}

// Extract 返回的字段均已做范围校验
func (e *Extractor) Extract(ctx context.Context, text string) (*entity.BirthData, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "birth description is empty")
	}
	prompt, err := e.compiler.DataExtraction(ctx, text)
	if err != nil {
		return nil, err
	}
	raw, err := e.completer.Complete(ctx, &wfmodel.CompletionInput{
		Workflow:       llmctx.WorkflowDataExtraction,
		Prompt:         prompt,
		Provider:       e.provider,
		Temperature:    wfmodel.Float32Ptr(0),
		ResponseFormat: wfmodel.ResponseFormatJSONObject,
	})
	if err != nil {
		return nil, err
	}

	var data entity.BirthData
	if err := wfnode.DecodeJSONObject(raw, &data); err != nil {
		return nil, wfnode.WrapGenerationError(llmctx.WorkflowDataExtraction, err)
	}
	if err := validateBirthData(&data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidParam, "birth details out of range")
	}
	return &data, nil
}

func validateBirthData(d *entity.BirthData) error {
	switch {
	case d.Year < 1 || d.Year > 9999:
		return fmt.Errorf("year %d", d.Year)
	case d.Month < 1 || d.Month > 12:
		return fmt.Errorf("month %d", d.Month)
	case d.Day < 1 || d.Day > 31:
		return fmt.Errorf("day %d", d.Day)
	case d.Hour < 0 || d.Hour > 23:
		return fmt.Errorf("hour %d", d.Hour)
	case d.Min < 0 || d.Min > 59:
		return fmt.Errorf("minute %d", d.Min)
	case d.Latitude < -90 || d.Latitude > 90:
		return fmt.Errorf("latitude %v", d.Latitude)
	case d.Longitude < -180 || d.Longitude > 180:
		return fmt.Errorf("longitude %v", d.Longitude)
	case d.TimezoneOffset < -14 || d.TimezoneOffset > 14:
		return fmt.Errorf("timezone offset %v", d.TimezoneOffset)
	}
	return nil
}
