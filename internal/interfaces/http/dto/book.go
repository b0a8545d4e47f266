package dto

import (
	"encoding/json"
	"strings"
	"time"

	"natal-book-ai/internal/domain/entity"
	apperrors "natal-book-ai/pkg/errors"
)

// CreateBookRequest 提交整书生成
type CreateBookRequest struct {
	Title string `json:"title"`
	// Pages 与 Words 二选一，Words 优先；上限同 config.MaxBookPages/MaxBookWords
	Pages           int    `json:"pages" binding:"gte=0,lte=1000"`
	Words           int    `json:"words" binding:"gte=0,lte=300000"`
	StructureSource string `json:"structure_source" binding:"omitempty,oneof=static tiered generated"`
	// Chart 星盘数据，键顺序会被保留
	Chart json.RawMessage `json:"chart" binding:"required"`
}

// ToEntity 解析星盘数据
func (r *CreateBookRequest) ToEntity() (*entity.BookRequest, error) {
	chart, err := entity.ParseChartPayload(r.Chart)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidParam, "chart must be a JSON object")
	}
	return &entity.BookRequest{
		Title:           strings.TrimSpace(r.Title),
		Pages:           r.Pages,
		Words:           r.Words,
		StructureSource: strings.TrimSpace(r.StructureSource),
		Chart:           chart,
	}, nil
}

// BookJobResponse 任务状态
type BookJobResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Stage        string     `json:"stage,omitempty"`
	Progress     int        `json:"progress"`
	Title        string     `json:"title,omitempty"`
	Pages        int        `json:"pages,omitempty"`
	Words        int        `json:"words,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	DurationMs   int        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ToBookJobResponse 不回显星盘数据
func ToBookJobResponse(j *entity.BookJob) *BookJobResponse {
	if j == nil {
		return nil
	}
	resp := &BookJobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Stage:        j.Stage,
		Progress:     j.Progress,
		OutputPath:   j.OutputPath,
		ErrorCode:    j.ErrorCode,
		ErrorMessage: j.ErrorMessage,
		RetryCount:   j.RetryCount,
		DurationMs:   j.DurationMs,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
	if j.Request != nil {
		resp.Title = j.Request.Title
		resp.Pages = j.Request.Pages
		resp.Words = j.Request.Words
	}
	return resp
}

// BookJobListResponse 任务列表
type BookJobListResponse struct {
	Jobs []*BookJobResponse `json:"jobs"`
}

func ToBookJobListResponse(jobs []*entity.BookJob) *BookJobListResponse {
	resp := &BookJobListResponse{Jobs: make([]*BookJobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, ToBookJobResponse(j))
	}
	return resp
}

// PlanSectionResponse 单章预算
type PlanSectionResponse struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

// PlanResponse 离线预算结果
type PlanResponse struct {
	Tier           string                 `json:"tier"`
	Sections       []*PlanSectionResponse `json:"sections"`
	IntroWords     int                    `json:"intro_words"`
	OutroWords     int                    `json:"outro_words"`
	PrefaceWords   int                    `json:"preface_words"`
	RequestedPages int                    `json:"requested_pages"`
	OverheadPages  int                    `json:"overhead_pages"`
	ContentPages   int                    `json:"content_pages"`
	TotalWords     int                    `json:"total_words"`
}

func ToPlanResponse(tier string, p *entity.BookPlan) *PlanResponse {
	resp := &PlanResponse{
		Tier:           tier,
		Sections:       make([]*PlanSectionResponse, 0, len(p.Sections)),
		IntroWords:     p.IntroWords,
		OutroWords:     p.OutroWords,
		PrefaceWords:   p.PrefaceWords,
		RequestedPages: p.RequestedPages,
		OverheadPages:  p.OverheadPages,
		ContentPages:   p.ContentPages,
		TotalWords:     p.TotalWords(),
	}
	for i, s := range p.Sections {
		resp.Sections = append(resp.Sections, &PlanSectionResponse{Title: s.Title, Words: p.WordsPerSection[i]})
	}
	return resp
}

// ExtractBirthDataRequest 自然语言出生信息
type ExtractBirthDataRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}
