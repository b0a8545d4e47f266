package model

import "natal-book-ai/internal/domain/entity"

// StructureGenerateInput 章节结构设计输入
type StructureGenerateInput struct {
	Payload   *entity.ChartPayload
	TierLabel string

	Provider    string
	Model       string
	Temperature *float32
}

// StructureGenerateOutput 模型给出的章节列表
type StructureGenerateOutput struct {
	Sections []entity.SectionSpec
	Usage    LLMUsageMeta
}

// StructureResponse 模型返回的 JSON 结构
type StructureResponse struct {
	Chapters []entity.SectionSpec `json:"chapters"`
}
