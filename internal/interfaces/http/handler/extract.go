package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/interfaces/http/dto"
)

// BirthDataExtractor 自然语言转结构化出生信息
type BirthDataExtractor interface {
	Extract(ctx context.Context, text string) (*entity.BirthData, error)
}

// ExtractHandler 出生信息抽取处理器
type ExtractHandler struct {
	extractor BirthDataExtractor
}

func NewExtractHandler(extractor BirthDataExtractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

// ExtractBirthData 同步调用模型抽取出生信息
// @Summary 抽取出生信息
// @Tags Books
// @Accept json
// @Produce json
// @Param body body dto.ExtractBirthDataRequest true "描述"
// @Success 200 {object} dto.Response[entity.BirthData]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/birth-data/extract [post]
func (h *ExtractHandler) ExtractBirthData(c *gin.Context) {
	var req dto.ExtractBirthDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	data, err := h.extractor.Extract(c.Request.Context(), req.Text)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, data)
}
