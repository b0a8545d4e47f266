package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/domain/repository"
	"natal-book-ai/internal/interfaces/http/dto"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
)

// BookJobs 异步任务服务
type BookJobs interface {
	Submit(ctx context.Context, req *entity.BookRequest) (*entity.BookJob, error)
	Get(ctx context.Context, id string) (*entity.BookJob, error)
	List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.BookJob], error)
}

// BookPlanner 离线预算
type BookPlanner interface {
	PlanStatic(ctx context.Context, req *book.Request) (*entity.BookPlan, book.Tier, error)
}

// BookHandler 整书生成处理器
type BookHandler struct {
	jobs    BookJobs
	planner BookPlanner
}

func NewBookHandler(jobs BookJobs, planner BookPlanner) *BookHandler {
	return &BookHandler{jobs: jobs, planner: planner}
}

func bindBookRequest(c *gin.Context) (*entity.BookRequest, bool) {
	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}
	br, err := req.ToEntity()
	if err != nil {
		dto.Fail(c, err)
		return nil, false
	}
	return br, true
}

// CreateBook 提交整书生成任务
// @Summary 提交整书生成
// @Description 预算不可行时直接返回 422，不会入队
// @Tags Books
// @Accept json
// @Produce json
// @Param body body dto.CreateBookRequest true "生成参数"
// @Success 202 {object} dto.Response[dto.BookJobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	req, ok := bindBookRequest(c)
	if !ok {
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(c.Request.Context(), "failed to submit book job", err)
		}
		dto.Fail(c, err)
		return
	}
	dto.Accepted(c, dto.ToBookJobResponse(job))
}

// PlanBook 计算页数预算，不调用模型
// @Summary 预算试算
// @Tags Books
// @Accept json
// @Produce json
// @Param body body dto.CreateBookRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.PlanResponse]
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/v1/books/plan [post]
func (h *BookHandler) PlanBook(c *gin.Context) {
	req, ok := bindBookRequest(c)
	if !ok {
		return
	}

	plan, tier, err := h.planner.PlanStatic(c.Request.Context(), book.ToRequest(req))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToPlanResponse(tier.Label, plan))
}

// GetBookJob 查询任务状态
// @Summary 查询任务
// @Tags Books
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.BookJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/books/jobs/{jid} [get]
func (h *BookHandler) GetBookJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToBookJobResponse(job))
}

// ListBookJobs 最近的任务
// @Summary 任务列表
// @Tags Books
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.BookJobListResponse]
// @Router /api/v1/books/jobs [get]
func (h *BookHandler) ListBookJobs(c *gin.Context) {
	page, err := h.jobs.List(c.Request.Context(), dto.BindPage(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToBookJobListResponse(page.Items),
		dto.NewPageMeta(page.Page, page.PageSize, page.Total, page.TotalPages))
}
