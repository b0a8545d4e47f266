package book

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"natal-book-ai/internal/application/budget"
	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/domain/repository"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/tracer"
)

// JobQueue 投递待执行的任务 ID
type JobQueue interface {
	PublishBookJob(ctx context.Context, jobID string) (string, error)
}

// JobService 异步整书生成：API 侧提交与查询，worker 侧执行
type JobService struct {
	jobs  repository.BookJobRepository
	queue JobQueue
	orch  *Orchestrator
	newID func() string
}

func NewJobService(jobs repository.BookJobRepository, queue JobQueue, orch *Orchestrator) *JobService {
	return &JobService{jobs: jobs, queue: queue, orch: orch, newID: uuid.NewString}
}

// ToRequest 转换为编排输入
func ToRequest(req *entity.BookRequest) *Request {
	if req == nil {
		return &Request{}
	}
	return &Request{
		Title:           req.Title,
		Target:          budget.Target{Pages: req.Pages, Words: req.Words},
		Chart:           req.Chart,
		StructureSource: req.StructureSource,
	}
}

// Submit 先做离线校验，不可行的预算直接拒绝，不入队
func (s *JobService) Submit(ctx context.Context, req *entity.BookRequest) (*entity.BookJob, error) {
	if err := s.orch.Validate(ctx, ToRequest(req)); err != nil {
		return nil, err
	}

	job := entity.NewBookJob(s.newID(), req)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to save job")
	}

	if _, err := s.queue.PublishBookJob(ctx, job.ID); err != nil {
		job.Fail(string(apperrors.CodeMessageQueueUnavailable), "failed to enqueue job")
		if uerr := s.jobs.Update(ctx, job); uerr != nil {
			logger.Error(ctx, "failed to mark job as failed", uerr, "job_id", job.ID)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeMessageQueueUnavailable, "failed to enqueue job")
	}

	logger.Info(ctx, "book job submitted", "job_id", job.ID, "pages", req.Pages, "words", req.Words)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*entity.BookJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperrors.New(apperrors.CodeJobNotFound, "job not found").WithDetail(id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to load job")
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.BookJob], error) {
	page, err := s.jobs.ListRecent(ctx, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to list jobs")
	}
	return page, nil
}

// Execute 由 worker 调用。生成失败记录在任务上并返回 nil；
// 只有任务存储不可用时返回错误，由队列重投
func (s *JobService) Execute(ctx context.Context, jobID string) error {
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)
	tracer.Annotate(ctx, attribute.String("book.job_id", jobID))

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			logger.Warn(ctx, "book job expired before execution")
			return nil
		}
		return err
	}
	if job.Status.IsTerminal() {
		logger.Info(ctx, "book job already finished", "status", string(job.Status))
		return nil
	}
	if job.Status == entity.JobStatusRunning {
		// 上一次执行中断，重新开始
		job.Retry()
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}

	reporter := ProgressFunc(func(ctx context.Context, p Progress) {
		if p.Stage == StageFailed || p.Stage == StageDone {
			return
		}
		job.UpdateProgress(string(p.Stage), p.Percent)
		if err := s.jobs.Update(ctx, job); err != nil {
			logger.Warn(ctx, "failed to persist job progress", "error", err.Error())
		}
	})

	res, runErr := s.orch.Run(ctx, ToRequest(job.Request), reporter)
	if runErr != nil {
		appErr := apperrors.AsAppError(runErr)
		job.UpdateProgress(string(StageFailed), job.Progress)
		job.Fail(string(appErr.Code), runErr.Error())
	} else {
		job.UpdateProgress(string(StageDone), 100)
		job.Complete(res.OutputPath)
	}

	// 运行本身已结束，状态写入不受调用方取消影响
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		return err
	}
	return nil
}
