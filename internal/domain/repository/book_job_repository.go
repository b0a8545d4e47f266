package repository

import (
	"context"
	"errors"

	"natal-book-ai/internal/domain/entity"
)

// ErrJobNotFound 任务不存在或已过期
var ErrJobNotFound = errors.New("book job not found")

// BookJobRepository 整书任务仓储
type BookJobRepository interface {
	Create(ctx context.Context, job *entity.BookJob) error
	GetByID(ctx context.Context, id string) (*entity.BookJob, error)
	Update(ctx context.Context, job *entity.BookJob) error
	// ListRecent 按创建时间倒序
	ListRecent(ctx context.Context, pagination Pagination) (*PagedResult[*entity.BookJob], error)
}
