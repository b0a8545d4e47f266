package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/domain/repository"
)

const (
	jobKeyPrefix = "book:job:"
	jobIndexKey  = "book:jobs"
)

// JobStore 任务状态以 JSON 保存，按创建时间建立索引
type JobStore struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

var _ repository.BookJobRepository = (*JobStore)(nil)

func NewJobStore(client *Client) *JobStore {
	return &JobStore{client: client, ttl: client.jobTTL()}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Create 写入新任务，ID 已存在时报错
func (s *JobStore) Create(ctx context.Context, job *entity.BookJob) error {
	ctx, span := tracer.Start(ctx, "jobstore.Create",
		trace.WithAttributes(attribute.String("job.id", job.ID)))
	defer span.End()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ok, err := s.client.rdb.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return fmt.Errorf("book job %s already exists", job.ID)
	}

	if err := s.client.rdb.ZAdd(ctx, jobIndexKey, redis.Z{
		Score:  float64(job.CreatedAt.UnixMilli()),
		Member: job.ID,
	}).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetByID 轮询状态的并发请求合并为一次读取
func (s *JobStore) GetByID(ctx context.Context, id string) (*entity.BookJob, error) {
	v, err, _ := s.group.Do(id, func() (any, error) {
		ctx, span := tracer.Start(ctx, "jobstore.Get",
			trace.WithAttributes(attribute.String("job.id", id)))
		defer span.End()

		data, err := s.client.rdb.Get(ctx, jobKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, repository.ErrJobNotFound
			}
			span.RecordError(err)
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	// 每个调用方拿到独立副本
	var job entity.BookJob
	if err := json.Unmarshal(v.([]byte), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Update 覆盖任务状态并续期
func (s *JobStore) Update(ctx context.Context, job *entity.BookJob) error {
	ctx, span := tracer.Start(ctx, "jobstore.Update",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.status", string(job.Status)),
		))
	defer span.End()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ok, err := s.client.rdb.SetXX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return repository.ErrJobNotFound
	}
	return nil
}

// ListRecent 已过期的任务会顺带从索引中清除
func (s *JobStore) ListRecent(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.BookJob], error) {
	ctx, span := tracer.Start(ctx, "jobstore.ListRecent")
	defer span.End()

	start, stop := pagination.Range()
	ids, err := s.client.rdb.ZRevRange(ctx, jobIndexKey, start, stop).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	jobs := make([]*entity.BookJob, 0, len(ids))
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = jobKey(id)
		}
		values, err := s.client.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		var expired []any
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				expired = append(expired, ids[i])
				continue
			}
			var job entity.BookJob
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				continue
			}
			jobs = append(jobs, &job)
		}
		if len(expired) > 0 {
			s.client.rdb.ZRem(ctx, jobIndexKey, expired...)
		}
	}

	total, err := s.client.rdb.ZCard(ctx, jobIndexKey).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return repository.NewPagedResult(jobs, total, pagination), nil
}
