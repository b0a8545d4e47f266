package book

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/domain/repository"
	llmctx "natal-book-ai/internal/domain/service"
	apperrors "natal-book-ai/pkg/errors"
)

type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string][]byte
	order     []string
	snapshots []entity.BookJob
	updateErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string][]byte{}}
}

func (r *memJobRepo) Create(_ context.Context, job *entity.BookJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	r.jobs[job.ID] = data
	r.order = append(r.order, job.ID)
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*entity.BookJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	var job entity.BookJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *memJobRepo) Update(_ context.Context, job *entity.BookJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.jobs[job.ID]; !ok {
		return repository.ErrJobNotFound
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	r.jobs[job.ID] = data
	r.snapshots = append(r.snapshots, *job)
	return nil
}

func (r *memJobRepo) ListRecent(_ context.Context, p repository.Pagination) (*repository.PagedResult[*entity.BookJob], error) {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	var items []*entity.BookJob
	for i := p.Offset(); i < len(ids) && len(items) < p.Limit(); i++ {
		job, err := r.GetByID(context.Background(), ids[i])
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return repository.NewPagedResult(items, int64(len(ids)), p), nil
}

func (r *memJobRepo) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.snapshots {
		if s.Stage != "" && (len(out) == 0 || out[len(out)-1] != s.Stage) {
			out = append(out, s.Stage)
		}
	}
	return out
}

type fakeQueue struct {
	ids []string
	err error
}

func (q *fakeQueue) PublishBookJob(_ context.Context, jobID string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.ids = append(q.ids, jobID)
	return "1-0", nil
}

func newJobService(t *testing.T, repo *memJobRepo, queue *fakeQueue) (*JobService, *orchestratorFixture) {
	t.Helper()
	f := newFixture(t, OrchestratorOptions{StructureSource: config.StructureTiered})
	svc := NewJobService(repo, queue, f.orch)
	n := 0
	svc.newID = func() string {
		n++
		return "job-" + string(rune('0'+n))
	}
	return svc, f
}

func TestJobService_SubmitAndExecute(t *testing.T) {
	repo := newMemJobRepo()
	queue := &fakeQueue{}
	svc, f := newJobService(t, repo, queue)
	ctx := context.Background()

	job, err := svc.Submit(ctx, &entity.BookRequest{Pages: 50, Chart: testChart(t)})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, entity.JobStatusPending, job.Status)
	assert.Equal(t, []string{"job-1"}, queue.ids)

	require.NoError(t, svc.Execute(ctx, "job-1"))

	got, err := svc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, string(StageDone), got.Stage)
	assert.Regexp(t, `^generated_books/.+\.html$`, got.OutputPath)
	require.NotNil(t, got.Request.Chart)
	assert.Equal(t, []string{"sun", "moon"}, got.Request.Chart.Keys())

	assert.Equal(t, []string{
		string(StagePlanning),
		string(StageSections),
		string(StageFraming),
		string(StageAssembling),
		string(StageRendering),
		string(StageDone),
	}, repo.stages())
	assert.Len(t, f.renderer.docs, 1)

	// 重复投递的消息不会再次生成
	require.NoError(t, svc.Execute(ctx, "job-1"))
	assert.Len(t, f.renderer.docs, 1)
}

func TestJobService_SubmitRejectsInfeasible(t *testing.T) {
	repo := newMemJobRepo()
	queue := &fakeQueue{}
	svc, _ := newJobService(t, repo, queue)

	_, err := svc.Submit(context.Background(), &entity.BookRequest{Pages: 10, StructureSource: config.StructureStatic, Chart: testChart(t)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeBudgetInfeasible))
	assert.Empty(t, queue.ids)
	assert.Empty(t, repo.jobs)

	_, err = svc.Submit(context.Background(), &entity.BookRequest{Pages: 50})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestJobService_SubmitQueueDown(t *testing.T) {
	repo := newMemJobRepo()
	svc, _ := newJobService(t, repo, &fakeQueue{err: errBoom})

	_, err := svc.Submit(context.Background(), &entity.BookRequest{Pages: 50, Chart: testChart(t)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMessageQueueUnavailable))

	stored, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)
}

func TestJobService_ExecuteRecordsFailure(t *testing.T) {
	repo := newMemJobRepo()
	svc, f := newJobService(t, repo, &fakeQueue{})
	f.completer.failOn = map[string]error{llmctx.WorkflowSectionPart: errBoom}
	ctx := context.Background()

	_, err := svc.Submit(ctx, &entity.BookRequest{Pages: 50, Chart: testChart(t)})
	require.NoError(t, err)

	require.NoError(t, svc.Execute(ctx, "job-1"))

	got, err := svc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, got.Status)
	assert.Equal(t, string(StageFailed), got.Stage)
	assert.NotEmpty(t, got.ErrorCode)
	assert.Contains(t, got.ErrorMessage, "boom")
	assert.Empty(t, f.renderer.docs)
}

func TestJobService_ExecuteEdgeCases(t *testing.T) {
	repo := newMemJobRepo()
	svc, _ := newJobService(t, repo, &fakeQueue{})
	ctx := context.Background()

	// 已过期的任务直接确认
	require.NoError(t, svc.Execute(ctx, "missing"))

	_, err := svc.Submit(ctx, &entity.BookRequest{Pages: 50, Chart: testChart(t)})
	require.NoError(t, err)

	// 存储不可用时交给队列重投
	repo.updateErr = errBoom
	assert.ErrorIs(t, svc.Execute(ctx, "job-1"), errBoom)
}

func TestJobService_GetAndList(t *testing.T) {
	repo := newMemJobRepo()
	svc, _ := newJobService(t, repo, &fakeQueue{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "nope")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeJobNotFound))

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, &entity.BookRequest{Pages: 50, Chart: testChart(t)})
		require.NoError(t, err)
	}
	page, err := svc.List(ctx, repository.NewPagination(1, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "job-3", page.Items[0].ID)
	assert.Equal(t, 2, page.TotalPages)
}
