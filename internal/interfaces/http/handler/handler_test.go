package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/domain/entity"
	"natal-book-ai/internal/domain/repository"
	apperrors "natal-book-ai/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeJobs struct {
	submitted []*entity.BookRequest
	submitErr error
	jobs      map[string]*entity.BookJob
}

func (f *fakeJobs) Submit(_ context.Context, req *entity.BookRequest) (*entity.BookJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return entity.NewBookJob("job-1", req), nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*entity.BookJob, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, apperrors.New(apperrors.CodeJobNotFound, "job not found").WithDetail(id)
}

func (f *fakeJobs) List(_ context.Context, p repository.Pagination) (*repository.PagedResult[*entity.BookJob], error) {
	var items []*entity.BookJob
	for _, j := range f.jobs {
		items = append(items, j)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

type fakePlanner struct {
	err error
}

func (f *fakePlanner) PlanStatic(_ context.Context, req *book.Request) (*entity.BookPlan, book.Tier, error) {
	if f.err != nil {
		return nil, book.Tier{}, f.err
	}
	return &entity.BookPlan{
		Sections:        []entity.SectionSpec{{Title: "Your Core Identity"}},
		WordsPerSection: []int{req.Target.Pages * 10},
	}, book.Tier{Label: "Core Dynamics (~15k words)"}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, text string) (*entity.BirthData, error) {
	if strings.Contains(text, "nonsense") {
		return nil, apperrors.New(apperrors.CodeLLMMalformedResponse, "model returned malformed output")
	}
	return &entity.BirthData{Day: 2, Month: 6, Year: 1988, Hour: 15, Min: 40, Latitude: 45.76, Longitude: 4.84, TimezoneOffset: 2}, nil
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func newTestEngine(jobs *fakeJobs, planner *fakePlanner) *gin.Engine {
	r := gin.New()
	h := NewBookHandler(jobs, planner)
	x := NewExtractHandler(fakeExtractor{})
	r.POST("/api/v1/books", h.CreateBook)
	r.POST("/api/v1/books/plan", h.PlanBook)
	r.GET("/api/v1/books/jobs", h.ListBookJobs)
	r.GET("/api/v1/books/jobs/:jid", h.GetBookJob)
	r.POST("/api/v1/birth-data/extract", x.ExtractBirthData)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateBook(t *testing.T) {
	jobs := &fakeJobs{}
	r := newTestEngine(jobs, &fakePlanner{})

	w := do(r, http.MethodPost, "/api/v1/books", `{"pages": 50, "chart": {"sun": "Vir", "moon": "Cap"}}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "job-1", data["id"])
	assert.Equal(t, "pending", data["status"])
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, []string{"sun", "moon"}, jobs.submitted[0].Chart.Keys())

	w = do(r, http.MethodPost, "/api/v1/books", `{"pages": 50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/books", `{"pages": 50, "structure_source": "random", "chart": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/books", `{"pages": 50, "chart": "not an object"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBook_TargetCaps(t *testing.T) {
	jobs := &fakeJobs{}
	r := newTestEngine(jobs, &fakePlanner{})

	w := do(r, http.MethodPost, "/api/v1/books", `{"words": 50000000, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/api/v1/books", `{"pages": 1001, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, jobs.submitted)

	w = do(r, http.MethodPost, "/api/v1/books", `{"words": 300000, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestCreateBook_Errors(t *testing.T) {
	jobs := &fakeJobs{submitErr: apperrors.New(apperrors.CodeBudgetInfeasible, "budget infeasible").WithDetail("need 22 pages")}
	r := newTestEngine(jobs, &fakePlanner{})

	w := do(r, http.MethodPost, "/api/v1/books", `{"pages": 10, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "budget infeasible", body["message"])
	detail := body["error"].(map[string]any)
	assert.Equal(t, string(apperrors.CodeBudgetInfeasible), detail["error_code"])
	assert.Equal(t, "need 22 pages", detail["details"])

	jobs.submitErr = errors.New("disk on fire")
	w = do(r, http.MethodPost, "/api/v1/books", `{"pages": 50, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestPlanBook(t *testing.T) {
	r := newTestEngine(&fakeJobs{}, &fakePlanner{})

	w := do(r, http.MethodPost, "/api/v1/books/plan", `{"pages": 50, "chart": {"sun": "Vir"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "Core Dynamics (~15k words)", data["tier"])
	sections := data["sections"].([]any)
	require.Len(t, sections, 1)
	assert.Equal(t, float64(500), sections[0].(map[string]any)["words"])

	r = newTestEngine(&fakeJobs{}, &fakePlanner{err: apperrors.New(apperrors.CodeBudgetInfeasible, "budget infeasible")})
	w = do(r, http.MethodPost, "/api/v1/books/plan", `{"pages": 10, "chart": {"sun": "Vir"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetAndListBookJobs(t *testing.T) {
	job := entity.NewBookJob("job-7", &entity.BookRequest{Pages: 50})
	job.Start()
	job.UpdateProgress("generating_sections", 40)
	r := newTestEngine(&fakeJobs{jobs: map[string]*entity.BookJob{"job-7": job}}, &fakePlanner{})

	w := do(r, http.MethodGet, "/api/v1/books/jobs/job-7", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "running", data["status"])
	assert.Equal(t, float64(40), data["progress"])

	w = do(r, http.MethodGet, "/api/v1/books/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/books/jobs?page=1&page_size=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"].(map[string]any)["jobs"], 1)
	assert.Equal(t, float64(5), body["meta"].(map[string]any)["page_size"])
}

func TestExtractBirthData(t *testing.T) {
	r := newTestEngine(&fakeJobs{}, &fakePlanner{})

	w := do(r, http.MethodPost, "/api/v1/birth-data/extract", `{"text": "June 2, 1988 at 3:40 PM in Lyon"}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1988), data["year"])

	w = do(r, http.MethodPost, "/api/v1/birth-data/extract", `{"text": "nonsense"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(r, http.MethodPost, "/api/v1/birth-data/extract", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	r := gin.New()
	h := NewHealthHandler("v1.2.3", map[string]HealthChecker{"redis": stubChecker{}})
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1.2.3", decode(t, w)["version"])

	w = do(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := gin.New()
	hd := NewHealthHandler("", map[string]HealthChecker{"redis": stubChecker{err: errors.New("connection refused")}})
	down.GET("/ready", hd.Ready)
	w = do(down, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]any)
	assert.Equal(t, "error", checks["redis"].(map[string]any)["status"])
}
