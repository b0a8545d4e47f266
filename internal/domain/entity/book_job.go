package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// BookRequest 一次整书生成的输入
type BookRequest struct {
	Title string `json:"title,omitempty"`
	// Pages 与 Words 二选一，Words 优先
	Pages int `json:"pages,omitempty"`
	Words int `json:"words,omitempty"`
	// StructureSource 为空时使用配置值
	StructureSource string        `json:"structure_source,omitempty"`
	Chart           *ChartPayload `json:"chart"`
}

// BookJob 异步整书生成任务
type BookJob struct {
	ID           string       `json:"id"`
	Status       JobStatus    `json:"status"`
	Stage        string       `json:"stage,omitempty"`
	Progress     int          `json:"progress"` // 任务进度 (0-100)
	Request      *BookRequest `json:"request,omitempty"`
	OutputPath   string       `json:"output_path,omitempty"`
	ErrorCode    string       `json:"error_code,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	RetryCount   int          `json:"retry_count"`
	DurationMs   int          `json:"duration_ms,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewBookJob 创建新任务
func NewBookJob(id string, req *BookRequest) *BookJob {
	now := time.Now()
	return &BookJob{
		ID:        id,
		Status:    JobStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start 开始执行任务
func (j *BookJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete 完成任务
func (j *BookJob) Complete(outputPath string) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.OutputPath = outputPath
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (j *BookJob) Fail(code, errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorCode = code
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Retry 重置为待执行
func (j *BookJob) Retry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorCode = ""
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now()
}

// CanRetry 检查是否可以重试
func (j *BookJob) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries && j.Status == JobStatusFailed
}

// UpdateProgress 更新任务阶段与进度
func (j *BookJob) UpdateProgress(stage string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Stage = stage
	j.Progress = progress
	j.UpdatedAt = time.Now()
}
