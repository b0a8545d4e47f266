package port

import (
	"context"
	"time"

	"natal-book-ai/internal/domain/entity"
	wfmodel "natal-book-ai/internal/workflow/model"
)

// TextCompleter 单次文本补全，失败时返回 GenerationError
type TextCompleter interface {
	Complete(ctx context.Context, in *wfmodel.CompletionInput) (string, error)
}

// ImageGenerator 生成一张图片并保存到本地，返回文件路径
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// BookRenderer 将文档渲染为成品文件，返回文件路径
type BookRenderer interface {
	Render(ctx context.Context, doc *entity.BookDocument, basename string) (string, error)
}

// RequestLimiter 外部调用前的节流等待
type RequestLimiter interface {
	Wait(ctx context.Context) error
}

// Pauser 被 provider 限流后暂停后续调用；d <= 0 使用默认时长
type Pauser interface {
	Pause(d time.Duration)
}
