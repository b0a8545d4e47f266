package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"natal-book-ai/internal/config"
	llmctx "natal-book-ai/internal/domain/service"
	workflowport "natal-book-ai/internal/workflow/port"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/tracer"
)

// maxImageBytes 下载图片的上限
const maxImageBytes = 32 << 20

// ImageSaver 图片落盘
type ImageSaver interface {
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
}

// ImageClient 调用 images 接口，下载或解码结果并保存为 png
type ImageClient struct {
	client     *openai.Client
	cfg        config.ImageConfig
	saver      ImageSaver
	limiter    workflowport.RequestLimiter
	httpClient *http.Client
	maxBytes   int64
}

// NewImageClient limiter 可为 nil
func NewImageClient(cfg *config.ImageConfig, saver ImageSaver, limiter workflowport.RequestLimiter) *ImageClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	downloadTimeout := cfg.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = 60 * time.Second
	}

	return &ImageClient{
		client:     openai.NewClientWithConfig(oc),
		cfg:        *cfg,
		saver:      saver,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: downloadTimeout},
		maxBytes:   maxImageBytes,
	}
}

// Size 配置的图片尺寸，用于构造提示词
func (c *ImageClient) Size() string {
	return c.cfg.Size
}

// GenerateImage 实现 port.ImageGenerator
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) (path string, err error) {
	if strings.TrimSpace(prompt) == "" {
		return "", apperrors.New(apperrors.CodeImageProviderError, "image prompt is empty")
	}
	ctx = llmctx.WithWorkflow(ctx, llmctx.WorkflowImage)
	ctx, span := tracer.Start(ctx, "image.generate")
	defer func() { tracer.End(span, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.cfg.Model,
		N:              1,
		Size:           c.cfg.Size,
		Quality:        c.cfg.Quality,
		ResponseFormat: c.responseFormat(),
	})
	if err != nil {
		return "", wrapImageError(err)
	}
	if len(resp.Data) == 0 {
		return "", apperrors.New(apperrors.CodeImageProviderError, "image response has no data")
	}

	item := resp.Data[0]
	var body io.ReadCloser
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeImageProviderError, "decode inline image")
		}
		body = io.NopCloser(bytes.NewReader(data))
	case item.URL != "":
		body, err = c.download(ctx, item.URL)
		if err != nil {
			return "", err
		}
	default:
		return "", apperrors.New(apperrors.CodeImageProviderError, "image response has neither url nor data")
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, c.maxBytes+1))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeImageProviderError, "read image")
	}
	if int64(len(data)) > c.maxBytes {
		return "", apperrors.New(apperrors.CodeImageProviderError, "image too large").
			WithDetail(fmt.Sprintf("exceeds %d bytes", c.maxBytes))
	}

	path, err = c.saver.Save(ctx, ".png", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, "image saved", "path", path)
	return path, nil
}

func (c *ImageClient) responseFormat() string {
	if c.cfg.ResponseFormat == openai.CreateImageResponseFormatB64JSON {
		return openai.CreateImageResponseFormatB64JSON
	}
	return openai.CreateImageResponseFormatURL
}

func (c *ImageClient) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImageProviderError, "build image download request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImageProviderError, "download image")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.New(apperrors.CodeImageProviderError, "download image").
			WithDetail(fmt.Sprintf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func wrapImageError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apperrors.CodeImageProviderError
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			code = apperrors.CodeLLMRateLimited
		}
		return apperrors.Wrap(err, code, "image provider rejected request").
			WithDetail(fmt.Sprintf("status %d", apiErr.HTTPStatusCode))
	}
	return apperrors.Wrap(err, apperrors.CodeImageProviderError, "image request failed")
}
