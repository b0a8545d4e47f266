package node

import (
	"context"
	"errors"
	"net"
	"strings"

	apperrors "natal-book-ai/pkg/errors"
)

// FailureKind 模型调用失败类别
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed"
	FailureProvider    FailureKind = "provider"
)

// ErrEmptyResponse 模型返回空内容
var ErrEmptyResponse = errors.New("empty llm response")

func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "response_format") || strings.Contains(msg, "json_schema")
}

// IsRateLimitError 供应商限流
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}

// ClassifyLLMError 判断失败类别
func ClassifyLLMError(err error) FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyResponse) {
		return FailureMalformed
	}
	if IsRateLimitError(err) {
		return FailureRateLimited
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return FailureTransport
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "eof"):
		return FailureTransport
	case strings.Contains(msg, "unmarshal"),
		strings.Contains(msg, "invalid character"),
		strings.Contains(msg, "no choices"):
		return FailureMalformed
	default:
		return FailureProvider
	}
}

// WrapGenerationError 包装为 GenerationError：外层 CodeLLMCallFailed，内层为具体类别
func WrapGenerationError(workflow string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var inner *apperrors.AppError
	switch ClassifyLLMError(err) {
	case FailureRateLimited:
		inner = apperrors.Wrap(err, apperrors.CodeLLMRateLimited, "llm rate limited")
	case FailureMalformed:
		inner = apperrors.Wrap(err, apperrors.CodeLLMMalformedResponse, "llm response malformed")
	case FailureTransport:
		inner = apperrors.Wrap(err, apperrors.CodeLLMProviderError, "llm transport failure")
	default:
		inner = apperrors.Wrap(err, apperrors.CodeLLMProviderError, "llm provider error")
	}
	return apperrors.Wrap(inner, apperrors.CodeLLMCallFailed, "llm call failed").WithDetail(workflow)
}
