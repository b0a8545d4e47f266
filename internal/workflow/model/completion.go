package model

// ResponseFormat 期望的输出格式
type ResponseFormat string

const (
	ResponseFormatText       ResponseFormat = ""
	ResponseFormatJSONObject ResponseFormat = "json_object"
	ResponseFormatJSONSchema ResponseFormat = "json_schema"
)

// CompletionInput 单次文本补全请求
type CompletionInput struct {
	// Workflow 调用用途，用于日志、指标与链路标签
	Workflow string
	Prompt   string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int

	ResponseFormat ResponseFormat
	// SchemaName/Schema 仅在 ResponseFormatJSONSchema 时使用
	SchemaName string
	Schema     map[string]any
}
