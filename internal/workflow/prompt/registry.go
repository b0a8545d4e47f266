// Package prompt 管理内置提示词模板并提供按用途的纯函数构建器
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptDataExtractionV1  PromptID = "data_extraction_v1"
	PromptBookStructureV1   PromptID = "book_structure_v1"
	PromptSectionStaticV1   PromptID = "section_static_v1"
	PromptSectionDynamicV1  PromptID = "section_dynamic_v1"
	PromptSectionPartV1     PromptID = "section_part_v1"
	PromptFramingV1         PromptID = "framing_v1"
	PromptSummarizationV1   PromptID = "summarization_v1"
	PromptSafeImagePromptV1 PromptID = "safe_image_prompt_v1"
)

// AllPromptIDs 全部模板，启动时用于预热与校验
var AllPromptIDs = []PromptID{
	PromptDataExtractionV1,
	PromptBookStructureV1,
	PromptSectionStaticV1,
	PromptSectionDynamicV1,
	PromptSectionPartV1,
	PromptFramingV1,
	PromptSummarizationV1,
	PromptSafeImagePromptV1,
}

// sectionRulesFile 写作类模板共用的措辞约束
const sectionRulesFile = "templates/section_rules.txt"

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回单条 user 消息的 FString 模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	path, err := resolvePromptFile(id)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(path)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFile(id PromptID) (string, error) {
	for _, known := range AllPromptIDs {
		if known == id {
			return "templates/" + string(id) + ".txt", nil
		}
	}
	return "", fmt.Errorf("unknown prompt id: %s", id)
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
