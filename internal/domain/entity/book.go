package entity

import (
	"strconv"
	"strings"
	"time"
)

// SectionSpec 章节描述，创建后不可变
type SectionSpec struct {
	Title    string   `json:"theme_title"`
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// BookPlan 页数预算分配结果
type BookPlan struct {
	Sections []SectionSpec `json:"sections"`
	// WordsPerSection 与 Sections 下标一一对应
	WordsPerSection []int `json:"words_per_section"`
	IntroWords      int   `json:"intro_words"`
	OutroWords      int   `json:"outro_words"`
	PrefaceWords    int   `json:"preface_words"`

	RequestedPages int `json:"requested_pages"`
	OverheadPages  int `json:"overhead_pages"`
	ContentPages   int `json:"content_pages"`
}

// TotalWords 计划生成的总字数
func (p *BookPlan) TotalWords() int {
	total := p.IntroWords + p.OutroWords + p.PrefaceWords
	for _, w := range p.WordsPerSection {
		total += w
	}
	return total
}

// SectionResult 单章生成结果
// ImagePath 为空表示配图失败，属于可恢复的预期状态。
type SectionResult struct {
	Heading   string `json:"heading"`
	Content   string `json:"content"`
	ImagePath string `json:"image_path,omitempty"`
}

// HasImage 是否带配图
func (r SectionResult) HasImage() bool {
	return r.ImagePath != ""
}

// Paragraphs 按空行切分正文
func (r SectionResult) Paragraphs() []string {
	return SplitParagraphs(r.Content)
}

// BookDocument 交给渲染器的完整文档树
type BookDocument struct {
	Title        string          `json:"title"`
	PrintDate    time.Time       `json:"print_date"`
	PrefaceText  string          `json:"preface_text"`
	PrologueText string          `json:"prologue_text"`
	EpilogueText string          `json:"epilogue_text"`
	Sections     []SectionResult `json:"sections"`

	DebugCallText string `json:"debug_call_text"`
	DebugPayload  string `json:"debug_payload"`
}

// TOCEntry 目录条目
type TOCEntry struct {
	Title  string
	Anchor string
}

// TableOfContents 由前言、引言、各章标题与结语生成目录
func (d *BookDocument) TableOfContents() []TOCEntry {
	var entries []TOCEntry
	if d.PrefaceText != "" {
		entries = append(entries, TOCEntry{Title: "Preface", Anchor: "preface"})
	}
	if d.PrologueText != "" {
		entries = append(entries, TOCEntry{Title: "Introduction", Anchor: "prologue"})
	}
	for i, s := range d.Sections {
		entries = append(entries, TOCEntry{Title: s.Heading, Anchor: SectionAnchor(i)})
	}
	if d.EpilogueText != "" {
		entries = append(entries, TOCEntry{Title: "Conclusion", Anchor: "epilogue"})
	}
	return entries
}

// SectionAnchor 第 i 章（从 0 开始）的锚点
func SectionAnchor(i int) string {
	return "chapter-" + strconv.Itoa(i+1)
}

// SplitParagraphs 以空行切分段落，忽略空段
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BirthData 从自然语言中抽取的出生信息
type BirthData struct {
	Day            int     `json:"day"`
	Month          int     `json:"month"`
	Year           int     `json:"year"`
	Hour           int     `json:"hour"`
	Min            int     `json:"min"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	TimezoneOffset float64 `json:"timezone_offset"`
}
