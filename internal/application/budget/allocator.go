// Package budget 将目标页数/字数换算为各章节字数
package budget

import (
	"fmt"
	"math"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	apperrors "natal-book-ai/pkg/errors"
)

// Overhead 不承载生成正文的固定版面页数
type Overhead struct {
	FrontMatterPages int
	PerSectionPages  int
	FramingPages     int
	PrefacePages     int
	IntroPages       int
	OutroPages       int
}

// FixedPages n 个章节下的固定开销页数
func (o Overhead) FixedPages(sectionCount int) int {
	return o.FrontMatterPages + o.PerSectionPages*sectionCount + o.FramingPages
}

// MinimumSlack 前言、引言、结语占用的正文页
func (o Overhead) MinimumSlack() int {
	return o.PrefacePages + o.IntroPages + o.OutroPages
}

// Allocator 页数预算分配器，无状态
type Allocator struct {
	overhead        Overhead
	wordsPerPage    int
	minSectionWords int
	maxPages        int
	maxWords        int
}

// Target 目标规模，Words > 0 时优先按字数换算
type Target struct {
	Pages int
	Words int
}

// NewAllocator 创建分配器
func NewAllocator(overhead Overhead, wordsPerPage, minSectionWords int) *Allocator {
	return &Allocator{
		overhead:        overhead,
		wordsPerPage:    wordsPerPage,
		minSectionWords: minSectionWords,
		maxPages:        config.MaxBookPages,
		maxWords:        config.MaxBookWords,
	}
}

// WithLimits 设置目标上限，非正值保持原值
func (a *Allocator) WithLimits(maxPages, maxWords int) *Allocator {
	if maxPages > 0 {
		a.maxPages = maxPages
	}
	if maxWords > 0 {
		a.maxWords = maxWords
	}
	return a
}

// NewAllocatorFromConfig 从配置创建分配器
func NewAllocatorFromConfig(cfg *config.BookConfig) *Allocator {
	return NewAllocator(Overhead{
		FrontMatterPages: cfg.Overhead.FrontMatterPages,
		PerSectionPages:  cfg.Overhead.PerSectionPages,
		FramingPages:     cfg.Overhead.FramingPages,
		PrefacePages:     cfg.Overhead.PrefacePages,
		IntroPages:       cfg.Overhead.IntroPages,
		OutroPages:       cfg.Overhead.OutroPages,
	}, cfg.WordsPerPage, cfg.MinSectionWords).WithLimits(cfg.MaxPages, cfg.MaxWords)
}

// WordsPerPage 每页字数
func (a *Allocator) WordsPerPage() int {
	return a.wordsPerPage
}

// Overhead 当前开销表
func (a *Allocator) Overhead() Overhead {
	return a.overhead
}

// RequestedPages 将目标换算为页数
func (a *Allocator) RequestedPages(target Target, sectionCount int) int {
	if target.Words > 0 {
		contentPages := (target.Words + a.wordsPerPage - 1) / a.wordsPerPage
		return a.overhead.FixedPages(sectionCount) + contentPages
	}
	return target.Pages
}

// TargetWords 目标对应的正文总字数，用于结构分级
func (a *Allocator) TargetWords(target Target) int {
	if target.Words > 0 {
		return target.Words
	}
	return target.Pages * a.wordsPerPage
}

// CheckTarget 目标超出上限或换算会溢出时返回 InvalidParam
func (a *Allocator) CheckTarget(target Target) error {
	if a.wordsPerPage <= 0 {
		return apperrors.New(apperrors.CodeInvalidParam, "words per page must be positive")
	}
	if target.Pages < 0 || target.Words < 0 {
		return apperrors.New(apperrors.CodeInvalidParam, "pages and words must not be negative")
	}
	if target.Pages > a.maxPages {
		return apperrors.New(apperrors.CodeInvalidParam, "pages exceeds limit").
			WithDetail(fmt.Sprintf("%d > %d", target.Pages, a.maxPages))
	}
	if target.Words > a.maxWords {
		return apperrors.New(apperrors.CodeInvalidParam, "words exceeds limit").
			WithDetail(fmt.Sprintf("%d > %d", target.Words, a.maxWords))
	}
	if target.Pages > math.MaxInt32/a.wordsPerPage || target.Words > math.MaxInt32-a.wordsPerPage {
		return apperrors.New(apperrors.CodeInvalidParam, "target too large for words per page").
			WithDetail(fmt.Sprintf("words_per_page=%d", a.wordsPerPage))
	}
	return nil
}

// Allocate 计算各章节字数；预算不足时返回 BudgetInfeasible
func (a *Allocator) Allocate(target Target, sections []entity.SectionSpec) (*entity.BookPlan, error) {
	if err := a.CheckTarget(target); err != nil {
		return nil, err
	}
	n := len(sections)
	if n == 0 {
		return nil, apperrors.New(apperrors.CodeBudgetInfeasible, "budget infeasible").
			WithDetail("no sections to allocate")
	}

	requested := a.RequestedPages(target, n)
	fixed := a.overhead.FixedPages(n)
	available := requested - fixed
	slack := a.overhead.MinimumSlack()

	if available < n+slack {
		return nil, apperrors.New(apperrors.CodeBudgetInfeasible, "budget infeasible").
			WithDetail(fmt.Sprintf("%d pages requested, %d are fixed overhead for %d sections; need at least %d",
				requested, fixed, n, fixed+n+slack))
	}

	remaining := available - slack
	perSection := remaining * a.wordsPerPage / n
	if perSection < a.minSectionWords {
		perSection = a.minSectionWords
	}

	words := make([]int, n)
	for i := range words {
		words[i] = perSection
	}

	plan := &entity.BookPlan{
		Sections:        append([]entity.SectionSpec(nil), sections...),
		WordsPerSection: words,
		PrefaceWords:    a.overhead.PrefacePages * a.wordsPerPage,
		IntroWords:      a.overhead.IntroPages * a.wordsPerPage,
		OutroWords:      a.overhead.OutroPages * a.wordsPerPage,
		RequestedPages:  requested,
		OverheadPages:   fixed,
		ContentPages:    available,
	}
	return plan, nil
}

// MinimumPages n 个章节可行的最小页数
func (a *Allocator) MinimumPages(sectionCount int) int {
	return a.overhead.FixedPages(sectionCount) + sectionCount + a.overhead.MinimumSlack()
}
