// Package book 整书生成：结构来源、章节流水线与编排
package book

import (
	"context"
	"fmt"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	wfmodel "natal-book-ai/internal/workflow/model"
	apperrors "natal-book-ai/pkg/errors"
)

// Tier 按总字数划分的篇幅档位
type Tier struct {
	Name     string
	Label    string
	MaxWords int // 0 表示无上限
	Sections []entity.SectionSpec
}

var (
	sectionCoreIdentity = entity.SectionSpec{Title: "Your Core Identity"}
	sectionEmotional    = entity.SectionSpec{Title: "Your Emotional Landscape"}
	sectionMind         = entity.SectionSpec{Title: "Your Mind and Voice"}
	sectionBonds        = entity.SectionSpec{Title: "Love, Bonds and Belonging"}
	sectionDrive        = entity.SectionSpec{Title: "Drive, Ambition and Work"}
	sectionPurpose      = entity.SectionSpec{Title: "Growth, Challenge and Purpose"}
)

// Tiers 由小到大排列
var Tiers = []Tier{
	{
		Name:     "core",
		Label:    "Core Dynamics (~15k words)",
		MaxWords: 20000,
		Sections: []entity.SectionSpec{sectionCoreIdentity, sectionEmotional},
	},
	{
		Name:     "primary",
		Label:    "Primary & Secondary Themes (~30k words)",
		MaxWords: 40000,
		Sections: []entity.SectionSpec{sectionCoreIdentity, sectionEmotional, sectionMind, sectionBonds},
	},
	{
		Name:     "full_arc",
		Label:    "Full Arc (~50k+ words)",
		Sections: []entity.SectionSpec{sectionCoreIdentity, sectionEmotional, sectionMind, sectionBonds, sectionDrive, sectionPurpose},
	},
}

// TierFor 选择能容纳 words 的最小档位
func TierFor(words int) Tier {
	for _, t := range Tiers {
		if t.MaxWords == 0 || words <= t.MaxWords {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// StructureSource 提供章节列表
type StructureSource interface {
	Name() string
	// RequiresNetwork 为 true 时结构需要调用模型，预算只能事后校验
	RequiresNetwork() bool
	Sections(ctx context.Context, payload *entity.ChartPayload, targetWords int) ([]entity.SectionSpec, error)
}

// StructureProposer 由模型提出章节结构
type StructureProposer interface {
	Invoke(ctx context.Context, in *wfmodel.StructureGenerateInput) (*wfmodel.StructureGenerateOutput, error)
}

type staticSource struct {
	sections []entity.SectionSpec
}

// NewStaticSource 固定章节列表，默认使用完整六章
func NewStaticSource(sections []entity.SectionSpec) StructureSource {
	if len(sections) == 0 {
		sections = Tiers[len(Tiers)-1].Sections
	}
	return &staticSource{sections: sections}
}

func (s *staticSource) Name() string          { return config.StructureStatic }
func (s *staticSource) RequiresNetwork() bool { return false }

func (s *staticSource) Sections(context.Context, *entity.ChartPayload, int) ([]entity.SectionSpec, error) {
	return cloneSections(s.sections), nil
}

type tieredSource struct{}

// NewTieredSource 按档位选择固定列表
func NewTieredSource() StructureSource {
	return tieredSource{}
}

func (tieredSource) Name() string          { return config.StructureTiered }
func (tieredSource) RequiresNetwork() bool { return false }

func (tieredSource) Sections(_ context.Context, _ *entity.ChartPayload, targetWords int) ([]entity.SectionSpec, error) {
	return cloneSections(TierFor(targetWords).Sections), nil
}

type generatedSource struct {
	proposer    StructureProposer
	temperature float32
}

// NewGeneratedSource 由模型按档位提出主题章节
func NewGeneratedSource(proposer StructureProposer) StructureSource {
	return &generatedSource{proposer: proposer, temperature: 0.2}
}

func (s *generatedSource) Name() string          { return config.StructureGenerated }
func (s *generatedSource) RequiresNetwork() bool { return true }

func (s *generatedSource) Sections(ctx context.Context, payload *entity.ChartPayload, targetWords int) ([]entity.SectionSpec, error) {
	if s.proposer == nil {
		return nil, apperrors.New(apperrors.CodeStructureGenerationFailed, "architect failed to produce structure").
			WithDetail("no structure generator configured")
	}
	temp := s.temperature
	out, err := s.proposer.Invoke(ctx, &wfmodel.StructureGenerateInput{
		Payload:     payload,
		TierLabel:   TierFor(targetWords).Label,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Sections) == 0 {
		return nil, apperrors.New(apperrors.CodeStructureGenerationFailed, "architect failed to produce structure")
	}
	return out.Sections, nil
}

// StructureSources 名称到来源的映射
type StructureSources map[string]StructureSource

// NewStructureSources 注册三种来源
func NewStructureSources(proposer StructureProposer) StructureSources {
	return StructureSources{
		config.StructureStatic:    NewStaticSource(nil),
		config.StructureTiered:    NewTieredSource(),
		config.StructureGenerated: NewGeneratedSource(proposer),
	}
}

// Get 未知名称返回 InvalidParam
func (s StructureSources) Get(name string) (StructureSource, error) {
	src, ok := s[name]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "unknown structure source").
			WithDetail(fmt.Sprintf("%q (want static, tiered or generated)", name))
	}
	return src, nil
}

func cloneSections(in []entity.SectionSpec) []entity.SectionSpec {
	out := make([]entity.SectionSpec, len(in))
	for i, s := range in {
		out[i] = entity.SectionSpec{Title: s.Title, Summary: s.Summary}
		if s.Keywords != nil {
			out[i].Keywords = append([]string(nil), s.Keywords...)
		}
	}
	return out
}
