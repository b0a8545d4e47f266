// Package render 将 BookDocument 排版为 HTML，并可选地调用外部命令转换为 PDF
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	workflowport "natal-book-ai/internal/workflow/port"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/tracer"
)

//go:embed templates/book.html.tmpl templates/book.css
var templatesFS embed.FS

const printDateLayout = "January 02, 2006"

type bookView struct {
	Title         string
	PrintDate     string
	CSS           template.CSS
	DebugCallText string
	DebugPayload  string
	TOC           []entity.TOCEntry
	Preface       []string
	Prologue      []string
	Epilogue      []string
	Sections      []sectionView
}

type sectionView struct {
	Number     int
	Anchor     string
	Heading    string
	ImageSrc   string
	Paragraphs []string
	Last       bool
}

// HTMLRenderer 输出自包含的 HTML 文件
type HTMLRenderer struct {
	dir  string
	tmpl *template.Template
	css  template.CSS
}

func NewHTMLRenderer(dir string) (*HTMLRenderer, error) {
	tmpl, err := template.New("book.html.tmpl").
		Funcs(template.FuncMap{"seq": func(n int) []struct{} { return make([]struct{}, n) }}).
		ParseFS(templatesFS, "templates/book.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse book template: %w", err)
	}
	css, err := templatesFS.ReadFile("templates/book.css")
	if err != nil {
		return nil, fmt.Errorf("read book stylesheet: %w", err)
	}
	return &HTMLRenderer{dir: dir, tmpl: tmpl, css: template.CSS(css)}, nil
}

// Render 写入 <dir>/<basename>.html
func (r *HTMLRenderer) Render(ctx context.Context, doc *entity.BookDocument, basename string) (path string, err error) {
	ctx, span := tracer.Start(ctx, "render.html")
	defer func() { tracer.End(span, err) }()

	if doc == nil {
		return "", apperrors.New(apperrors.CodeRenderFailed, "render failed").WithDetail("document is nil")
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, r.view(doc)); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRenderFailed, "render failed")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "create books dir")
	}
	path = filepath.Join(r.dir, filepath.Base(basename)+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "write book")
	}
	logger.Info(ctx, "book rendered", "path", path, "bytes", buf.Len())
	return path, nil
}

func (r *HTMLRenderer) view(doc *entity.BookDocument) bookView {
	v := bookView{
		Title:         doc.Title,
		PrintDate:     doc.PrintDate.Format(printDateLayout),
		CSS:           r.css,
		DebugCallText: doc.DebugCallText,
		DebugPayload:  doc.DebugPayload,
		TOC:           doc.TableOfContents(),
		Preface:       entity.SplitParagraphs(doc.PrefaceText),
		Prologue:      entity.SplitParagraphs(doc.PrologueText),
		Epilogue:      entity.SplitParagraphs(doc.EpilogueText),
	}
	for i, s := range doc.Sections {
		v.Sections = append(v.Sections, sectionView{
			Number:     i + 1,
			Anchor:     entity.SectionAnchor(i),
			Heading:    s.Heading,
			ImageSrc:   imageSrc(s.ImagePath),
			Paragraphs: s.Paragraphs(),
			Last:       i == len(doc.Sections)-1,
		})
	}
	return v
}

// imageSrc 转为绝对路径，使 HTML 与图片目录的相对位置无关
func imageSrc(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(p)
}

// PDFRenderer 先输出 HTML，再调用外部命令生成 PDF
type PDFRenderer struct {
	html    *HTMLRenderer
	command []string
}

// NewPDFRenderer command 中的 {input} 与 {output} 会被替换为文件路径
func NewPDFRenderer(html *HTMLRenderer, command []string) (*PDFRenderer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pdf command is empty")
	}
	return &PDFRenderer{html: html, command: command}, nil
}

func (r *PDFRenderer) Render(ctx context.Context, doc *entity.BookDocument, basename string) (path string, err error) {
	htmlPath, err := r.html.Render(ctx, doc, basename)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "render.pdf")
	defer func() { tracer.End(span, err) }()

	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	args := make([]string, len(r.command))
	for i, a := range r.command {
		a = strings.ReplaceAll(a, "{input}", htmlPath)
		args[i] = strings.ReplaceAll(a, "{output}", pdfPath)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRenderFailed, "render failed").
			WithDetail(strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRenderFailed, "render failed").
			WithDetail("pdf command produced no output")
	}
	logger.Info(ctx, "book converted to pdf", "path", pdfPath)
	return pdfPath, nil
}

// New 按 output.format 选择实现
func New(cfg *config.OutputConfig) (workflowport.BookRenderer, error) {
	html, err := NewHTMLRenderer(cfg.BooksDir)
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "", "html":
		return html, nil
	case "pdf":
		return NewPDFRenderer(html, cfg.PDFCommand)
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}
