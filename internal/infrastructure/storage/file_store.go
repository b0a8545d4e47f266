// Package storage 本地文件落盘：插图与成书
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "natal-book-ai/pkg/errors"
)

// FileStore 将文件写入固定目录，文件名随机生成
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save 写入 r 的全部内容，返回文件路径。ext 形如 ".png"
func (s *FileStore) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "create output dir")
	}

	name := uuid.NewString() + normalizeExt(ext)
	path := filepath.Join(s.dir, name)

	// 先写临时文件再改名，避免半个文件被渲染器读到
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "create temp file")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "write file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, "rename file")
	}
	return path, nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

