package builtins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/tools"
)

func readFileTool(root string, maxSize int64) tools.Tool {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return tools.Tool{
		Definition: tools.Definition{
			Name:        ReadFile,
			Description: "Read content from a file",
			Parameters: tools.ObjectSchema(map[string]tools.Property{
				"file_path": {Type: "string", Description: "Path to the file to read"},
			}, "file_path"),
		},
		Handler: tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			path, err := api.StringParam(params, "file_path", "")
			if err != nil {
				return nil, err
			}
			resolved, err := resolvePath(root, path)
			if err != nil {
				return nil, err
			}

			content, err := readLimited(resolved, maxSize)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, api.NewNotFoundError("file not found: " + path)
			}
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"file_path": path,
				"content":   content,
				"size":      utf8.RuneCountInString(content),
				"lines":     strings.Count(content, "\n") + 1,
			}, nil
		}),
	}
}

// resolvePath keeps path inside root when root is set.
func resolvePath(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", api.NewValidationError("file_path", fmt.Sprintf("%s is outside the allowed directory", path))
	}
	return p, nil
}

func readLimited(path string, maxSize int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxSize {
		return "", api.NewValidationError("file_path", fmt.Sprintf("file exceeds %d bytes", maxSize))
	}
	return string(data), nil
}
