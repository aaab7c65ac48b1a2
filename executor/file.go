package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// FileConfig bounds file_read/file_write to a working directory: a rooted
// working directory, a max size, and (for writes) an extension allowlist
// plus overwrite-backup behavior.
type FileConfig struct {
	WorkingDirectory  string
	MaxFileSize       int64
	AllowedExtensions []string // empty means unrestricted
	BackupOnOverwrite bool
}

// DefaultFileConfig returns the package's defaults: the current directory,
// a 10 MiB size cap, no extension allowlist, and a backup before overwrite.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		WorkingDirectory:  "./",
		MaxFileSize:       10 * 1024 * 1024,
		AllowedExtensions: nil,
		BackupOnOverwrite: true,
	}
}

// validatePath rejects absolute paths and directory traversal before any
// os call.
func validatePath(workingDir, path string) error {
	if filepath.IsAbs(path) {
		return errtag.New(errtag.KindInvalidParam, "absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return errtag.New(errtag.KindInvalidParam, "path escapes working directory")
	}
	full := filepath.Join(workingDir, cleaned)
	rel, err := filepath.Rel(workingDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return errtag.New(errtag.KindInvalidParam, "path escapes working directory")
	}
	return nil
}

// FileReadExecutor binds FileRead as a dispatch.ExecFunc.
type FileReadExecutor struct {
	Config FileConfig
}

func NewFileReadExecutor(cfg FileConfig) *FileReadExecutor {
	return &FileReadExecutor{Config: cfg}
}

// FileRead implements file_read: path validation, size cap, optional
// line-range slicing.
func (e *FileReadExecutor) FileRead(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "file_read requires path")
	}
	if err := validatePath(e.Config.WorkingDirectory, path); err != nil {
		return dispatch.Result{}, err
	}

	fullPath := filepath.Join(e.Config.WorkingDirectory, path)
	info, err := os.Stat(fullPath)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindNotFound, "failed to stat file", err)
	}
	if e.Config.MaxFileSize > 0 && info.Size() > e.Config.MaxFileSize {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam,
			fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), e.Config.MaxFileSize))
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindNotFound, "failed to read file", err)
	}

	lines := strings.Split(string(content), "\n")
	start, end := lineRange(params, len(lines))
	if start > end {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "start_line exceeds end_line")
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(lines[i-1])
		b.WriteString("\n")
	}

	return dispatch.Result{Data: map[string]any{
		"path":        path,
		"content":     b.String(),
		"total_lines": len(lines),
	}}, nil
}

func lineRange(params map[string]any, total int) (int, int) {
	start := 1
	if v, ok := toInt(params["start_line"]); ok && v > 0 {
		start = v
	}
	end := total
	if v, ok := toInt(params["end_line"]); ok && v > 0 && v < total {
		end = v
	}
	return start, end
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// FileWriteExecutor binds FileWrite as a dispatch.ExecFunc.
type FileWriteExecutor struct {
	Config FileConfig
}

func NewFileWriteExecutor(cfg FileConfig) *FileWriteExecutor {
	return &FileWriteExecutor{Config: cfg}
}

// FileWrite implements file_write: extension allowlist, size cap, .bak
// backup before overwrite, directory creation.
func (e *FileWriteExecutor) FileWrite(_ context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	path, _ := params["path"].(string)
	content, hasContent := params["content"].(string)
	if path == "" || !hasContent {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "file_write requires path and content")
	}
	if err := validatePath(e.Config.WorkingDirectory, path); err != nil {
		return dispatch.Result{}, err
	}
	if len(e.Config.AllowedExtensions) > 0 {
		ext := filepath.Ext(path)
		allowed := false
		for _, a := range e.Config.AllowedExtensions {
			if ext == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, fmt.Sprintf("extension %q not allowed", ext))
		}
	}
	if e.Config.MaxFileSize > 0 && int64(len(content)) > e.Config.MaxFileSize {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam,
			fmt.Sprintf("content too large: %d bytes (max %d)", len(content), e.Config.MaxFileSize))
	}

	fullPath := filepath.Join(e.Config.WorkingDirectory, path)

	existed := false
	if e.Config.BackupOnOverwrite {
		if _, err := os.Stat(fullPath); err == nil {
			existed = true
			if err := copyFile(fullPath, fullPath+".bak"); err != nil {
				return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to create backup", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to create directory", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to write file", err)
	}

	return dispatch.Result{Data: map[string]any{
		"path":           path,
		"bytes_written":  len(content),
		"overwritten":    existed,
		"backup_created": existed && e.Config.BackupOnOverwrite,
	}}, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
