// Package picker 在无桌面环境下实现文件夹/文件选择。
// 浏览器端把候选路径放进请求，服务端只负责校验与规范化。
package picker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// Headless 实现 port.FolderPicker。
// 选择结果由请求显式携带 (Set 注入)，Pick 系列只做存在性校验。
type Headless struct{}

var _ port.FolderPicker = (*Headless)(nil)

// New 创建无界面选择器。
func New() *Headless { return &Headless{} }

// PickFolder 校验并规范化路径，确保它是存在的目录。
func (h *Headless) PickFolder(_ context.Context, candidate string) (string, error) {
	return validate(candidate, true)
}

// PickFile 校验并规范化路径，确保它是存在的普通文件。
func (h *Headless) PickFile(_ context.Context, candidate string) (string, error) {
	return validate(candidate, false)
}

func validate(candidate string, wantDir bool) (string, error) {
	cleaned := Normalize(candidate)
	if cleaned == "" {
		return "", fmt.Errorf("%w: 路径为空", port.ErrPathNotFound)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %s", port.ErrPathNotFound, cleaned)
	}
	if wantDir && !info.IsDir() {
		return "", fmt.Errorf("%w: %s 不是文件夹", port.ErrPathNotFound, cleaned)
	}
	if !wantDir && info.IsDir() {
		return "", fmt.Errorf("%w: %s 不是文件", port.ErrFileNotFound, cleaned)
	}
	return cleaned, nil
}

// Normalize 去掉用户从资源管理器复制路径时带的引号与空白。
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"'`)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
