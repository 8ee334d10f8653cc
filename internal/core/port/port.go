// Package port file: internal/core/port/port.go
package port

import (
	"context"
	"errors"
	"io"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/domain"
)

// Standard errors
var (
	ErrPathNotFound  = errors.New("指定的路径不存在")
	ErrFileNotFound  = errors.New("指定的数据文件不存在")
	ErrTableNotFound = errors.New("在数据文件中未找到指定的表")
	ErrNoPrimaryKey  = errors.New("无法确定表的主键列")
	ErrUnknownColumn = errors.New("引用了表中不存在的列")
	ErrAssistantDown = errors.New("Ollama 服务不可用")
)

// StoreLister 提供"当前已知数据文件"的只读视图，供动作执行器做跨文件检索。
// 实现方 (目录快照) 保证返回值是不可变快照，可在请求期间安全持有。
type StoreLister interface {
	// Stores 返回最近一次扫描发现的全部数据文件
	Stores() []domain.DataStore
	// SchemaText 返回最近一次扫描生成的结构摘要全文
	SchemaText() string
}

// Assistant 抽象外部语言模型服务 (Ollama)。
type Assistant interface {
	// Available 探测服务是否在线
	Available(ctx context.Context) bool
	// Models 返回可用模型名称列表
	Models(ctx context.Context) ([]string, error)
	// Generate 以流式方式生成回答，逐 token 写入 out
	Generate(ctx context.Context, model, prompt string, out io.Writer) error
}

// FolderPicker 抽象文件夹/文件选择。桌面实现可弹对话框并把 candidate
// 作为初始目录；无界面实现把 candidate 当作浏览器提交的路径做校验。
// 实现不得假设自己与目录快照的写入方处于同一线程。
type FolderPicker interface {
	// PickFolder 返回确认后的文件夹路径，用户取消时返回空串
	PickFolder(ctx context.Context, candidate string) (string, error)
	// PickFile 返回确认后的文件路径，用户取消时返回空串
	PickFile(ctx context.Context, candidate string) (string, error)
}
